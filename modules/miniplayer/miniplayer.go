// Package miniplayer is the background half of the mini-player feature:
// the persisted enabled flag and its message surface. The controller that
// opens and drives the floating window lives in the page agent.
package miniplayer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/muselink/muselink/feature"
	"github.com/muselink/muselink/messaging"
	"github.com/muselink/muselink/settings"
)

// Module is the background mini-player feature.
type Module struct {
	mu      sync.Mutex
	enabled bool

	store    *settings.Store
	logger   *slog.Logger
	onChange func(enabled bool)
}

// Defaults is the initial settings record for this module's store.
func Defaults() map[string]any {
	return map[string]any{"enabled": true}
}

// New creates the module and loads its persisted settings.
func New(ctx context.Context, store *settings.Store, logger *slog.Logger) (*Module, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Module{store: store, logger: logger}

	current, err := store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("miniplayer: load settings: %w", err)
	}
	m.enabled, _ = current["enabled"].(bool)
	return m, nil
}

// OnChange registers the change callback invoked after the enabled flag
// is persisted.
func (m *Module) OnChange(fn func(enabled bool)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func (m *Module) ID() string   { return "mini-player" }
func (m *Module) Name() string { return "Mini player" }
func (m *Module) Description() string {
	return "Floating always-on-top playback controls"
}

func (m *Module) Init(context.Context) error { return nil }
func (m *Module) Destroy()                   {}

func (m *Module) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *Module) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	fn := m.onChange
	m.mu.Unlock()

	if err := m.store.Set(context.Background(), map[string]any{"enabled": enabled}); err != nil {
		m.logger.Error("persist mini-player enabled", "error", err)
	}
	if fn != nil {
		fn(enabled)
	}
}

// RegisterHandlers wires the module's message surface.
func (m *Module) RegisterHandlers(h *messaging.Handler) {
	h.On("get-mini-player-enabled", func(context.Context, messaging.Message, messaging.Meta) (messaging.Response, error) {
		return messaging.DataResponse(m.Enabled()), nil
	})
	h.On("set-mini-player-enabled", func(_ context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		m.SetEnabled(msg.Bool("enabled"))
		return messaging.OKResponse(), nil
	})
}

// PopupViews contributes the settings view.
func (m *Module) PopupViews() []feature.PopupView {
	return []feature.PopupView{{
		ID:    "mini-player",
		Label: "Mini player",
		Render: func(ctx context.Context, w io.Writer) error {
			_, err := fmt.Fprintf(w, "enabled: %t\n", m.Enabled())
			return err
		},
	}}
}
