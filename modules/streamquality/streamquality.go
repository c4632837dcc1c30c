// Package streamquality persists the preferred stream quality tier and
// serves it over messages. Applying the tier to the live player happens
// in the page agent through its quality bridge; the change callback lets
// the daemon push a new preference to an attached page immediately.
package streamquality

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/muselink/muselink/bridge"
	"github.com/muselink/muselink/feature"
	"github.com/muselink/muselink/messaging"
	"github.com/muselink/muselink/settings"
)

// Module is the background stream-quality feature.
type Module struct {
	mu      sync.Mutex
	enabled bool
	quality string

	store    *settings.Store
	logger   *slog.Logger
	onChange func(quality string)
}

// Defaults is the initial settings record for this module's store. An
// empty quality means "leave the player's own choice alone".
func Defaults() map[string]any {
	return map[string]any{"enabled": true, "quality": ""}
}

// New creates the module and loads its persisted settings.
func New(ctx context.Context, store *settings.Store, logger *slog.Logger) (*Module, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Module{store: store, logger: logger}

	current, err := store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("streamquality: load settings: %w", err)
	}
	m.enabled, _ = current["enabled"].(bool)
	if q, ok := current["quality"].(string); ok && (q == "" || bridge.ValidQuality(q)) {
		m.quality = q
	}
	return m, nil
}

// OnChange registers the change callback invoked after a quality change
// is persisted.
func (m *Module) OnChange(fn func(quality string)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func (m *Module) ID() string   { return "stream-quality" }
func (m *Module) Name() string { return "Stream quality" }
func (m *Module) Description() string {
	return "Pin the player's stream quality tier"
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
	m.mu.Unlock()
	if err := m.store.Set(context.Background(), map[string]any{"enabled": enabled}); err != nil {
		m.logger.Error("persist stream-quality enabled", "error", err)
	}
}

// Quality returns the preferred tier, empty when unset.
func (m *Module) Quality() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quality
}

// SetQuality validates, stores, and persists the preferred tier.
func (m *Module) SetQuality(q string) error {
	if !bridge.ValidQuality(q) {
		return fmt.Errorf("streamquality: unknown quality %q", q)
	}
	m.mu.Lock()
	m.quality = q
	fn := m.onChange
	m.mu.Unlock()

	if err := m.store.Set(context.Background(), map[string]any{"quality": q}); err != nil {
		m.logger.Error("persist stream quality", "error", err)
	}
	if fn != nil {
		fn(q)
	}
	return nil
}

// RegisterHandlers wires the module's message surface.
func (m *Module) RegisterHandlers(h *messaging.Handler) {
	h.On("get-stream-quality", func(context.Context, messaging.Message, messaging.Meta) (messaging.Response, error) {
		// An unset preference is reported as null, not "".
		current := map[string]any{"current": nil}
		if q := m.Quality(); q != "" {
			current["current"] = q
		}
		return messaging.DataResponse(current), nil
	})
	h.On("set-stream-quality", func(_ context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		if err := m.SetQuality(msg.String("value")); err != nil {
			return messaging.Response{}, err
		}
		return messaging.OKResponse(), nil
	})
}

// PopupViews contributes the settings view.
func (m *Module) PopupViews() []feature.PopupView {
	return []feature.PopupView{{
		ID:    "stream-quality",
		Label: "Stream quality",
		Render: func(ctx context.Context, w io.Writer) error {
			q := m.Quality()
			if q == "" {
				q = "player default"
			}
			_, err := fmt.Fprintf(w, "enabled: %t\nquality: %s\n", m.Enabled(), q)
			return err
		},
	}}
}
