// Package audiovisualizer is the background half of the visualizer
// feature: it persists the enabled flag, the shared style, and the target
// policy, and serves them over messages. The drawing itself lives in the
// page agent's overlay manager, which reads these settings at attach time
// and on every change notification.
package audiovisualizer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/muselink/muselink/feature"
	"github.com/muselink/muselink/messaging"
	"github.com/muselink/muselink/settings"
	"github.com/muselink/muselink/visualizer"
)

// Module is the background audio-visualizer feature.
type Module struct {
	mu      sync.Mutex
	enabled bool
	style   visualizer.Style
	target  visualizer.Target

	store  *settings.Store
	logger *slog.Logger
	// onChange, when set, is invoked after every persisted change so the
	// daemon can push the new value to an attached page agent.
	onChange func(field string, value any)
}

// Defaults is the initial settings record for this module's store.
func Defaults() map[string]any {
	return map[string]any{
		"enabled": false,
		"style":   string(visualizer.StyleBars),
		"target":  string(visualizer.TargetAuto),
	}
}

// New creates the module and loads its persisted settings.
func New(ctx context.Context, store *settings.Store, logger *slog.Logger) (*Module, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Module{store: store, logger: logger,
		style: visualizer.StyleBars, target: visualizer.TargetAuto}

	current, err := store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("audiovisualizer: load settings: %w", err)
	}
	m.enabled, _ = current["enabled"].(bool)
	if s, ok := current["style"].(string); ok && visualizer.ValidStyle(s) {
		m.style = visualizer.Style(s)
	}
	if t, ok := current["target"].(string); ok && visualizer.ValidTarget(t) {
		m.target = visualizer.Target(t)
	}
	return m, nil
}

// OnChange registers the change callback. Must be set before handlers run.
func (m *Module) OnChange(fn func(field string, value any)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func (m *Module) ID() string   { return "audio-visualizer" }
func (m *Module) Name() string { return "Audio visualizer" }
func (m *Module) Description() string {
	return "Frequency visualizer overlay on the player"
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
	m.persist("enabled", enabled)
}

// Style returns the shared style.
func (m *Module) Style() visualizer.Style {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.style
}

// SetStyle validates, stores, and persists the style.
func (m *Module) SetStyle(s string) error {
	if !visualizer.ValidStyle(s) {
		return fmt.Errorf("audiovisualizer: unknown style %q", s)
	}
	m.mu.Lock()
	m.style = visualizer.Style(s)
	m.mu.Unlock()
	m.persist("style", s)
	return nil
}

// Target returns the target policy.
func (m *Module) Target() visualizer.Target {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

// SetTarget validates, stores, and persists the target policy.
func (m *Module) SetTarget(t string) error {
	if !visualizer.ValidTarget(t) {
		return fmt.Errorf("audiovisualizer: unknown target %q", t)
	}
	m.mu.Lock()
	m.target = visualizer.Target(t)
	m.mu.Unlock()
	m.persist("target", t)
	return nil
}

func (m *Module) persist(field string, value any) {
	if err := m.store.Set(context.Background(), map[string]any{field: value}); err != nil {
		m.logger.Error("persist visualizer setting", "field", field, "error", err)
	}
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(field, value)
	}
}

// RegisterHandlers wires the module's message surface.
func (m *Module) RegisterHandlers(h *messaging.Handler) {
	h.On("get-audio-visualizer-enabled", func(context.Context, messaging.Message, messaging.Meta) (messaging.Response, error) {
		return messaging.DataResponse(m.Enabled()), nil
	})
	h.On("set-audio-visualizer-enabled", func(_ context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		m.SetEnabled(msg.Bool("enabled"))
		return messaging.OKResponse(), nil
	})
	h.On("get-audio-visualizer-style", func(context.Context, messaging.Message, messaging.Meta) (messaging.Response, error) {
		return messaging.DataResponse(string(m.Style())), nil
	})
	h.On("set-audio-visualizer-style", func(_ context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		if err := m.SetStyle(msg.String("style")); err != nil {
			return messaging.Response{}, err
		}
		return messaging.OKResponse(), nil
	})
	h.On("get-audio-visualizer-target", func(context.Context, messaging.Message, messaging.Meta) (messaging.Response, error) {
		return messaging.DataResponse(string(m.Target())), nil
	})
	h.On("set-audio-visualizer-target", func(_ context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		if err := m.SetTarget(msg.String("target")); err != nil {
			return messaging.Response{}, err
		}
		return messaging.OKResponse(), nil
	})
}

// PopupViews contributes the settings view.
func (m *Module) PopupViews() []feature.PopupView {
	return []feature.PopupView{{
		ID:    "audio-visualizer",
		Label: "Audio visualizer",
		Render: func(ctx context.Context, w io.Writer) error {
			_, err := fmt.Fprintf(w, "enabled: %t\nstyle: %s\ntarget: %s\n",
				m.Enabled(), m.Style(), m.Target())
			return err
		},
	}}
}
