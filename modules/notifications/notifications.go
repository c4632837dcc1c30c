// Package notifications raises a system notification when the playing
// track changes. Identity is title plus artist; a new identity clears the
// previous notification by its stable id before notifying. Repeats are
// suppressed unless notify-on-unpause is set, in which case the repeat is
// cleared and raised again.
package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"

	"github.com/muselink/muselink/feature"
	"github.com/muselink/muselink/messaging"
	"github.com/muselink/muselink/player"
	"github.com/muselink/muselink/settings"
)

// notificationID is the stable id shared by every track notification, so
// clearing and replacing always address the same slot.
const notificationID = "muselink-track"

// fallbackIcon is used when the page exposes no artwork.
const fallbackIcon = "audio-x-generic"

// artworkSize rewrites the artwork URL's size suffix to a larger variant.
var artworkSize = regexp.MustCompile(`=w\d+-h\d+`)

// Notification is what reaches the host notifier.
type Notification struct {
	Title string
	Body  string
	Icon  string
}

// Notifier delivers and clears system notifications by stable id.
type Notifier interface {
	Notify(ctx context.Context, id string, n Notification) error
	Clear(ctx context.Context, id string) error
}

// Module is the background notifications feature.
type Module struct {
	mu              sync.Mutex
	enabled         bool
	notifyOnUnpause bool
	lastKey         string

	store    *settings.Store
	notifier Notifier
	logger   *slog.Logger
}

// Defaults is the initial settings record for this module's store.
func Defaults() map[string]any {
	return map[string]any{"enabled": true, "notifyOnUnpause": false}
}

// New creates the module and loads its persisted settings.
func New(ctx context.Context, store *settings.Store, notifier Notifier, logger *slog.Logger) (*Module, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Module{store: store, notifier: notifier, logger: logger}

	current, err := store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("notifications: load settings: %w", err)
	}
	m.enabled, _ = current["enabled"].(bool)
	m.notifyOnUnpause, _ = current["notifyOnUnpause"].(bool)
	return m, nil
}

func (m *Module) ID() string   { return "notifications" }
func (m *Module) Name() string { return "Track notifications" }
func (m *Module) Description() string {
	return "System notification on track change"
}

func (m *Module) Init(context.Context) error { return nil }

// Destroy forgets the last identity so a restarted module notifies again.
func (m *Module) Destroy() {
	m.mu.Lock()
	m.lastKey = ""
	m.mu.Unlock()
}

func (m *Module) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *Module) SetEnabled(enabled bool) {
	m.setFlag("enabled", enabled)
}

// NotifyOnUnpause reports the repeat-on-resume flag.
func (m *Module) NotifyOnUnpause() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notifyOnUnpause
}

// SetNotifyOnUnpause flips and persists the repeat-on-resume flag.
func (m *Module) SetNotifyOnUnpause(v bool) {
	m.setFlag("notifyOnUnpause", v)
}

func (m *Module) setFlag(field string, v bool) {
	m.mu.Lock()
	switch field {
	case "enabled":
		m.enabled = v
	case "notifyOnUnpause":
		m.notifyOnUnpause = v
	}
	m.mu.Unlock()
	if err := m.store.Set(context.Background(), map[string]any{field: v}); err != nil {
		m.logger.Error("persist notifications setting", "field", field, "error", err)
	}
}

// HandleTrackChanged applies the gating rules to one playback snapshot and
// raises a notification when they all pass.
func (m *Module) HandleTrackChanged(ctx context.Context, state player.PlaybackState) error {
	m.mu.Lock()
	enabled := m.enabled
	onUnpause := m.notifyOnUnpause
	lastKey := m.lastKey
	m.mu.Unlock()

	if !enabled {
		return nil
	}
	key := state.TrackKey()
	if key == "" {
		return nil
	}

	if key == lastKey && !onUnpause {
		return nil
	}
	if lastKey != "" {
		// Replace whatever notification is showing instead of stacking.
		if err := m.notifier.Clear(ctx, notificationID); err != nil {
			m.logger.Debug("clear notification", "error", err)
		}
	}

	n := Notification{
		Title: state.Title,
		Body:  state.Artist,
		Icon:  ArtworkIcon(state.ArtworkURL),
	}
	if err := m.notifier.Notify(ctx, notificationID, n); err != nil {
		return fmt.Errorf("notifications: notify: %w", err)
	}

	m.mu.Lock()
	m.lastKey = key
	m.mu.Unlock()
	return nil
}

// ArtworkIcon upgrades the artwork URL to the 256px variant, or falls
// back to the generic icon when the page exposed none.
func ArtworkIcon(url string) string {
	if url == "" {
		return fallbackIcon
	}
	return artworkSize.ReplaceAllString(url, "=w256-h256")
}

// RegisterHandlers wires the module's message surface. Settings handlers
// stay live while the module is disabled, re-enabling arrives through
// them.
func (m *Module) RegisterHandlers(h *messaging.Handler) {
	h.On("track-changed", func(ctx context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		state, _ := msg.Field("state")
		if err := m.HandleTrackChanged(ctx, player.ParseState(state)); err != nil {
			return messaging.Response{}, err
		}
		return messaging.OKResponse(), nil
	})
	h.On("get-notifications-enabled", func(context.Context, messaging.Message, messaging.Meta) (messaging.Response, error) {
		return messaging.DataResponse(m.Enabled()), nil
	})
	h.On("set-notifications-enabled", func(_ context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		m.SetEnabled(msg.Bool("enabled"))
		return messaging.OKResponse(), nil
	})
	h.On("get-notify-on-unpause", func(context.Context, messaging.Message, messaging.Meta) (messaging.Response, error) {
		return messaging.DataResponse(m.NotifyOnUnpause()), nil
	})
	h.On("set-notify-on-unpause", func(_ context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		m.SetNotifyOnUnpause(msg.Bool("enabled"))
		return messaging.OKResponse(), nil
	})
}

// PopupViews contributes the settings view.
func (m *Module) PopupViews() []feature.PopupView {
	return []feature.PopupView{{
		ID:    "notifications",
		Label: "Notifications",
		Render: func(ctx context.Context, w io.Writer) error {
			_, err := fmt.Fprintf(w, "enabled: %t\nnotify on unpause: %t\n",
				m.Enabled(), m.NotifyOnUnpause())
			return err
		},
	}}
}
