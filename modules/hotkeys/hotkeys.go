// Package hotkeys maps global media commands onto playback actions and
// routes them to whichever page currently hosts the player. Commands fire
// from anywhere in the host session, so a missing player page is normal
// and must stay silent.
package hotkeys

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/muselink/muselink/feature"
	"github.com/muselink/muselink/player"
	"github.com/muselink/muselink/settings"
)

// commandMap binds the command vocabulary to playback actions.
var commandMap = map[string]player.Action{
	"play-pause":     player.ActionTogglePlay,
	"next-track":     player.ActionNext,
	"previous-track": player.ActionPrevious,
}

// TargetFinder locates the page target hosting the player. ok is false
// when no such page exists right now.
type TargetFinder interface {
	FindTarget(ctx context.Context) (target string, ok bool, err error)
}

// Executor runs one playback action against a page target.
// messaging.ActionExecutor satisfies it.
type Executor interface {
	Execute(ctx context.Context, action player.Action, target string) error
}

// Module is the background hotkeys feature.
type Module struct {
	mu       sync.Mutex
	enabled  bool
	store    *settings.Store
	finder   TargetFinder
	executor Executor
	logger   *slog.Logger
}

// New creates the module and loads its persisted enabled flag.
func New(ctx context.Context, store *settings.Store, finder TargetFinder, executor Executor, logger *slog.Logger) (*Module, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Module{store: store, finder: finder, executor: executor, logger: logger}

	current, err := store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("hotkeys: load settings: %w", err)
	}
	m.enabled, _ = current["enabled"].(bool)
	return m, nil
}

// Defaults is the initial settings record for this module's store.
func Defaults() map[string]any {
	return map[string]any{"enabled": true}
}

func (m *Module) ID() string   { return "hotkeys" }
func (m *Module) Name() string { return "Hotkeys" }
func (m *Module) Description() string {
	return "Global media key commands for playback control"
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
		m.logger.Error("persist hotkeys enabled", "error", err)
	}
}

// HandleCommand resolves one incoming command. Unknown commands and a
// missing player page are silent no-ops; executor failures are logged and
// never propagate, a hotkey press has no caller to report to.
func (m *Module) HandleCommand(ctx context.Context, command string) {
	if !m.Enabled() {
		return
	}
	action, ok := commandMap[command]
	if !ok {
		m.logger.Debug("unknown command", "command", command)
		return
	}

	target, found, err := m.finder.FindTarget(ctx)
	if err != nil {
		m.logger.Error("find player target", "command", command, "error", err)
		return
	}
	if !found {
		return
	}

	if err := m.executor.Execute(ctx, action, target); err != nil {
		m.logger.Error("execute command", "command", command, "action", action, "error", err)
	}
}

// PopupViews contributes the command reference view.
func (m *Module) PopupViews() []feature.PopupView {
	return []feature.PopupView{{
		ID:    "hotkeys",
		Label: "Hotkeys",
		Render: func(ctx context.Context, w io.Writer) error {
			for _, command := range []string{"play-pause", "next-track", "previous-track"} {
				if _, err := fmt.Fprintf(w, "%s: %s\n", command, commandMap[command]); err != nil {
					return err
				}
			}
			return nil
		},
	}}
}
