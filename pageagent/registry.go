package pageagent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/muselink/muselink/capability"
	"github.com/muselink/muselink/messaging"
)

// Registry tracks the live agent per page target and rebuilds them on
// demand. It is the daemon's messaging.Injector: injecting into a target
// means constructing a fresh Agent there and wiring its transport into
// the background sender. It also serves as the hotkeys target finder.
type Registry struct {
	mu      sync.Mutex
	agents  map[string]*Agent
	browser *Browser
	sender  *messaging.Sender
	// background is handed to every new agent so it can reach the daemon.
	background   messaging.Transport
	capabilities capability.Snapshot
	logger       *slog.Logger

	trackInterval      time.Duration
	miniPlayerInterval time.Duration
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTrackInterval sets the track observer poll interval handed to every
// agent this registry builds. Zero keeps the agent default.
func WithTrackInterval(d time.Duration) RegistryOption {
	return func(r *Registry) { r.trackInterval = d }
}

// WithMiniPlayerInterval sets the mini-player refresh interval handed to
// every agent this registry builds. Zero keeps the agent default.
func WithMiniPlayerInterval(d time.Duration) RegistryOption {
	return func(r *Registry) { r.miniPlayerInterval = d }
}

// NewRegistry creates an empty registry.
func NewRegistry(browser *Browser, sender *messaging.Sender, background messaging.Transport, caps capability.Snapshot, logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		agents:       make(map[string]*Agent),
		browser:      browser,
		sender:       sender,
		background:   background,
		capabilities: caps,
		logger:       logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Inject (re)builds the agent for a target. A previous agent for the same
// target is stopped first; its page-world scripts are orphaned but inert,
// the fresh agent injects its own.
func (r *Registry) Inject(ctx context.Context, target string) error {
	page, err := r.browser.PageForTarget(ctx, target)
	if err != nil {
		return err
	}
	return r.attach(ctx, target, page)
}

// AttachFirst finds or opens a player page and injects an agent into it,
// returning its target id. Used at daemon startup.
func (r *Registry) AttachFirst(ctx context.Context) (string, error) {
	targets, err := r.browser.PlayerTargets(ctx)
	if err != nil {
		return "", err
	}

	var page *rod.Page
	var target string
	if len(targets) > 0 {
		target = targets[0]
		page, err = r.browser.PageForTarget(ctx, target)
		if err != nil {
			return "", err
		}
	} else {
		page, err = r.browser.OpenPlayerPage(ctx)
		if err != nil {
			return "", err
		}
		target = string(page.TargetID)
	}

	if err := r.attach(ctx, target, page); err != nil {
		return "", err
	}
	return target, nil
}

func (r *Registry) attach(ctx context.Context, target string, page *rod.Page) error {
	r.mu.Lock()
	if prev, ok := r.agents[target]; ok {
		prev.Stop()
		delete(r.agents, target)
	}
	r.mu.Unlock()

	agent := NewAgent(AgentConfig{
		Target:             target,
		Page:               page,
		Background:         r.background,
		Capabilities:       r.capabilities,
		Logger:             r.logger,
		TrackInterval:      r.trackInterval,
		MiniPlayerInterval: r.miniPlayerInterval,
	})
	if err := agent.Start(ctx); err != nil {
		agent.Stop()
		return fmt.Errorf("pageagent: start agent for %s: %w", target, err)
	}

	r.mu.Lock()
	r.agents[target] = agent
	r.mu.Unlock()
	r.sender.SetTarget(target, agent.Transport())
	r.logger.Info("page agent attached", "target", target)
	return nil
}

// FindTarget returns a target hosting the player: a live agent first,
// otherwise any open player tab (the executor's re-injection will attach
// an agent there on first use). ok is false when no player page exists.
func (r *Registry) FindTarget(ctx context.Context) (string, bool, error) {
	r.mu.Lock()
	for target := range r.agents {
		r.mu.Unlock()
		return target, true, nil
	}
	r.mu.Unlock()

	targets, err := r.browser.PlayerTargets(ctx)
	if err != nil {
		return "", false, err
	}
	if len(targets) == 0 {
		return "", false, nil
	}
	return targets[0], true, nil
}

// Detach stops and forgets one agent. Subsequent sends to the target fail
// unreachable until the next Inject.
func (r *Registry) Detach(target string) {
	r.mu.Lock()
	agent, ok := r.agents[target]
	if ok {
		delete(r.agents, target)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	r.sender.RemoveTarget(target)
	agent.Stop()
}

// Broadcast sends one message to every attached agent, logging failures.
// Settings pushes use it; a dead agent just misses the update and reads
// fresh state on its next attach.
func (r *Registry) Broadcast(ctx context.Context, msg messaging.Message) {
	r.mu.Lock()
	targets := make([]string, 0, len(r.agents))
	for target := range r.agents {
		targets = append(targets, target)
	}
	r.mu.Unlock()

	for _, target := range targets {
		resp, err := r.sender.Send(ctx, msg, messaging.SendOptions{Target: target})
		if err != nil {
			r.logger.Warn("broadcast failed", "type", msg.Type, "target", target, "error", err)
			continue
		}
		if !resp.OK {
			r.logger.Warn("broadcast rejected", "type", msg.Type, "target", target, "error", resp.Error)
		}
	}
}

// CloseAll detaches every agent.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	agents := r.agents
	r.agents = make(map[string]*Agent)
	r.mu.Unlock()

	for target, agent := range agents {
		r.sender.RemoveTarget(target)
		agent.Stop()
	}
}
