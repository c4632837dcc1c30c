package miniplayer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/muselink/muselink/player"
)

// Controller owns the mini-player lifecycle. All state transitions are
// serialized on its mutex; the poll loop runs on its own goroutine and
// stops the instant the window reports closed.
type Controller struct {
	mu          sync.Mutex
	adapter     PlaybackAdapter
	strategy    Strategy
	overlay     OverlayAttacher
	newRenderer RendererFactory
	interval    time.Duration
	logger      *slog.Logger

	window    Window
	cancel    context.CancelFunc
	unhijack  func()
	destroyed bool
}

// PlaybackAdapter is the playback slice the controller reads and drives.
// player.Adapter satisfies it.
type PlaybackAdapter interface {
	PlaybackState(ctx context.Context) (player.PlaybackState, error)
	ExecuteAction(ctx context.Context, action player.Action) error
	SeekTo(ctx context.Context, seconds float64) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithPollInterval overrides the state refresh interval. Default 1s.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

// NewController creates a closed controller.
func NewController(adapter PlaybackAdapter, strategy Strategy, overlay OverlayAttacher, newRenderer RendererFactory, opts ...Option) *Controller {
	c := &Controller{
		adapter:     adapter,
		strategy:    strategy,
		overlay:     overlay,
		newRenderer: newRenderer,
		interval:    time.Second,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// HijackNative waits for the player's own mini-player button and routes
// its activations to Toggle. The wait respects ctx so a detaching agent
// abandons it cleanly.
func (c *Controller) HijackNative(ctx context.Context, affordance Affordance) error {
	if err := affordance.WaitPresent(ctx); err != nil {
		return fmt.Errorf("miniplayer: wait for native button: %w", err)
	}
	remove, err := affordance.Intercept(func() {
		if err := c.Toggle(context.Background()); err != nil {
			c.logger.Error("mini-player toggle", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("miniplayer: intercept native button: %w", err)
	}
	c.mu.Lock()
	c.unhijack = remove
	c.mu.Unlock()
	return nil
}

// Open opens the floating surface and starts the poll loop. No-op while
// already open or after Destroy.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed || c.window != nil {
		return nil
	}

	win, err := c.strategy.Open(ctx)
	if err != nil {
		return fmt.Errorf("miniplayer: open window: %w", err)
	}

	renderer, err := c.newRenderer(win, Controls{
		OnAction: func(a player.Action) {
			if err := c.adapter.ExecuteAction(context.Background(), a); err != nil {
				c.logger.Error("mini-player action", "action", a, "error", err)
			}
		},
		OnSeek: func(seconds float64) {
			if err := c.adapter.SeekTo(context.Background(), seconds); err != nil {
				c.logger.Error("mini-player seek", "error", err)
			}
		},
	})
	if err != nil {
		win.Close()
		return fmt.Errorf("miniplayer: build renderer: %w", err)
	}

	if c.overlay != nil {
		if err := c.overlay.AttachPiP(win.Container()); err != nil {
			c.logger.Warn("attach pip overlay", "error", err)
		}
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	c.window = win
	c.cancel = cancel
	go c.poll(pollCtx, win, renderer)
	return nil
}

// Close closes the floating surface if open. The poll loop observes the
// window's Done channel and finishes the teardown.
func (c *Controller) Close() {
	c.mu.Lock()
	win := c.window
	c.mu.Unlock()
	if win != nil {
		win.Close()
	}
}

// Toggle opens the surface when closed and closes it when open.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	open := c.window != nil
	c.mu.Unlock()
	if open {
		c.Close()
		return nil
	}
	return c.Open(ctx)
}

// IsOpen reports whether the surface is currently open.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window != nil
}

// Destroy closes everything and refuses further opens. Idempotent,
// including on a never-opened controller.
func (c *Controller) Destroy() {
	c.mu.Lock()
	c.destroyed = true
	win := c.window
	unhijack := c.unhijack
	c.unhijack = nil
	c.mu.Unlock()

	if unhijack != nil {
		unhijack()
	}
	if win != nil {
		win.Close()
		c.closed(win)
	}
}

// poll refreshes the renderer on the interval until the window closes.
func (c *Controller) poll(ctx context.Context, win Window, renderer Renderer) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.render(ctx, renderer)
	for {
		select {
		case <-win.Done():
			c.closed(win)
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.render(ctx, renderer)
		}
	}
}

func (c *Controller) render(ctx context.Context, renderer Renderer) {
	state, err := c.adapter.PlaybackState(ctx)
	if err != nil {
		c.logger.Debug("mini-player state refresh", "error", err)
		return
	}
	renderer.Render(state)
}

// closed finishes teardown for one window. Guarded by window identity so
// a stale poll goroutine cannot tear down a newer window.
func (c *Controller) closed(win Window) {
	c.mu.Lock()
	if c.window != win {
		c.mu.Unlock()
		return
	}
	c.window = nil
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c.overlay != nil {
		c.overlay.DetachPiP()
	}
}
