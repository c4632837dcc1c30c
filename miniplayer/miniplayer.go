// Package miniplayer implements the floating mini-player: a controller
// that takes over the player's own mini-player affordance, opens a small
// always-on-top surface, and mirrors playback state into it once per
// second while it stays open.
//
// The floating surface is opened through a Strategy. The document
// picture-in-picture strategy hosts a real DOM renderer; when the host
// lacks that capability the video-element picture-in-picture fallback
// shows the bare video frame instead.
package miniplayer

import (
	"context"

	"github.com/muselink/muselink/player"
)

// Window is an open floating surface. Done is closed exactly once, when
// the surface disappears for any reason, including a user closing it.
type Window interface {
	// Container names the DOM node inside the window that overlays may
	// attach to.
	Container() string
	Done() <-chan struct{}
	Close()
}

// Strategy opens a floating surface.
type Strategy interface {
	Open(ctx context.Context) (Window, error)
}

// Controls carries the callbacks a renderer invokes on user interaction.
type Controls struct {
	OnAction func(action player.Action)
	OnSeek   func(seconds float64)
}

// Renderer pushes playback state into an open window.
type Renderer interface {
	Render(state player.PlaybackState)
}

// RendererFactory builds the renderer for a freshly opened window.
type RendererFactory func(w Window, controls Controls) (Renderer, error)

// Affordance is the player's native mini-player button.
type Affordance interface {
	// WaitPresent blocks until the button exists in the page or ctx ends.
	WaitPresent(ctx context.Context) error
	// Intercept routes the button's activations to fn instead of the
	// native behavior until the returned remove function runs.
	Intercept(fn func()) (remove func(), err error)
}

// OverlayAttacher is the slice of the visualizer manager the controller
// needs: binding and releasing the pip surface.
type OverlayAttacher interface {
	AttachPiP(container string) error
	DetachPiP()
}
