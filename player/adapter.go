package player

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
)

// Adapter reads and drives the player page. Implemented over a rod page in
// production and stubbed in tests; every consumer takes the interface.
type Adapter interface {
	PlaybackState(ctx context.Context) (PlaybackState, error)
	ExecuteAction(ctx context.Context, action Action) error
	SeekTo(ctx context.Context, seconds float64) error
	// TrackDetailsHTML returns the raw markup of the track details panel,
	// for the popup surface to render.
	TrackDetailsHTML(ctx context.Context) (string, error)
}

// RodAdapter drives the page through CDP.
type RodAdapter struct {
	page *rod.Page
}

// NewRodAdapter wraps an attached page.
func NewRodAdapter(page *rod.Page) *RodAdapter {
	return &RodAdapter{page: page}
}

// PlaybackState captures the player bar markup and parses it into the
// contract shape.
func (a *RodAdapter) PlaybackState(ctx context.Context) (PlaybackState, error) {
	res, err := a.page.Context(ctx).Eval(fmt.Sprintf(
		`() => { const el = document.querySelector(%q); return el ? el.outerHTML : ""; }`,
		selPlayerBar))
	if err != nil {
		return PlaybackState{}, fmt.Errorf("player: capture player bar: %w", err)
	}
	fragment := res.Value.Str()
	if fragment == "" {
		return PlaybackState{}, nil
	}
	return ParsePlayerBar(fragment), nil
}

// ExecuteAction clicks the control mapped to the action. Conditional
// actions (play, pause) check the current state first so they stay
// idempotent.
func (a *RodAdapter) ExecuteAction(ctx context.Context, action Action) error {
	switch action {
	case ActionTogglePlay:
		return a.click(ctx, selPlayPauseButton)
	case ActionPlay:
		playing, err := a.isPlaying(ctx)
		if err != nil {
			return err
		}
		if !playing {
			return a.click(ctx, selPlayPauseButton)
		}
		return nil
	case ActionPause:
		playing, err := a.isPlaying(ctx)
		if err != nil {
			return err
		}
		if playing {
			return a.click(ctx, selPlayPauseButton)
		}
		return nil
	case ActionNext:
		return a.click(ctx, selNextButton)
	case ActionPrevious:
		return a.click(ctx, selPreviousButton)
	}
	return fmt.Errorf("player: unknown action %q", action)
}

// SeekTo moves playback to an absolute position in seconds via the
// progress bar's media API.
func (a *RodAdapter) SeekTo(ctx context.Context, seconds float64) error {
	_, err := a.page.Context(ctx).Eval(fmt.Sprintf(
		`() => { const v = document.querySelector(%q); if (v) v.currentTime = %f; }`,
		selVideoElement, seconds))
	if err != nil {
		return fmt.Errorf("player: seek: %w", err)
	}
	return nil
}

// TrackDetailsHTML captures the markup of the currently playing item's
// detail panel, empty when the panel is not present.
func (a *RodAdapter) TrackDetailsHTML(ctx context.Context) (string, error) {
	res, err := a.page.Context(ctx).Eval(
		`() => { const el = document.querySelector("ytmusic-player-queue-item[selected]"); return el ? el.outerHTML : ""; }`)
	if err != nil {
		return "", fmt.Errorf("player: capture track details: %w", err)
	}
	return res.Value.Str(), nil
}

func (a *RodAdapter) isPlaying(ctx context.Context) (bool, error) {
	res, err := a.page.Context(ctx).Eval(fmt.Sprintf(
		`() => { const el = document.querySelector(%q); return el ? (el.getAttribute("title") || "").toLowerCase() === "pause" : false; }`,
		selPlayPauseButton))
	if err != nil {
		return false, fmt.Errorf("player: read play state: %w", err)
	}
	return res.Value.Bool(), nil
}

func (a *RodAdapter) click(ctx context.Context, selector string) error {
	clickCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := a.page.Context(clickCtx).Eval(fmt.Sprintf(
		`() => { const el = document.querySelector(%q); if (!el) throw new Error("control not found"); el.click(); }`,
		selector))
	if err != nil {
		return fmt.Errorf("player: click %s: %w", selector, err)
	}
	return nil
}
