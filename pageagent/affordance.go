package pageagent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"

	"github.com/muselink/muselink/player"
)

// rodAffordance is the player's native mini-player button as seen through
// the page. The button renders lazily, so WaitPresent polls for it.
type rodAffordance struct {
	page   *rod.Page
	logger *slog.Logger
}

// NewAffordance wraps the native mini-player button of one page.
func NewAffordance(page *rod.Page, logger *slog.Logger) *rodAffordance {
	return &rodAffordance{page: page, logger: logger}
}

// WaitPresent polls for the native button until it exists or ctx ends.
func (a *rodAffordance) WaitPresent(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		res, err := a.page.Context(ctx).Eval(fmt.Sprintf(
			`() => document.querySelector(%q) !== null`, player.NativeMiniPlayerSelector))
		if err == nil && res.Value.Bool() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

const interceptJS = `(selector) => {
	const el = document.querySelector(selector);
	if (!el) throw new Error("native button not found");
	if (el.dataset.muselinkHijacked) return;
	el.dataset.muselinkHijacked = "1";
	el.addEventListener("click", (e) => {
		e.stopImmediatePropagation();
		e.preventDefault();
		window.__muselinkMiniPlayerToggle("click");
	}, { capture: true });
}`

// Intercept replaces the button's native behavior with fn.
func (a *rodAffordance) Intercept(fn func()) (remove func(), err error) {
	stop, err := a.page.Expose("__muselinkMiniPlayerToggle", func(gson.JSON) (any, error) {
		fn()
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("pageagent: expose toggle hook: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := a.page.Context(ctx).Eval(interceptJS, player.NativeMiniPlayerSelector); err != nil {
		if stopErr := stop(); stopErr != nil {
			a.logger.Debug("stop toggle hook", "error", stopErr)
		}
		return nil, fmt.Errorf("pageagent: intercept native button: %w", err)
	}

	return func() {
		if err := stop(); err != nil {
			a.logger.Debug("stop toggle hook", "error", err)
		}
	}, nil
}
