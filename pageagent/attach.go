// Package pageagent is the content-side execution context: it attaches to
// the music player tab over CDP and runs the page modules there (adapter,
// track observer, visualizer overlay, bridges, mini-player controller).
// One Agent exists per attached tab; the Registry rebuilds agents on
// demand, which is what re-injection means in this rendition.
package pageagent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// playerOrigin identifies the music player tab among all open pages.
const playerOrigin = "https://music.youtube.com"

// Browser wraps the CDP connection. It either attaches to the user's
// running browser through its DevTools endpoint or launches a headful
// Chrome of its own.
type Browser struct {
	browser   *rod.Browser
	lnch      *launcher.Launcher
	ownLaunch bool
	logger    *slog.Logger
}

// Connect attaches to the DevTools endpoint when devtoolsURL is set, or
// launches a local headful Chrome otherwise.
func Connect(ctx context.Context, devtoolsURL string, logger *slog.Logger) (*Browser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Browser{logger: logger}

	wsURL := devtoolsURL
	if wsURL == "" {
		l := launcher.New().
			Headless(false).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("pageagent: launch browser: %w", err)
		}
		wsURL = u
		b.lnch = l
		b.ownLaunch = true
		logger.Info("launched local browser", "url", wsURL)
	} else {
		logger.Info("connecting to remote browser", "url", wsURL)
	}

	br := rod.New().Context(ctx).ControlURL(wsURL)
	if err := br.Connect(); err != nil {
		return nil, fmt.Errorf("pageagent: connect: %w", err)
	}
	b.browser = br
	return b, nil
}

// PlayerTargets lists the target ids of open player tabs.
func (b *Browser) PlayerTargets(ctx context.Context) ([]string, error) {
	pages, err := b.browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("pageagent: list pages: %w", err)
	}
	var targets []string
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if strings.HasPrefix(info.URL, playerOrigin) {
			targets = append(targets, string(p.TargetID))
		}
	}
	return targets, nil
}

// PageForTarget returns the page behind one target id.
func (b *Browser) PageForTarget(ctx context.Context, target string) (*rod.Page, error) {
	page, err := b.browser.Context(ctx).PageFromTarget(proto.TargetTargetID(target))
	if err != nil {
		return nil, fmt.Errorf("pageagent: attach target %s: %w", target, err)
	}
	return page, nil
}

// OpenPlayerPage opens a fresh player tab with stealth applied and waits
// for it to load.
func (b *Browser) OpenPlayerPage(ctx context.Context) (*rod.Page, error) {
	page, err := stealth.Page(b.browser)
	if err != nil {
		return nil, fmt.Errorf("pageagent: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := page.Context(navCtx).Navigate(playerOrigin); err != nil {
		page.Close()
		return nil, fmt.Errorf("pageagent: navigate %s: %w", playerOrigin, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		b.logger.Warn("player page load timeout", "error", err)
	}
	return page, nil
}

// SupportsDocumentPiP probes whether the browser exposes the document
// picture-in-picture API. Used by the capability snapshot.
func (b *Browser) SupportsDocumentPiP(ctx context.Context) bool {
	targets, err := b.PlayerTargets(ctx)
	if err != nil || len(targets) == 0 {
		return false
	}
	page, err := b.PageForTarget(ctx, targets[0])
	if err != nil {
		return false
	}
	res, err := page.Context(ctx).Eval(`() => "documentPictureInPicture" in window`)
	return err == nil && res.Value.Bool()
}

// Close disconnects, and kills the browser only when this process
// launched it. An attached user browser is left alone.
func (b *Browser) Close() {
	if err := b.browser.Close(); err != nil {
		b.logger.Debug("close browser connection", "error", err)
	}
	if b.ownLaunch && b.lnch != nil {
		b.lnch.Cleanup()
	}
}
