package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
)

// Quality levels as the player reports them. "1" is the lowest tier,
// "3" the highest. An empty Current means the player has no quality
// menu open state to read yet.
type QualityData struct {
	Current string `json:"current"`
}

// ValidQuality reports whether s names a settable quality level.
func ValidQuality(s string) bool {
	return s == "1" || s == "2" || s == "3"
}

// qualityBridgeJS runs in the page world, where the player's internal
// API object is reachable. It publishes a tiny getter/setter pair the
// content side calls through Eval.
const qualityBridgeJS = `() => {
	if (window.__muselinkQualityBridge) return;

	const playerApi = () => {
		const el = document.querySelector("#movie_player");
		return el && typeof el.getPlaybackQuality === "function" ? el : null;
	};

	const tiers = { small: "1", medium: "2", large: "2", hd720: "3", hd1080: "3" };
	const picks = { "1": "small", "2": "medium", "3": "hd1080" };

	window.__muselinkQualityBridge = {
		get() {
			const api = playerApi();
			if (!api) return null;
			return tiers[api.getPlaybackQuality()] || null;
		},
		set(level) {
			const api = playerApi();
			if (!api) return false;
			api.setPlaybackQualityRange(picks[level], picks[level]);
			return true;
		},
	};
}`

// QualityBridge reads and sets the player's stream quality through a
// page-world script. Like the audio bridge it is injected at most once
// per instance.
type QualityBridge struct {
	page   *rod.Page
	guard  guard
	logger *slog.Logger
}

// NewQualityBridge creates a bridge for one attached page.
func NewQualityBridge(page *rod.Page, logger *slog.Logger) *QualityBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &QualityBridge{page: page, logger: logger}
}

// Inject installs the page-world script. No-op when already injected.
func (b *QualityBridge) Inject(ctx context.Context) error {
	if !b.guard.enter() {
		return nil
	}
	if _, err := b.page.Context(ctx).Eval(qualityBridgeJS); err != nil {
		b.guard.reset()
		return fmt.Errorf("bridge: inject quality script: %w", err)
	}
	return nil
}

// Get returns the current quality tier. Current stays empty when the
// player API is not reachable yet; that is data, not an error.
func (b *QualityBridge) Get(ctx context.Context) (QualityData, error) {
	res, err := b.page.Context(ctx).Eval(
		`() => { const br = window.__muselinkQualityBridge; return br ? br.get() : null; }`)
	if err != nil {
		return QualityData{}, fmt.Errorf("bridge: get quality: %w", err)
	}
	return QualityData{Current: res.Value.Str()}, nil
}

// Set applies a quality tier.
func (b *QualityBridge) Set(ctx context.Context, level string) error {
	if !ValidQuality(level) {
		return fmt.Errorf("bridge: set quality: unknown level %q", level)
	}
	res, err := b.page.Context(ctx).Eval(
		`(level) => { const br = window.__muselinkQualityBridge; return br ? br.set(level) : false; }`, level)
	if err != nil {
		return fmt.Errorf("bridge: set quality: %w", err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("bridge: set quality: player api unavailable")
	}
	return nil
}

// Destroy re-arms the injection guard for the next page attachment.
func (b *QualityBridge) Destroy() {
	b.guard.reset()
}
