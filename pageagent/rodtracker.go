package pageagent

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"

	"github.com/muselink/muselink/visualizer"
)

const trackerBootJS = `() => {
	if (window.__muselinkVisTracker) return;
	const observed = new Map();
	const pending = new Map();
	let flushTimer = null;

	const flush = () => {
		flushTimer = null;
		if (pending.size === 0) return;
		const batch = {};
		for (const [sel, visible] of pending) batch[sel] = visible;
		pending.clear();
		window.__muselinkVisibility(JSON.stringify(batch));
	};

	const observer = new IntersectionObserver((entries) => {
		for (const entry of entries) {
			const sel = entry.target.dataset.muselinkSel;
			if (sel) pending.set(sel, entry.isIntersecting);
		}
		if (!flushTimer) flushTimer = setTimeout(flush, 0);
	});

	window.__muselinkVisTracker = {
		observe(sel) {
			if (observed.has(sel)) return;
			const el = document.querySelector(sel);
			if (!el) return;
			el.dataset.muselinkSel = sel;
			observed.set(sel, el);
			observer.observe(el);
		},
		unobserve(sel) {
			const el = observed.get(sel);
			if (!el) return;
			observed.delete(sel);
			observer.unobserve(el);
		},
		close() {
			observer.disconnect();
			observed.clear();
			window.__muselinkVisTracker = null;
		},
	};
}`

// rodTracker relays IntersectionObserver batches from the page into the
// overlay manager's callback. One tracker exists per visualizer session.
type rodTracker struct {
	page       *rod.Page
	mu         sync.Mutex
	closed     bool
	stopExpose func() error
	logger     *slog.Logger
}

// NewTrackerFactory returns the visibility tracker factory for one page.
func NewTrackerFactory(page *rod.Page, logger *slog.Logger) visualizer.TrackerFactory {
	return func(fn func(visualizer.VisibilityBatch)) visualizer.Tracker {
		t := &rodTracker{page: page, logger: logger}

		stop, err := page.Expose("__muselinkVisibility", func(payload gson.JSON) (any, error) {
			var raw map[string]bool
			if err := json.Unmarshal([]byte(payload.Str()), &raw); err != nil {
				logger.Debug("decode visibility batch", "error", err)
				return nil, nil
			}
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				fn(visualizer.VisibilityBatch(raw))
			}
			return nil, nil
		})
		if err != nil {
			logger.Error("expose visibility hook", "error", err)
		}
		t.stopExpose = stop

		if _, err := page.Eval(trackerBootJS); err != nil {
			logger.Error("install visibility tracker", "error", err)
		}
		return t
	}
}

func (t *rodTracker) Observe(container string) {
	t.eval(`(sel) => { const tr = window.__muselinkVisTracker; if (tr) tr.observe(sel); }`, container)
}

func (t *rodTracker) Unobserve(container string) {
	t.eval(`(sel) => { const tr = window.__muselinkVisTracker; if (tr) tr.unobserve(sel); }`, container)
}

// Close tears the page-world observer down. No callback fires afterwards.
func (t *rodTracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	stop := t.stopExpose
	t.stopExpose = nil
	t.mu.Unlock()

	t.eval(`() => { const tr = window.__muselinkVisTracker; if (tr) tr.close(); }`)
	if stop != nil {
		if err := stop(); err != nil {
			t.logger.Debug("stop visibility hook", "error", err)
		}
	}
}

func (t *rodTracker) eval(js string, args ...any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := t.page.Context(ctx).Eval(js, args...); err != nil {
		t.logger.Debug("visibility tracker eval", "error", err)
	}
}
