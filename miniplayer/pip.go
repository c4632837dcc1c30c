package miniplayer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"

	"github.com/muselink/muselink/capability"
	"github.com/muselink/muselink/player"
)

// pipContainer is the id of the DOM node the document pip window hosts.
const pipContainer = "muselink-pip"

// ChooseStrategy picks the floating-surface strategy the host supports:
// document picture-in-picture when available, video-element fallback
// otherwise.
func ChooseStrategy(caps capability.Snapshot, page *rod.Page, logger *slog.Logger) Strategy {
	if caps.DocumentPiP {
		return &DocumentPiPStrategy{page: page, logger: logger}
	}
	return &VideoPiPStrategy{page: page, logger: logger}
}

// pipWindow is the shared Window implementation for both strategies.
type pipWindow struct {
	container string
	done      chan struct{}
	once      sync.Once
	closeFn   func()
	cleanup   func()
}

func (w *pipWindow) Container() string     { return w.container }
func (w *pipWindow) Done() <-chan struct{} { return w.done }

func (w *pipWindow) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
	w.markClosed()
}

func (w *pipWindow) markClosed() {
	w.once.Do(func() {
		close(w.done)
		if w.cleanup != nil {
			w.cleanup()
		}
	})
}

const docPiPOpenJS = `async () => {
	if (window.__muselinkPiPWindow) return;
	const pip = await documentPictureInPicture.requestWindow({ width: 340, height: 200 });
	pip.document.body.style.margin = "0";
	pip.document.body.innerHTML = '<div id="muselink-pip"></div>';
	pip.addEventListener("pagehide", () => {
		window.__muselinkPiPWindow = null;
		window.__muselinkPiPClosed("closed");
	});
	window.__muselinkPiPWindow = pip;
}`

// DocumentPiPStrategy opens a document picture-in-picture window hosting
// a DOM container for the renderer and the overlay canvas.
type DocumentPiPStrategy struct {
	page   *rod.Page
	logger *slog.Logger
}

// Open opens the window and wires its close event back through an
// exposed hook, so Done fires even when the user closes it.
func (s *DocumentPiPStrategy) Open(ctx context.Context) (Window, error) {
	win := &pipWindow{container: pipContainer, done: make(chan struct{})}

	stop, err := s.page.Expose("__muselinkPiPClosed", func(gson.JSON) (any, error) {
		win.markClosed()
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("miniplayer: expose close hook: %w", err)
	}
	win.cleanup = func() {
		if err := stop(); err != nil && s.logger != nil {
			s.logger.Debug("stop pip close hook", "error", err)
		}
	}

	if _, err := s.page.Context(ctx).Eval(docPiPOpenJS); err != nil {
		win.cleanup()
		return nil, fmt.Errorf("miniplayer: open document pip: %w", err)
	}

	win.closeFn = func() {
		_, err := s.page.Eval(`() => { const w = window.__muselinkPiPWindow; if (w) w.close(); }`)
		if err != nil && s.logger != nil {
			s.logger.Debug("close pip window", "error", err)
		}
	}
	return win, nil
}

const videoPiPOpenJS = `async () => {
	const video = document.querySelector("video");
	if (!video) throw new Error("no video element");
	if (document.pictureInPictureElement === video) return;
	video.addEventListener("leavepictureinpicture", () => {
		window.__muselinkPiPClosed("closed");
	}, { once: true });
	await video.requestPictureInPicture();
}`

// VideoPiPStrategy floats the bare video element. It hosts no DOM, so the
// renderer degrades to a no-op and overlays skip it; still better than
// nothing on hosts without document picture-in-picture.
type VideoPiPStrategy struct {
	page   *rod.Page
	logger *slog.Logger
}

func (s *VideoPiPStrategy) Open(ctx context.Context) (Window, error) {
	win := &pipWindow{container: pipContainer, done: make(chan struct{})}

	stop, err := s.page.Expose("__muselinkPiPClosed", func(gson.JSON) (any, error) {
		win.markClosed()
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("miniplayer: expose close hook: %w", err)
	}
	win.cleanup = func() {
		if err := stop(); err != nil && s.logger != nil {
			s.logger.Debug("stop pip close hook", "error", err)
		}
	}

	if _, err := s.page.Context(ctx).Eval(videoPiPOpenJS); err != nil {
		win.cleanup()
		return nil, fmt.Errorf("miniplayer: open video pip: %w", err)
	}

	win.closeFn = func() {
		_, err := s.page.Eval(`() => { if (document.pictureInPictureElement) document.exitPictureInPicture(); }`)
		if err != nil && s.logger != nil {
			s.logger.Debug("exit video pip", "error", err)
		}
	}
	return win, nil
}

const domRendererBootJS = `() => {
	const pip = window.__muselinkPiPWindow;
	if (!pip) return;
	const root = pip.document.getElementById("muselink-pip");
	if (!root || root.dataset.ready) return;
	root.dataset.ready = "1";
	root.innerHTML =
		'<div style="font-family:sans-serif;padding:8px">' +
		'<div id="mp-title" style="font-weight:bold"></div>' +
		'<div id="mp-artist" style="color:#666"></div>' +
		'<input id="mp-seek" type="range" min="0" max="100" value="0" style="width:100%">' +
		'<div>' +
		'<button id="mp-prev">&#9198;</button>' +
		'<button id="mp-play">&#9199;</button>' +
		'<button id="mp-next">&#9197;</button>' +
		'</div></div>';
	const doc = pip.document;
	doc.getElementById("mp-prev").onclick = () => window.__muselinkPiPAction("previous");
	doc.getElementById("mp-play").onclick = () => window.__muselinkPiPAction("togglePlay");
	doc.getElementById("mp-next").onclick = () => window.__muselinkPiPAction("next");
	doc.getElementById("mp-seek").onchange = (e) => window.__muselinkPiPSeek(Number(e.target.value));
}`

const domRendererUpdateJS = `(title, artist, progress, duration) => {
	const pip = window.__muselinkPiPWindow;
	if (!pip) return;
	const doc = pip.document;
	const set = (id, text) => { const el = doc.getElementById(id); if (el) el.textContent = text; };
	set("mp-title", title);
	set("mp-artist", artist);
	const seek = doc.getElementById("mp-seek");
	if (seek && duration > 0) {
		seek.max = String(duration);
		seek.value = String(progress);
	}
}`

// DOMRendererFactory builds renderers that draw into the document pip
// window. User interactions come back through exposed hooks and land in
// the Controls callbacks.
func DOMRendererFactory(page *rod.Page, logger *slog.Logger) RendererFactory {
	return func(w Window, controls Controls) (Renderer, error) {
		stopAction, err := page.Expose("__muselinkPiPAction", func(payload gson.JSON) (any, error) {
			if controls.OnAction != nil {
				controls.OnAction(player.Action(payload.Str()))
			}
			return nil, nil
		})
		if err != nil {
			return nil, fmt.Errorf("miniplayer: expose action hook: %w", err)
		}
		stopSeek, err := page.Expose("__muselinkPiPSeek", func(payload gson.JSON) (any, error) {
			if controls.OnSeek != nil {
				controls.OnSeek(payload.Num())
			}
			return nil, nil
		})
		if err != nil {
			stopAction()
			return nil, fmt.Errorf("miniplayer: expose seek hook: %w", err)
		}

		go func() {
			<-w.Done()
			stopAction()
			stopSeek()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := page.Context(ctx).Eval(domRendererBootJS); err != nil {
			return nil, fmt.Errorf("miniplayer: bootstrap renderer: %w", err)
		}
		return &domRenderer{page: page, logger: logger}, nil
	}
}

type domRenderer struct {
	page   *rod.Page
	logger *slog.Logger
}

func (r *domRenderer) Render(state player.PlaybackState) {
	_, err := r.page.Eval(domRendererUpdateJS,
		state.Title, state.Artist, state.Progress, state.Duration)
	if err != nil && r.logger != nil {
		r.logger.Debug("render mini-player", "error", err)
	}
}

// NopRendererFactory returns renderers that do nothing, used with the
// video fallback where no DOM is available.
func NopRendererFactory() RendererFactory {
	return func(Window, Controls) (Renderer, error) { return nopRenderer{}, nil }
}

type nopRenderer struct{}

func (nopRenderer) Render(player.PlaybackState) {}
