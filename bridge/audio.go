package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"
)

// audioBridgeJS runs in the page world. It wires an AnalyserNode onto the
// page's media element and, while started, posts one frequency snapshot
// per animation frame into the exposed hook. The bridge object itself is
// idempotent: repeated start/stop/resume commands are safe.
const audioBridgeJS = `() => {
	if (window.__muselinkAudioBridge) return;

	const bridge = {
		analyser: null,
		rafId: null,
		running: false,

		ensureAnalyser() {
			if (this.analyser) return this.analyser;
			const media = document.querySelector("video, audio");
			if (!media) return null;
			const ctx = new AudioContext();
			const source = ctx.createMediaElementSource(media);
			const analyser = ctx.createAnalyser();
			analyser.fftSize = 128;
			source.connect(analyser);
			analyser.connect(ctx.destination);
			this.ctx = ctx;
			this.analyser = analyser;
			return analyser;
		},

		tick() {
			if (!this.running) return;
			const analyser = this.ensureAnalyser();
			if (analyser) {
				const bins = new Uint8Array(analyser.frequencyBinCount);
				analyser.getByteFrequencyData(bins);
				window.__muselinkFrequencyData(JSON.stringify(Array.from(bins)));
			}
			this.rafId = requestAnimationFrame(() => this.tick());
		},

		start() {
			if (this.running) return;
			this.running = true;
			this.tick();
		},

		stop() {
			this.running = false;
			if (this.rafId !== null) {
				cancelAnimationFrame(this.rafId);
				this.rafId = null;
			}
		},

		resume() {
			if (this.ctx && this.ctx.state === "suspended") this.ctx.resume();
			this.start();
		},
	};

	window.__muselinkAudioBridge = bridge;
}`

// AudioBridge is the content-side handle to the page-world audio script.
// Inject is idempotent per bridge instance; Destroy re-arms it so a fresh
// page attachment can inject again.
type AudioBridge struct {
	page       *rod.Page
	guard      guard
	stopExpose func() error
	logger     *slog.Logger
}

// NewAudioBridge creates a bridge for one attached page.
func NewAudioBridge(page *rod.Page, logger *slog.Logger) *AudioBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioBridge{page: page, logger: logger}
}

// Inject installs the page-world script and routes its frequency
// snapshots to callback. Calling Inject on an already injected bridge is
// a no-op.
func (b *AudioBridge) Inject(ctx context.Context, callback func(data []byte)) error {
	if !b.guard.enter() {
		return nil
	}

	stop, err := b.page.Expose("__muselinkFrequencyData", func(payload gson.JSON) (any, error) {
		callback(decodeBins(payload.Str()))
		return nil, nil
	})
	if err != nil {
		b.guard.reset()
		return fmt.Errorf("bridge: expose frequency hook: %w", err)
	}
	b.stopExpose = stop

	if _, err := b.page.Context(ctx).Eval(audioBridgeJS); err != nil {
		b.teardown()
		return fmt.Errorf("bridge: inject audio script: %w", err)
	}
	return nil
}

// Start begins frequency delivery.
func (b *AudioBridge) Start(ctx context.Context) error {
	return b.command(ctx, "start")
}

// Stop pauses frequency delivery without removing the script.
func (b *AudioBridge) Stop(ctx context.Context) error {
	return b.command(ctx, "stop")
}

// Resume restarts delivery and wakes a suspended audio context, needed
// after the page regains user activation.
func (b *AudioBridge) Resume(ctx context.Context) error {
	return b.command(ctx, "resume")
}

func (b *AudioBridge) command(ctx context.Context, cmd string) error {
	_, err := b.page.Context(ctx).Eval(fmt.Sprintf(
		`() => { const br = window.__muselinkAudioBridge; if (br) br.%s(); }`, cmd))
	if err != nil {
		return fmt.Errorf("bridge: audio %s: %w", cmd, err)
	}
	return nil
}

// Destroy removes the relay hook and re-arms the injection guard. Safe to
// call repeatedly and on a never-injected bridge.
func (b *AudioBridge) Destroy() {
	b.teardown()
}

func (b *AudioBridge) teardown() {
	if b.stopExpose != nil {
		if err := b.stopExpose(); err != nil {
			b.logger.Debug("stop frequency hook", "error", err)
		}
		b.stopExpose = nil
	}
	b.guard.reset()
}

// decodeBins parses the JSON array of 0..255 bins posted by the page.
func decodeBins(raw string) []byte {
	// Tiny hand decode: the payload is a flat array of small ints at
	// animation-frame rate, not worth a full json.Unmarshal allocation
	// per frame.
	bins := make([]byte, 0, 64)
	n := -1
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= '0' && c <= '9':
			if n < 0 {
				n = 0
			}
			n = n*10 + int(c-'0')
		default:
			if n >= 0 {
				if n > 255 {
					n = 255
				}
				bins = append(bins, byte(n))
				n = -1
			}
		}
	}
	if n >= 0 {
		if n > 255 {
			n = 255
		}
		bins = append(bins, byte(n))
	}
	return bins
}
