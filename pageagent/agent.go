package pageagent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/muselink/muselink/bridge"
	"github.com/muselink/muselink/capability"
	"github.com/muselink/muselink/feature"
	"github.com/muselink/muselink/messaging"
	"github.com/muselink/muselink/miniplayer"
	"github.com/muselink/muselink/player"
	"github.com/muselink/muselink/visualizer"
)

// AgentConfig wires one Agent to its page and its background peer.
type AgentConfig struct {
	Target       string
	Page         *rod.Page
	Background   messaging.Transport
	Capabilities capability.Snapshot
	Logger       *slog.Logger

	// TrackInterval and MiniPlayerInterval override the page polling
	// loops. Zero keeps the package defaults.
	TrackInterval      time.Duration
	MiniPlayerInterval time.Duration
}

// Agent is the page-side execution context for one attached tab. It owns
// its own module registry and interacts with the background exclusively
// through serialized messages, exactly like the other contexts.
type Agent struct {
	target  string
	page    *rod.Page
	adapter player.Adapter

	handler    *messaging.Handler
	sender     *messaging.Sender
	fctx       *feature.Context
	overlay    *visualizer.Manager
	audio      *bridge.AudioBridge
	quality    *bridge.QualityBridge
	controller *miniplayer.Controller
	observer   *TrackObserver
	logger     *slog.Logger

	mu      sync.Mutex
	started bool
}

// NewAgent builds the page context. Nothing touches the page until Start.
func NewAgent(cfg AgentConfig) *Agent {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("target", cfg.Target)

	adapter := player.NewRodAdapter(cfg.Page)

	sender := messaging.NewSender()
	sender.SetBackground(cfg.Background)

	a := &Agent{
		target:  cfg.Target,
		page:    cfg.Page,
		adapter: adapter,
		sender:  sender,
		fctx:    feature.NewContext(cfg.Capabilities),
		overlay: visualizer.NewManager(
			NewCanvasFactory(cfg.Page, logger),
			NewTrackerFactory(cfg.Page, logger),
			visualizer.WithLogger(logger)),
		audio:    bridge.NewAudioBridge(cfg.Page, logger),
		quality:  bridge.NewQualityBridge(cfg.Page, logger),
		observer: NewTrackObserver(adapter, sender, cfg.TrackInterval, logger),
		logger:   logger,
	}

	strategy := miniplayer.ChooseStrategy(cfg.Capabilities, cfg.Page, logger)
	rendererFactory := miniplayer.NopRendererFactory()
	if cfg.Capabilities.DocumentPiP {
		rendererFactory = miniplayer.DOMRendererFactory(cfg.Page, logger)
	}
	ctrlOpts := []miniplayer.Option{miniplayer.WithLogger(logger)}
	if cfg.MiniPlayerInterval > 0 {
		ctrlOpts = append(ctrlOpts, miniplayer.WithPollInterval(cfg.MiniPlayerInterval))
	}
	a.controller = miniplayer.NewController(adapter, strategy, a.overlay, rendererFactory, ctrlOpts...)

	a.handler = messaging.NewHandler(
		messaging.WithLogger(logger),
		messaging.WithMeta(messaging.Meta{Target: cfg.Target, Origin: "page"}))
	a.registerHandlers()
	return a
}

// Target returns the page target id this agent is attached to.
func (a *Agent) Target() string { return a.target }

// Transport returns the byte face for the background's sender.
func (a *Agent) Transport() messaging.Transport { return a.handler.Transport() }

// Start pulls the current settings from the background, initializes the
// page module set accordingly, and begins serving messages.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.mu.Unlock()

	a.handler.Start()
	a.observer.Start(ctx)

	a.overlay.SetStyle(visualizer.Style(a.stringSetting(ctx, "get-audio-visualizer-style", string(visualizer.StyleBars))))
	a.overlay.SetTarget(visualizer.Target(a.stringSetting(ctx, "get-audio-visualizer-target", string(visualizer.TargetAuto))))

	modules := []feature.Module{
		&pageModule{
			id: "audio-visualizer", name: "Audio visualizer overlay",
			desc:    "Overlay canvases driven by the page's audio",
			enabled: a.boolSetting(ctx, "get-audio-visualizer-enabled", false),
			init:    a.startVisualizer,
			destroy: func() { a.stopVisualizer(context.Background()) },
		},
		&pageModule{
			id: "mini-player", name: "Mini player controller",
			desc:    "Floating window driven from the native affordance",
			enabled: a.boolSetting(ctx, "get-mini-player-enabled", false),
			init:    a.startMiniPlayer,
			destroy: a.controller.Destroy,
		},
	}
	if err := feature.Initialize(ctx, a.fctx, modules); err != nil {
		return fmt.Errorf("pageagent: init modules: %w", err)
	}
	return nil
}

// Stop tears the whole page context down. Idempotent.
func (a *Agent) Stop() {
	a.mu.Lock()
	started := a.started
	a.started = false
	a.mu.Unlock()
	if !started {
		return
	}

	a.handler.Stop()
	a.observer.Stop()
	a.controller.Destroy()
	a.overlay.DestroyAll()
	a.audio.Destroy()
	a.quality.Destroy()
}

func (a *Agent) startVisualizer(ctx context.Context) error {
	if err := a.overlay.AttachPlayerBar(player.PlayerBarSelector); err != nil {
		a.logger.Warn("attach player-bar surface", "error", err)
	}
	if err := a.overlay.AttachSongArt(player.SongArtSelector); err != nil {
		a.logger.Warn("attach song-art surface", "error", err)
	}
	if err := a.audio.Inject(ctx, a.overlay.UpdateFrequency); err != nil {
		return err
	}
	if err := a.audio.Start(ctx); err != nil {
		return err
	}
	a.overlay.StartAll()
	return nil
}

func (a *Agent) stopVisualizer(ctx context.Context) {
	if err := a.audio.Stop(ctx); err != nil {
		a.logger.Debug("stop audio bridge", "error", err)
	}
	a.overlay.StopAll()
}

// startMiniPlayer hijacks the native affordance in the background; the
// button renders lazily, so the wait must not block module init.
func (a *Agent) startMiniPlayer(ctx context.Context) error {
	go func() {
		affordance := NewAffordance(a.page, a.logger)
		if err := a.controller.HijackNative(ctx, affordance); err != nil {
			a.logger.Warn("hijack native mini-player button", "error", err)
		}
	}()
	return nil
}

func (a *Agent) registerHandlers() {
	h := a.handler

	h.On("playback-action", func(ctx context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		action := msg.String("action")
		if !player.ValidAction(action) {
			return messaging.Response{}, fmt.Errorf("unknown action %q", action)
		}
		if err := a.adapter.ExecuteAction(ctx, player.Action(action)); err != nil {
			return messaging.Response{}, err
		}
		return messaging.OKResponse(), nil
	})

	h.On("get-playback-state", func(ctx context.Context, _ messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		state, err := a.adapter.PlaybackState(ctx)
		if err != nil {
			return messaging.Response{}, err
		}
		return messaging.DataResponse(state), nil
	})

	h.On("get-track-details", func(ctx context.Context, _ messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		html, err := a.adapter.TrackDetailsHTML(ctx)
		if err != nil {
			return messaging.Response{}, err
		}
		return messaging.DataResponse(html), nil
	})

	h.On("seek-to", func(ctx context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		seconds, ok := msg.Field("seconds")
		s, isNum := seconds.(float64)
		if !ok || !isNum {
			return messaging.Response{}, fmt.Errorf("seek-to needs a numeric seconds field")
		}
		if err := a.adapter.SeekTo(ctx, s); err != nil {
			return messaging.Response{}, err
		}
		return messaging.OKResponse(), nil
	})

	h.On("get-quality", func(ctx context.Context, _ messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		if err := a.quality.Inject(ctx); err != nil {
			return messaging.Response{}, err
		}
		data, err := a.quality.Get(ctx)
		if err != nil {
			return messaging.Response{}, err
		}
		var current any
		if data.Current != "" {
			current = data.Current
		}
		return messaging.DataResponse(map[string]any{"current": current}), nil
	})

	h.On("set-quality", func(ctx context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		if err := a.quality.Inject(ctx); err != nil {
			return messaging.Response{}, err
		}
		if err := a.quality.Set(ctx, msg.String("quality")); err != nil {
			return messaging.Response{}, err
		}
		return messaging.OKResponse(), nil
	})

	h.On("inject-audio-bridge", func(ctx context.Context, _ messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		if err := a.audio.Inject(ctx, a.overlay.UpdateFrequency); err != nil {
			return messaging.Response{}, err
		}
		return messaging.OKResponse(), nil
	})

	h.On("inject-quality-bridge", func(ctx context.Context, _ messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		if err := a.quality.Inject(ctx); err != nil {
			return messaging.Response{}, err
		}
		return messaging.OKResponse(), nil
	})

	h.On("resume-audio", func(ctx context.Context, _ messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		if err := a.audio.Resume(ctx); err != nil {
			return messaging.Response{}, err
		}
		return messaging.OKResponse(), nil
	})

	h.On("set-audio-visualizer-enabled", func(ctx context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		if msg.Bool("enabled") {
			if err := a.startVisualizer(ctx); err != nil {
				return messaging.Response{}, err
			}
		} else {
			a.stopVisualizer(ctx)
		}
		return messaging.OKResponse(), nil
	})

	h.On("set-audio-visualizer-style", func(_ context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		style := msg.String("style")
		if !visualizer.ValidStyle(style) {
			return messaging.Response{}, fmt.Errorf("unknown style %q", style)
		}
		a.overlay.SetStyle(visualizer.Style(style))
		return messaging.OKResponse(), nil
	})

	h.On("set-audio-visualizer-target", func(_ context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		target := msg.String("target")
		if !visualizer.ValidTarget(target) {
			return messaging.Response{}, fmt.Errorf("unknown target %q", target)
		}
		a.overlay.SetTarget(visualizer.Target(target))
		return messaging.OKResponse(), nil
	})

	h.On("set-mini-player-enabled", func(ctx context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		if !msg.Bool("enabled") {
			a.controller.Close()
		}
		return messaging.OKResponse(), nil
	})
}

func (a *Agent) boolSetting(ctx context.Context, msgType string, fallback bool) bool {
	resp, err := a.sender.Send(ctx, messaging.NewMessage(msgType, nil), messaging.SendOptions{})
	if err != nil || !resp.OK {
		a.logger.Debug("read background setting", "type", msgType, "error", err)
		return fallback
	}
	if b, ok := resp.Data.(bool); ok {
		return b
	}
	return fallback
}

func (a *Agent) stringSetting(ctx context.Context, msgType, fallback string) string {
	resp, err := a.sender.Send(ctx, messaging.NewMessage(msgType, nil), messaging.SendOptions{})
	if err != nil || !resp.OK {
		a.logger.Debug("read background setting", "type", msgType, "error", err)
		return fallback
	}
	if s, ok := resp.Data.(string); ok && s != "" {
		return s
	}
	return fallback
}

// pageModule adapts one page-side feature to the module lifecycle.
type pageModule struct {
	id, name, desc string
	enabled        bool
	init           func(ctx context.Context) error
	destroy        func()
}

func (m *pageModule) ID() string                     { return m.id }
func (m *pageModule) Name() string                   { return m.name }
func (m *pageModule) Description() string            { return m.desc }
func (m *pageModule) Init(ctx context.Context) error { return m.init(ctx) }
func (m *pageModule) Destroy()                       { m.destroy() }
func (m *pageModule) Enabled() bool                  { return m.enabled }
func (m *pageModule) SetEnabled(enabled bool)        { m.enabled = enabled }
