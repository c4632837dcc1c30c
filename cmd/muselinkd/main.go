// Command muselinkd is the background context: the long-lived daemon that
// owns the settings database, the background module set, the popup and
// MCP surfaces, and the page agents it injects into player tabs.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/muselink/muselink/capability"
	"github.com/muselink/muselink/config"
	"github.com/muselink/muselink/dbopen"
	"github.com/muselink/muselink/feature"
	"github.com/muselink/muselink/mcptools"
	"github.com/muselink/muselink/messaging"
	"github.com/muselink/muselink/modules/audiovisualizer"
	"github.com/muselink/muselink/modules/hotkeys"
	mpmodule "github.com/muselink/muselink/modules/miniplayer"
	"github.com/muselink/muselink/modules/notifications"
	"github.com/muselink/muselink/modules/streamquality"
	"github.com/muselink/muselink/pageagent"
	"github.com/muselink/muselink/popupui"
	"github.com/muselink/muselink/settings"

	_ "modernc.org/sqlite"
)

const version = "0.3.0"

func main() {
	configPath := env("MUSELINK_CONFIG", defaultConfigPath())
	logLevel := env("LOG_LEVEL", "info")

	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	// Settings database.
	db, err := dbopen.Open(cfg.Settings.Path, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("open settings db", "path", cfg.Settings.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	area, err := settings.NewSQLiteArea(db)
	if err != nil {
		slog.Error("init settings area", "error", err)
		os.Exit(1)
	}

	caps := capability.Detect(&capability.HostProbe{
		DevToolsURL:  cfg.Browser.Remote,
		SettingsPath: cfg.Settings.Path,
		CommandAddr:  cfg.Popup.Listen,
	})
	logger.Info("capabilities detected",
		"runtime", caps.Runtime, "notifications", caps.Notifications,
		"documentPiP", caps.DocumentPiP)

	// Messaging backbone: the background handler serves every context,
	// the sender reaches page agents as they attach.
	handler := messaging.NewHandler(
		messaging.WithLogger(logger),
		messaging.WithMeta(messaging.Meta{Origin: "background"}))
	sender := messaging.NewSender()

	// Browser attach and page agent registry.
	browser, err := pageagent.Connect(ctx, cfg.Browser.Remote, logger)
	if err != nil {
		slog.Error("connect browser", "error", err)
		os.Exit(1)
	}
	defer browser.Close()

	registry := pageagent.NewRegistry(browser, sender, handler.Transport(), caps, logger,
		pageagent.WithTrackInterval(cfg.Observer.TrackInterval),
		pageagent.WithMiniPlayerInterval(cfg.Observer.MiniPlayerInterval))
	defer registry.CloseAll()
	executor := messaging.NewActionExecutor(sender, registry, logger)

	// Background module set.
	newStore := func(key string, defaults map[string]any) *settings.Store {
		return settings.NewStore(settings.StoreOptions{
			Key: key, Version: 1, Defaults: defaults, Area: area, Logger: logger,
		})
	}

	var notifier notifications.Notifier = nopNotifier{}
	if caps.Notifications {
		notifier = notifications.NewSystemNotifier()
	}

	hkMod, err := hotkeys.New(ctx, newStore("hotkeys", hotkeys.Defaults()), registry, executor, logger)
	if err != nil {
		slog.Error("init hotkeys", "error", err)
		os.Exit(1)
	}
	ntMod, err := notifications.New(ctx, newStore("notifications", notifications.Defaults()), notifier, logger)
	if err != nil {
		slog.Error("init notifications", "error", err)
		os.Exit(1)
	}
	avMod, err := audiovisualizer.New(ctx, newStore("audio-visualizer", audiovisualizer.Defaults()), logger)
	if err != nil {
		slog.Error("init audio-visualizer", "error", err)
		os.Exit(1)
	}
	sqMod, err := streamquality.New(ctx, newStore("stream-quality", streamquality.Defaults()), logger)
	if err != nil {
		slog.Error("init stream-quality", "error", err)
		os.Exit(1)
	}
	mpMod, err := mpmodule.New(ctx, newStore("mini-player", mpmodule.Defaults()), logger)
	if err != nil {
		slog.Error("init mini-player", "error", err)
		os.Exit(1)
	}

	// Settings changes are pushed to attached agents; a detached agent
	// reads fresh state on its next attach.
	avMod.OnChange(func(field string, value any) {
		registry.Broadcast(ctx, messaging.NewMessage(
			"set-audio-visualizer-"+field, map[string]any{field: value}))
	})
	sqMod.OnChange(func(quality string) {
		registry.Broadcast(ctx, messaging.NewMessage(
			"set-quality", map[string]any{"quality": quality}))
	})
	mpMod.OnChange(func(enabled bool) {
		registry.Broadcast(ctx, messaging.NewMessage(
			"set-mini-player-enabled", map[string]any{"enabled": enabled}))
	})

	ntMod.RegisterHandlers(handler)
	avMod.RegisterHandlers(handler)
	sqMod.RegisterHandlers(handler)
	mpMod.RegisterHandlers(handler)

	registerPageRelays(handler, sender, registry)

	fctx := feature.NewContext(caps)
	modules := []feature.Module{hkMod, ntMod, avMod, sqMod, mpMod}
	if err := feature.Initialize(ctx, fctx, modules); err != nil {
		// One broken module must not take the daemon down.
		logger.Error("module init failed", "error", err)
	}
	handler.Start()
	defer handler.Stop()

	// Attach an agent to the player tab; not fatal when none is open yet,
	// the executor re-injects on first use.
	go func() {
		if _, err := registry.AttachFirst(ctx); err != nil {
			logger.Warn("initial page attach failed", "error", err)
		}
	}()

	// Control surface: popup routes, command route, MCP tools.
	popup := popupui.NewServer(fctx.Popup, handler, sender, registry, executor, logger)
	mcpSvc := mcptools.NewService(executor, sender, registry, logger)
	mcpSrv := mcpSvc.NewServer(version)

	router := chi.NewRouter()
	router.Mount("/", popup.Router())
	router.Mount("/mcp", mcpSvc.HTTPHandler(mcpSrv))
	router.Post("/command/{command}", func(w http.ResponseWriter, r *http.Request) {
		hkMod.HandleCommand(r.Context(), chi.URLParam(r, "command"))
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{Addr: cfg.Popup.Listen, Handler: router}
	go func() {
		logger.Info("control surface listening", "addr", cfg.Popup.Listen, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	for _, m := range fctx.Modules.All() {
		m.Destroy()
	}
}

// nopNotifier swallows notifications on hosts without a notifier.
type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, notifications.Notification) error { return nil }
func (nopNotifier) Clear(context.Context, string) error                              { return nil }

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "muselink.yaml"
	}
	return home + "/.config/muselink/config.yaml"
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
