package streamquality

import (
	"context"
	"log/slog"
	"testing"

	"github.com/muselink/muselink/messaging"
	"github.com/muselink/muselink/settings"
)

func newTestModule(t *testing.T, area settings.Area) *Module {
	t.Helper()
	store := settings.NewStore(settings.StoreOptions{
		Key: "stream-quality", Version: 1, Defaults: Defaults(), Area: area,
	})
	m, err := New(context.Background(), store, slog.Default())
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	return m
}

func TestSetQualityValidates(t *testing.T) {
	m := newTestModule(t, settings.NewMemoryArea())

	if err := m.SetQuality("2"); err != nil {
		t.Fatalf("set quality 2: %v", err)
	}
	if m.Quality() != "2" {
		t.Errorf("quality = %q", m.Quality())
	}
	for _, bad := range []string{"", "0", "4", "hd1080"} {
		if err := m.SetQuality(bad); err == nil {
			t.Errorf("SetQuality(%q) accepted", bad)
		}
	}
	if m.Quality() != "2" {
		t.Error("rejected value overwrote the preference")
	}
}

func TestQualitySurvivesRestart(t *testing.T) {
	area := settings.NewMemoryArea()
	m := newTestModule(t, area)
	if err := m.SetQuality("3"); err != nil {
		t.Fatalf("set quality: %v", err)
	}

	reborn := newTestModule(t, area)
	if reborn.Quality() != "3" {
		t.Errorf("quality after restart = %q", reborn.Quality())
	}
}

// TestQualityChangeFlow walks the whole path a popup set-quality request
// takes: background handler, persistence, change push to the page peer.
func TestQualityChangeFlow(t *testing.T) {
	area := settings.NewMemoryArea()
	m := newTestModule(t, area)

	background := messaging.NewHandler()
	m.RegisterHandlers(background)
	background.Start()

	page := messaging.NewHandler()
	var applied []string
	page.On("set-quality", func(_ context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		applied = append(applied, msg.String("quality"))
		return messaging.OKResponse(), nil
	})
	page.Start()

	sender := messaging.NewSender()
	sender.SetBackground(background.Transport())
	sender.SetTarget("tab-1", page.Transport())
	m.OnChange(func(quality string) {
		sender.Send(context.Background(),
			messaging.NewMessage("set-quality", map[string]any{"quality": quality}),
			messaging.SendOptions{Target: "tab-1"})
	})

	ctx := context.Background()

	// Unset preference reads back as null.
	resp, err := sender.Send(ctx, messaging.NewMessage("get-stream-quality", nil), messaging.SendOptions{})
	if err != nil || !resp.OK {
		t.Fatalf("get unset = %+v, %v", resp, err)
	}
	if data, _ := resp.Data.(map[string]any); data["current"] != nil {
		t.Errorf("unset quality = %v, want null", data["current"])
	}

	resp, err = sender.Send(ctx,
		messaging.NewMessage("set-stream-quality", map[string]any{"value": "1"}),
		messaging.SendOptions{})
	if err != nil || !resp.OK {
		t.Fatalf("set over messages = %+v, %v", resp, err)
	}

	if len(applied) != 1 || applied[0] != "1" {
		t.Errorf("page received = %v", applied)
	}

	resp, err = sender.Send(ctx, messaging.NewMessage("get-stream-quality", nil), messaging.SendOptions{})
	if err != nil {
		t.Fatalf("get over messages: %v", err)
	}
	data, _ := resp.Data.(map[string]any)
	if data["current"] != "1" {
		t.Errorf("get over messages = %+v", resp)
	}

	if newTestModule(t, area).Quality() != "1" {
		t.Error("change not persisted")
	}

	resp, err = sender.Send(ctx,
		messaging.NewMessage("set-stream-quality", map[string]any{"value": "9"}),
		messaging.SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.OK {
		t.Error("invalid tier accepted over messages")
	}
}
