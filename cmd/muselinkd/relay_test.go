package main

import (
	"context"
	"testing"

	"github.com/muselink/muselink/messaging"
)

type stubPageRegistry struct {
	target  string
	injects int
}

func (r *stubPageRegistry) FindTarget(context.Context) (string, bool, error) {
	return r.target, r.target != "", nil
}

func (r *stubPageRegistry) Inject(context.Context, string) error {
	r.injects++
	return nil
}

// relayHarness wires a background handler with the page relays in front
// of a recording page handler, the same topology the daemon builds.
func relayHarness(t *testing.T, registry *stubPageRegistry) (*messaging.Sender, map[string]messaging.Message) {
	t.Helper()
	received := make(map[string]messaging.Message)

	page := messaging.NewHandler()
	for _, msgType := range []string{"playback-action", "get-playback-state", "seek-to", "inject-audio-bridge"} {
		page.On(msgType, func(_ context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
			received[msg.Type] = msg
			return messaging.OKResponse(), nil
		})
	}
	page.Start()

	sender := messaging.NewSender()
	if registry.target != "" {
		sender.SetTarget(registry.target, page.Transport())
	}

	background := messaging.NewHandler()
	registerPageRelays(background, sender, registry)
	background.Start()
	sender.SetBackground(background.Transport())
	return sender, received
}

func TestSeekRelayReachesPlayerPage(t *testing.T) {
	sender, received := relayHarness(t, &stubPageRegistry{target: "tab-1"})

	resp, err := sender.Send(context.Background(),
		messaging.NewMessage("seek-to", map[string]any{"seconds": 42.5}),
		messaging.SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !resp.OK {
		t.Fatalf("relay failed: %s", resp.Error)
	}

	msg, ok := received["seek-to"]
	if !ok {
		t.Fatal("page never received seek-to")
	}
	if seconds, _ := msg.Field("seconds"); seconds != 42.5 {
		t.Errorf("seconds = %v, want 42.5", seconds)
	}
}

func TestPlaybackRelaysFailWithoutPlayerPage(t *testing.T) {
	sender, received := relayHarness(t, &stubPageRegistry{})

	for _, msgType := range []string{"playback-action", "get-playback-state", "seek-to"} {
		resp, err := sender.Send(context.Background(),
			messaging.NewMessage(msgType, nil), messaging.SendOptions{})
		if err != nil {
			t.Fatalf("%s: send: %v", msgType, err)
		}
		if resp.OK || resp.Error != "no player page open" {
			t.Errorf("%s: response = %+v", msgType, resp)
		}
	}
	if len(received) != 0 {
		t.Errorf("page received %v with no target", received)
	}
}

func TestInjectRelayForcesAgentBeforeForwarding(t *testing.T) {
	registry := &stubPageRegistry{target: "tab-1"}
	sender, received := relayHarness(t, registry)

	resp, err := sender.Send(context.Background(),
		messaging.NewMessage("inject-audio-bridge", nil), messaging.SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !resp.OK {
		t.Fatalf("relay failed: %s", resp.Error)
	}
	if registry.injects != 1 {
		t.Errorf("injects = %d, want 1", registry.injects)
	}
	if _, ok := received["inject-audio-bridge"]; !ok {
		t.Error("page never received the bridge request")
	}
}
