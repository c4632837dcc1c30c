package main

import (
	"context"

	"github.com/muselink/muselink/messaging"
)

// pageRegistry is the slice of the agent registry the background relays
// need: locating the player tab and forcing a fresh agent into it.
type pageRegistry interface {
	FindTarget(ctx context.Context) (string, bool, error)
	Inject(ctx context.Context, target string) error
}

// registerPageRelays forwards player-bound requests arriving at the
// background (from the popup or MCP clients) to the page agent in the
// player tab. The inject relays force a fresh agent into the tab before
// forwarding, so a bridge request lands on a live page script.
func registerPageRelays(h *messaging.Handler, sender *messaging.Sender, registry pageRegistry) {
	for _, msgType := range []string{"playback-action", "get-playback-state", "seek-to"} {
		h.On(msgType, func(ctx context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
			target, ok, err := registry.FindTarget(ctx)
			if err != nil {
				return messaging.Response{}, err
			}
			if !ok {
				return messaging.FailResponse("no player page open"), nil
			}
			return sender.Send(ctx, msg, messaging.SendOptions{Target: target})
		})
	}

	for _, msgType := range []string{"inject-audio-bridge", "inject-quality-bridge"} {
		h.On(msgType, func(ctx context.Context, msg messaging.Message, meta messaging.Meta) (messaging.Response, error) {
			target := meta.Target
			if target == "" {
				var ok bool
				var err error
				target, ok, err = registry.FindTarget(ctx)
				if err != nil {
					return messaging.Response{}, err
				}
				if !ok {
					return messaging.FailResponse("no player page open"), nil
				}
			}
			if err := registry.Inject(ctx, target); err != nil {
				return messaging.Response{}, err
			}
			return sender.Send(ctx, msg, messaging.SendOptions{Target: target})
		})
	}
}
