package pageagent

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/muselink/muselink/messaging"
	"github.com/muselink/muselink/player"
)

// TrackObserver polls the adapter and reports track changes to the
// background. A change is a new title+artist identity while playing;
// paused pages and pages with incomplete identity are skipped so half
// scraped states never produce phantom notifications.
type TrackObserver struct {
	adapter  player.Adapter
	sender   *messaging.Sender
	interval time.Duration
	logger   *slog.Logger

	lastKey string
	cancel  context.CancelFunc
}

// NewTrackObserver creates a stopped observer. Interval <= 0 means the
// default 2s poll.
func NewTrackObserver(adapter player.Adapter, sender *messaging.Sender, interval time.Duration, logger *slog.Logger) *TrackObserver {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackObserver{adapter: adapter, sender: sender, interval: interval, logger: logger}
}

// Start begins polling until Stop or ctx cancellation.
func (o *TrackObserver) Start(ctx context.Context) {
	if o.cancel != nil {
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	go o.run(pollCtx)
}

// Stop halts polling. Idempotent.
func (o *TrackObserver) Stop() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *TrackObserver) run(ctx context.Context) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

func (o *TrackObserver) poll(ctx context.Context) {
	state, err := o.adapter.PlaybackState(ctx)
	if err != nil {
		o.logger.Debug("poll playback state", "error", err)
		return
	}
	if !state.IsPlaying {
		return
	}
	key := state.TrackKey()
	if key == "" || key == o.lastKey {
		return
	}
	o.lastKey = key

	resp, err := o.sender.Send(ctx, trackChangedMessage(state), messaging.SendOptions{})
	if err != nil {
		o.logger.Warn("report track change", "error", err)
		return
	}
	if !resp.OK {
		o.logger.Warn("track change rejected", "error", resp.Error)
	}
}

// trackChangedMessage nests the snapshot under the envelope's state field.
func trackChangedMessage(state player.PlaybackState) messaging.Message {
	raw, _ := json.Marshal(state)
	var fields map[string]any
	_ = json.Unmarshal(raw, &fields)
	return messaging.NewMessage("track-changed", map[string]any{"state": fields})
}
