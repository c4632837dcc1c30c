package pageagent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/muselink/muselink/messaging"
	"github.com/muselink/muselink/player"
)

type stubAdapter struct {
	mu    sync.Mutex
	state player.PlaybackState
}

func (a *stubAdapter) set(state player.PlaybackState) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
}

func (a *stubAdapter) PlaybackState(context.Context) (player.PlaybackState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state, nil
}

func (a *stubAdapter) ExecuteAction(context.Context, player.Action) error { return nil }
func (a *stubAdapter) SeekTo(context.Context, float64) error              { return nil }
func (a *stubAdapter) TrackDetailsHTML(context.Context) (string, error)   { return "", nil }

// trackRecorder serves track-changed and records each reported state.
type trackRecorder struct {
	mu     sync.Mutex
	states []player.PlaybackState
}

func (r *trackRecorder) handler() *messaging.Handler {
	h := messaging.NewHandler()
	h.On("track-changed", func(_ context.Context, msg messaging.Message, _ messaging.Meta) (messaging.Response, error) {
		state, _ := msg.Field("state")
		r.mu.Lock()
		r.states = append(r.states, player.ParseState(state))
		r.mu.Unlock()
		return messaging.OKResponse(), nil
	})
	h.Start()
	return h
}

func (r *trackRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func newObserverHarness(t *testing.T) (*stubAdapter, *trackRecorder, *TrackObserver) {
	t.Helper()
	adapter := &stubAdapter{}
	recorder := &trackRecorder{}

	sender := messaging.NewSender()
	sender.SetBackground(recorder.handler().Transport())

	obs := NewTrackObserver(adapter, sender, 5*time.Millisecond, nil)
	t.Cleanup(obs.Stop)
	return adapter, recorder, obs
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestObserverReportsTrackChange(t *testing.T) {
	adapter, recorder, obs := newObserverHarness(t)
	adapter.set(player.PlaybackState{Title: "Song A", Artist: "Artist", IsPlaying: true})

	obs.Start(context.Background())
	waitFor(t, func() bool { return recorder.count() == 1 })

	recorder.mu.Lock()
	got := recorder.states[0]
	recorder.mu.Unlock()
	if got.Title != "Song A" || got.Artist != "Artist" {
		t.Fatalf("reported state = %+v", got)
	}
}

func TestObserverReportsEachIdentityOnce(t *testing.T) {
	adapter, recorder, obs := newObserverHarness(t)
	adapter.set(player.PlaybackState{Title: "Song A", Artist: "Artist", IsPlaying: true})

	obs.Start(context.Background())
	waitFor(t, func() bool { return recorder.count() == 1 })

	// Same track keeps polling without re-reporting.
	time.Sleep(30 * time.Millisecond)
	if recorder.count() != 1 {
		t.Fatalf("reported %d times for one identity", recorder.count())
	}

	adapter.set(player.PlaybackState{Title: "Song B", Artist: "Artist", IsPlaying: true})
	waitFor(t, func() bool { return recorder.count() == 2 })
}

func TestObserverSkipsPausedAndIncomplete(t *testing.T) {
	adapter, recorder, obs := newObserverHarness(t)

	obs.Start(context.Background())

	adapter.set(player.PlaybackState{Title: "Song A", Artist: "Artist", IsPlaying: false})
	time.Sleep(30 * time.Millisecond)
	adapter.set(player.PlaybackState{Title: "Song A", IsPlaying: true})
	time.Sleep(30 * time.Millisecond)

	if recorder.count() != 0 {
		t.Fatalf("reported %d times for paused/incomplete states", recorder.count())
	}
}
