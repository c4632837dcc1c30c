package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/muselink/muselink/player"
)

// reattachInjector mimics the production recovery path: Inject wires a live
// handler transport for the target, as a real re-injection would.
type reattachInjector struct {
	sender  *Sender
	handler *Handler
	err     error
	calls   int
}

func (i *reattachInjector) Inject(_ context.Context, target string) error {
	i.calls++
	if i.err != nil {
		return i.err
	}
	if i.handler != nil {
		i.sender.SetTarget(target, i.handler.Transport())
	}
	return nil
}

func pageHandler(t *testing.T) (*Handler, *[]string) {
	t.Helper()
	var actions []string
	h := NewHandler()
	h.On("playback-action", func(_ context.Context, msg Message, _ Meta) (Response, error) {
		actions = append(actions, msg.String("action"))
		return OKResponse(), nil
	})
	h.On("get-playback-state", func(context.Context, Message, Meta) (Response, error) {
		return DataResponse(map[string]any{
			"title": "Song A", "artist": "Artist", "isPlaying": true,
		}), nil
	})
	h.Start()
	return h, &actions
}

func TestExecuteRecoversFromUnreachablePeer(t *testing.T) {
	sender := NewSender()
	handler, actions := pageHandler(t)
	injector := &reattachInjector{sender: sender, handler: handler}
	exec := NewActionExecutor(sender, injector, nil)

	// No transport wired for the target yet; the first send fails with
	// ErrPeerUnreachable and the executor must re-inject then retry.
	if err := exec.Execute(context.Background(), player.ActionNext, "tab-1"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if injector.calls != 1 {
		t.Errorf("inject calls = %d, want 1", injector.calls)
	}
	if len(*actions) != 1 || (*actions)[0] != "next" {
		t.Errorf("delivered actions = %v", *actions)
	}
}

func TestExecuteRetriesAtMostOnce(t *testing.T) {
	sender := NewSender()
	// Inject succeeds but wires nothing, so the retry fails the same way.
	injector := &reattachInjector{sender: sender}
	exec := NewActionExecutor(sender, injector, nil)

	err := exec.Execute(context.Background(), player.ActionPlay, "tab-1")
	var unreachable *ErrPeerUnreachable
	if !errors.As(err, &unreachable) {
		t.Fatalf("got %v, want ErrPeerUnreachable", err)
	}
	if injector.calls != 1 {
		t.Errorf("inject calls = %d, want exactly 1", injector.calls)
	}
}

func TestExecuteDoesNotRecoverFromOtherErrors(t *testing.T) {
	sender := NewSender()
	transportErr := errors.New("connection reset")
	sender.SetTarget("tab-1", func(context.Context, []byte) ([]byte, error) {
		return nil, transportErr
	})
	injector := &reattachInjector{sender: sender}
	exec := NewActionExecutor(sender, injector, nil)

	err := exec.Execute(context.Background(), player.ActionPause, "tab-1")
	if !errors.Is(err, transportErr) {
		t.Fatalf("got %v, want the transport error", err)
	}
	if injector.calls != 0 {
		t.Errorf("inject calls = %d, want 0", injector.calls)
	}
}

func TestExecuteInjectFailurePropagates(t *testing.T) {
	sender := NewSender()
	injectErr := errors.New("no such target")
	injector := &reattachInjector{sender: sender, err: injectErr}
	exec := NewActionExecutor(sender, injector, nil)

	err := exec.Execute(context.Background(), player.ActionNext, "tab-1")
	if !errors.Is(err, injectErr) {
		t.Fatalf("got %v, want inject error", err)
	}
}

func TestExecuteFailureResponseBecomesError(t *testing.T) {
	sender := NewSender()
	h := NewHandler()
	h.On("playback-action", func(context.Context, Message, Meta) (Response, error) {
		return FailResponse("player not found"), nil
	})
	h.Start()
	sender.SetTarget("tab-1", h.Transport())
	injector := &reattachInjector{sender: sender}
	exec := NewActionExecutor(sender, injector, nil)

	err := exec.Execute(context.Background(), player.ActionNext, "tab-1")
	var failed *ErrFailedResponse
	if !errors.As(err, &failed) || failed.Reason != "player not found" {
		t.Fatalf("got %v, want ErrFailedResponse", err)
	}
	if injector.calls != 0 {
		t.Errorf("inject calls = %d, want 0", injector.calls)
	}
}

func TestPlaybackState(t *testing.T) {
	sender := NewSender()
	handler, _ := pageHandler(t)
	sender.SetTarget("tab-1", handler.Transport())
	exec := NewActionExecutor(sender, &reattachInjector{sender: sender}, nil)

	state, err := exec.PlaybackState(context.Background(), "tab-1")
	if err != nil {
		t.Fatalf("playback state: %v", err)
	}
	if state.Title != "Song A" || state.Artist != "Artist" || !state.IsPlaying {
		t.Errorf("state = %+v", state)
	}
}
