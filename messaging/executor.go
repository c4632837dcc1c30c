package messaging

import (
	"context"
	"errors"
	"log/slog"

	"github.com/muselink/muselink/player"
)

// Injector forces the page-context peer back into a target. The production
// implementation re-attaches the page agent over CDP; tests count calls.
type Injector interface {
	Inject(ctx context.Context, target string) error
}

// ActionExecutor sends playback requests to a specific page target,
// recovering exactly once from an unreachable peer by forcing re-injection
// and retrying the send. Any other delivery error propagates immediately,
// and a non-ok response becomes an ErrFailedResponse. The single bounded
// retry keeps a permanently dead target from looping.
type ActionExecutor struct {
	sender   *Sender
	injector Injector
	logger   *slog.Logger
}

// NewActionExecutor wires an executor. The logger may be nil.
func NewActionExecutor(sender *Sender, injector Injector, logger *slog.Logger) *ActionExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActionExecutor{sender: sender, injector: injector, logger: logger}
}

// Execute runs one playback action on the target page.
func (e *ActionExecutor) Execute(ctx context.Context, action player.Action, target string) error {
	msg := NewMessage("playback-action", map[string]any{"action": string(action)})
	resp, err := e.sendResilient(ctx, msg, target)
	if err != nil {
		return err
	}
	if !resp.OK {
		return &ErrFailedResponse{Reason: resp.Error}
	}
	return nil
}

// PlaybackState fetches the target page's current playback snapshot.
func (e *ActionExecutor) PlaybackState(ctx context.Context, target string) (player.PlaybackState, error) {
	msg := NewMessage("get-playback-state", nil)
	resp, err := e.sendResilient(ctx, msg, target)
	if err != nil {
		return player.PlaybackState{}, err
	}
	if !resp.OK {
		return player.PlaybackState{}, &ErrFailedResponse{Reason: resp.Error}
	}
	return player.ParseState(resp.Data), nil
}

// sendResilient performs the send with the single re-injection retry.
// Only ErrPeerUnreachable triggers recovery; it means the peer script is
// not loaded in that target, which re-injection can fix. Everything else
// is a real fault and propagates after the first attempt.
func (e *ActionExecutor) sendResilient(ctx context.Context, msg Message, target string) (Response, error) {
	resp, err := e.sender.Send(ctx, msg, SendOptions{Target: target})
	if err == nil {
		return resp, nil
	}

	var unreachable *ErrPeerUnreachable
	if !errors.As(err, &unreachable) {
		return Response{}, err
	}

	e.logger.Info("peer unreachable, re-injecting", "target", target, "type", msg.Type)
	if injErr := e.injector.Inject(ctx, target); injErr != nil {
		return Response{}, injErr
	}

	return e.sender.Send(ctx, msg, SendOptions{Target: target})
}
