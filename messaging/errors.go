package messaging

import "fmt"

// ErrPeerUnreachable is returned when the opposite context has no listener
// installed at send time: the page agent is not attached to the target, or
// a handler has been stopped. The ActionExecutor recovers from it exactly
// once by forcing re-injection; every other caller surfaces it.
type ErrPeerUnreachable struct {
	Target string // empty for the background peer
	Cause  error
}

func (e *ErrPeerUnreachable) Error() string {
	where := "background"
	if e.Target != "" {
		where = "target " + e.Target
	}
	if e.Cause != nil {
		return fmt.Sprintf("messaging: receiving end does not exist (%s): %v", where, e.Cause)
	}
	return fmt.Sprintf("messaging: receiving end does not exist (%s)", where)
}

func (e *ErrPeerUnreachable) Unwrap() error { return e.Cause }

// ErrFailedResponse carries the error string of a non-ok response across
// an API boundary that promises a result, not a Response.
type ErrFailedResponse struct {
	Reason string
}

func (e *ErrFailedResponse) Error() string {
	return fmt.Sprintf("messaging: request failed: %s", e.Reason)
}
