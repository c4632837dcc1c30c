package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Transport delivers one serialized envelope to a peer and returns its
// serialized response. Both the in-process pair and the HTTP route
// implement this signature.
type Transport func(ctx context.Context, payload []byte) ([]byte, error)

// SendOptions selects the destination of a send. A non-empty Target
// addresses a specific page-context peer; empty addresses the background.
type SendOptions struct {
	Target string
}

// Sender delivers typed messages to the opposite context. Delivery
// failures (no transport registered, transport error) are returned as
// errors, never swallowed into a failure Response.
type Sender struct {
	mu         sync.RWMutex
	background Transport
	targets    map[string]Transport
}

// NewSender creates a Sender with no destinations wired.
func NewSender() *Sender {
	return &Sender{targets: make(map[string]Transport)}
}

// SetBackground wires the transport used when no target is given.
func (s *Sender) SetBackground(t Transport) {
	s.mu.Lock()
	s.background = t
	s.mu.Unlock()
}

// SetTarget wires the transport for a specific page target.
func (s *Sender) SetTarget(id string, t Transport) {
	s.mu.Lock()
	s.targets[id] = t
	s.mu.Unlock()
}

// RemoveTarget unwires a page target. Subsequent sends to it fail with
// ErrPeerUnreachable.
func (s *Sender) RemoveTarget(id string) {
	s.mu.Lock()
	delete(s.targets, id)
	s.mu.Unlock()
}

// Send delivers the message and decodes the peer's response.
func (s *Sender) Send(ctx context.Context, msg Message, opts SendOptions) (Response, error) {
	s.mu.RLock()
	transport := s.background
	if opts.Target != "" {
		transport = s.targets[opts.Target]
	}
	s.mu.RUnlock()

	if transport == nil {
		return Response{}, &ErrPeerUnreachable{Target: opts.Target}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return Response{}, fmt.Errorf("messaging: marshal %q: %w", msg.Type, err)
	}

	raw, err := transport(ctx, payload)
	if err != nil {
		return Response{}, err
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("messaging: decode response for %q: %w", msg.Type, err)
	}
	return resp, nil
}
