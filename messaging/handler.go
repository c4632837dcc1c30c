package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Meta describes the sender of a message as seen by a handler.
type Meta struct {
	// Target is the page target the message originated from, when known.
	Target string
	// Origin names the sending context: "background", "page", "popup".
	Origin string
}

// HandlerFunc serves one message type. The dispatch boundary keeps the
// reply channel open until the call settles, so a HandlerFunc may block on
// further async work; its error is converted to a failure response and
// never leaks to the peer as a transport fault.
type HandlerFunc func(ctx context.Context, msg Message, meta Meta) (Response, error)

// Handler is the serving side of the messaging layer: a dispatch table
// from message type to HandlerFunc behind a single transport face.
//
// Start installs the listener, Stop removes it; registrations made with On
// survive Stop, so a later Start resumes dispatch without re-registering.
// While stopped, Serve reports ErrPeerUnreachable, exactly what a sender
// sees when the receiving end does not exist.
type Handler struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	started  bool
	meta     Meta
	logger   *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets a custom logger for the handler.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// WithMeta sets the Meta passed to every HandlerFunc for messages arriving
// through this handler's transport.
func WithMeta(meta Meta) HandlerOption {
	return func(h *Handler) { h.meta = meta }
}

// NewHandler creates a stopped Handler with an empty dispatch table.
func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		handlers: make(map[string]HandlerFunc),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// On registers the handler for a message type, replacing any previous one.
// Registration is independent of the Start/Stop channel lifecycle.
func (h *Handler) On(msgType string, fn HandlerFunc) {
	h.mu.Lock()
	h.handlers[msgType] = fn
	h.mu.Unlock()
}

// Start installs the listener.
func (h *Handler) Start() {
	h.mu.Lock()
	h.started = true
	h.mu.Unlock()
}

// Stop removes the listener. Registered handlers are kept.
func (h *Handler) Stop() {
	h.mu.Lock()
	h.started = false
	h.mu.Unlock()
}

// Transport returns the byte-level face of this handler, suitable for
// wiring into a Sender as the peer's transport.
func (h *Handler) Transport() Transport {
	return h.Serve
}

// Serve is the low-level listener: it decodes one envelope, dispatches it,
// and encodes exactly one response. An unknown message type and a failing
// handler both come back as failure responses; only a stopped handler is a
// transport-level fault.
func (h *Handler) Serve(ctx context.Context, payload []byte) ([]byte, error) {
	h.mu.RLock()
	started := h.started
	h.mu.RUnlock()
	if !started {
		return nil, &ErrPeerUnreachable{}
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return marshalResponse(FailResponse("malformed message: %v", err))
	}

	return marshalResponse(h.Dispatch(ctx, msg))
}

// Dispatch routes one decoded message through the handler table. Exposed
// separately so tests and in-context callers can exercise routing without
// the byte layer.
func (h *Handler) Dispatch(ctx context.Context, msg Message) Response {
	h.mu.RLock()
	fn, ok := h.handlers[msg.Type]
	h.mu.RUnlock()

	if !ok {
		return FailResponse("no handler for message type: %q", msg.Type)
	}

	resp, err := h.invoke(ctx, fn, msg)
	if err != nil {
		h.logger.Debug("handler returned error", "type", msg.Type, "error", err)
		return FailResponse("%v", err)
	}
	return resp
}

// invoke runs one HandlerFunc with panic containment, so a faulty handler
// degrades to a failure response instead of tearing down the context.
func (h *Handler) invoke(ctx context.Context, fn HandlerFunc, msg Message) (resp Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("handler panicked", "type", msg.Type, "panic", r)
			err = fmt.Errorf("handler for %q panicked: %v", msg.Type, r)
		}
	}()
	return fn(ctx, msg, h.meta)
}

func marshalResponse(resp Response) ([]byte, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		// Response marshalling only fails on unserializable Data; degrade
		// to a failure response rather than breaking the reply channel.
		return json.Marshal(FailResponse("unserializable response: %v", err))
	}
	return raw, nil
}
