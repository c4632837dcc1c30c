// Package messaging carries typed request/response envelopes between the
// three execution contexts. One side sends (Sender), one side serves
// (Handler); both speak the same flat wire shape:
//
//	{"type": "playback-action", "action": "next"}
//
// and every request produces exactly one response, either
// {"ok":true,"data":...} or {"ok":false,"error":"..."}. Transports are
// plain byte functions so the same handler serves the in-process pair used
// inside the daemon, the HTTP route used by the popup CLI, and the stubs
// used in tests. Even in-process delivery serializes the envelope; contexts
// share no domain state.
package messaging

import (
	"encoding/json"
	"fmt"
)

// Message is the request envelope: a type tag plus free-form payload
// fields. It is an immutable value that exists for the duration of one
// send. On the wire the payload fields are flattened next to "type".
type Message struct {
	Type    string
	Payload map[string]any
}

// NewMessage builds an envelope. The payload map may be nil.
func NewMessage(msgType string, payload map[string]any) Message {
	return Message{Type: msgType, Payload: payload}
}

// String returns the payload field as a string, or "" when absent or of
// another type.
func (m Message) String(field string) string {
	s, _ := m.Payload[field].(string)
	return s
}

// Bool returns the payload field as a bool, false when absent.
func (m Message) Bool(field string) bool {
	b, _ := m.Payload[field].(bool)
	return b
}

// Field returns the raw payload field.
func (m Message) Field(field string) (any, bool) {
	v, ok := m.Payload[field]
	return v, ok
}

// MarshalJSON flattens the payload fields next to the type tag.
func (m Message) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(m.Payload)+1)
	for k, v := range m.Payload {
		if k == "type" {
			continue
		}
		flat[k] = v
	}
	flat["type"] = m.Type
	return json.Marshal(flat)
}

// UnmarshalJSON splits the type tag from the remaining payload fields.
func (m *Message) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	msgType, ok := flat["type"].(string)
	if !ok || msgType == "" {
		return fmt.Errorf("messaging: envelope has no type tag")
	}
	delete(flat, "type")
	m.Type = msgType
	m.Payload = flat
	return nil
}

// Response is the reply envelope. Exactly two shapes are valid on the
// wire: {"ok":true} with optional data, or {"ok":false,"error":...}.
type Response struct {
	OK    bool
	Data  any
	Error string
}

// OKResponse builds a success response without data.
func OKResponse() Response { return Response{OK: true} }

// DataResponse builds a success response carrying data.
func DataResponse(data any) Response { return Response{OK: true, Data: data} }

// FailResponse builds a failure response carrying an error string.
func FailResponse(format string, args ...any) Response {
	return Response{OK: false, Error: fmt.Sprintf(format, args...)}
}

type wireResponse struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// MarshalJSON emits data only on success and error only on failure, so no
// third shape can leak onto the wire.
func (r Response) MarshalJSON() ([]byte, error) {
	w := wireResponse{OK: r.OK}
	if r.OK {
		w.Data = r.Data
	} else {
		w.Error = r.Error
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes either valid wire shape.
func (r *Response) UnmarshalJSON(data []byte) error {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.OK = w.OK
	r.Data = w.Data
	r.Error = w.Error
	return nil
}
