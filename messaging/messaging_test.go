package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMessageWireShapeIsFlat(t *testing.T) {
	msg := NewMessage("playback-action", map[string]any{"action": "next"})
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		t.Fatalf("unmarshal flat: %v", err)
	}
	if flat["type"] != "playback-action" || flat["action"] != "next" {
		t.Errorf("wire shape = %s", raw)
	}
	if _, nested := flat["payload"]; nested {
		t.Errorf("payload must be flattened, got %s", raw)
	}

	var back Message
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if back.Type != "playback-action" || back.String("action") != "next" {
		t.Errorf("roundtrip = %+v", back)
	}
}

func TestMessageRejectsMissingTypeTag(t *testing.T) {
	var msg Message
	if err := json.Unmarshal([]byte(`{"action":"next"}`), &msg); err == nil {
		t.Fatal("envelope without type tag should fail to decode")
	}
}

func TestResponseWireShapes(t *testing.T) {
	ok, err := json.Marshal(DataResponse(map[string]any{"quality": "2"}))
	if err != nil {
		t.Fatalf("marshal ok: %v", err)
	}
	if strings.Contains(string(ok), "error") {
		t.Errorf("success response carries error field: %s", ok)
	}

	fail, err := json.Marshal(FailResponse("no handler for message type: %q", "bogus"))
	if err != nil {
		t.Fatalf("marshal fail: %v", err)
	}
	if strings.Contains(string(fail), "data") {
		t.Errorf("failure response carries data field: %s", fail)
	}
	if !strings.Contains(string(fail), `"ok":false`) {
		t.Errorf("failure response = %s", fail)
	}
}

func TestHandlerDispatch(t *testing.T) {
	h := NewHandler(WithMeta(Meta{Origin: "background"}))
	h.On("get-stream-quality", func(_ context.Context, _ Message, meta Meta) (Response, error) {
		if meta.Origin != "background" {
			t.Errorf("meta.Origin = %q", meta.Origin)
		}
		return DataResponse("2"), nil
	})

	resp := h.Dispatch(context.Background(), NewMessage("get-stream-quality", nil))
	if !resp.OK || resp.Data != "2" {
		t.Errorf("dispatch = %+v", resp)
	}
}

func TestHandlerUnknownTypeFails(t *testing.T) {
	h := NewHandler()
	resp := h.Dispatch(context.Background(), NewMessage("bogus", nil))
	if resp.OK {
		t.Fatal("unknown type must not succeed")
	}
	if resp.Error != `no handler for message type: "bogus"` {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestHandlerErrorBecomesFailureResponse(t *testing.T) {
	h := NewHandler()
	h.On("seek-to", func(context.Context, Message, Meta) (Response, error) {
		return Response{}, errors.New("player not ready")
	})
	resp := h.Dispatch(context.Background(), NewMessage("seek-to", nil))
	if resp.OK || resp.Error != "player not ready" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	h := NewHandler()
	h.On("boom", func(context.Context, Message, Meta) (Response, error) {
		panic("handler bug")
	})
	resp := h.Dispatch(context.Background(), NewMessage("boom", nil))
	if resp.OK || !strings.Contains(resp.Error, "panicked") {
		t.Errorf("response = %+v", resp)
	}
}

func TestStoppedHandlerIsUnreachable(t *testing.T) {
	h := NewHandler()
	h.On("ping", func(context.Context, Message, Meta) (Response, error) {
		return OKResponse(), nil
	})

	_, err := h.Serve(context.Background(), []byte(`{"type":"ping"}`))
	var unreachable *ErrPeerUnreachable
	if !errors.As(err, &unreachable) {
		t.Fatalf("stopped handler: got %v, want ErrPeerUnreachable", err)
	}
	if !strings.Contains(err.Error(), "receiving end does not exist") {
		t.Errorf("error text = %q", err)
	}

	// Registrations survive the stopped period.
	h.Start()
	raw, err := h.Serve(context.Background(), []byte(`{"type":"ping"}`))
	if err != nil {
		t.Fatalf("serve after start: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil || !resp.OK {
		t.Errorf("response after start = %s (%v)", raw, err)
	}
}

func TestSenderWithoutTransportIsUnreachable(t *testing.T) {
	s := NewSender()
	_, err := s.Send(context.Background(), NewMessage("ping", nil), SendOptions{Target: "tab-9"})
	var unreachable *ErrPeerUnreachable
	if !errors.As(err, &unreachable) {
		t.Fatalf("got %v, want ErrPeerUnreachable", err)
	}
	if unreachable.Target != "tab-9" {
		t.Errorf("target = %q", unreachable.Target)
	}
}

func TestSenderRoutesByTarget(t *testing.T) {
	background := NewHandler()
	background.On("ping", func(context.Context, Message, Meta) (Response, error) {
		return DataResponse("background"), nil
	})
	background.Start()

	page := NewHandler()
	page.On("ping", func(context.Context, Message, Meta) (Response, error) {
		return DataResponse("page"), nil
	})
	page.Start()

	s := NewSender()
	s.SetBackground(background.Transport())
	s.SetTarget("tab-1", page.Transport())

	resp, err := s.Send(context.Background(), NewMessage("ping", nil), SendOptions{})
	if err != nil || resp.Data != "background" {
		t.Errorf("background send = %+v, %v", resp, err)
	}
	resp, err = s.Send(context.Background(), NewMessage("ping", nil), SendOptions{Target: "tab-1"})
	if err != nil || resp.Data != "page" {
		t.Errorf("target send = %+v, %v", resp, err)
	}

	s.RemoveTarget("tab-1")
	_, err = s.Send(context.Background(), NewMessage("ping", nil), SendOptions{Target: "tab-1"})
	var unreachable *ErrPeerUnreachable
	if !errors.As(err, &unreachable) {
		t.Errorf("removed target: got %v, want ErrPeerUnreachable", err)
	}
}

func TestHTTPTransportRoundtrip(t *testing.T) {
	h := NewHandler()
	h.On("get-stream-quality", func(context.Context, Message, Meta) (Response, error) {
		return DataResponse("3"), nil
	})
	h.Start()

	srv := httptest.NewServer(HTTPHandler(h))
	t.Cleanup(srv.Close)

	s := NewSender()
	s.SetBackground(HTTPTransport(srv.URL, srv.Client()))

	resp, err := s.Send(context.Background(), NewMessage("get-stream-quality", nil), SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !resp.OK || resp.Data != "3" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHTTPTransportMapsStoppedPeer(t *testing.T) {
	h := NewHandler()
	srv := httptest.NewServer(HTTPHandler(h))
	t.Cleanup(srv.Close)

	transport := HTTPTransport(srv.URL, srv.Client())
	_, err := transport(context.Background(), []byte(`{"type":"ping"}`))
	var unreachable *ErrPeerUnreachable
	if !errors.As(err, &unreachable) {
		t.Errorf("503 peer: got %v, want ErrPeerUnreachable", err)
	}
}
