package popupui

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/muselink/muselink/feature"
	"github.com/muselink/muselink/messaging"
)

type stubFinder struct {
	target string
	ok     bool
}

func (f stubFinder) FindTarget(context.Context) (string, bool, error) {
	return f.target, f.ok, nil
}

type nopInjector struct{}

func (nopInjector) Inject(context.Context, string) error { return nil }

// pageStub serves the page-side messages the popup surface relies on.
func pageStub(t *testing.T) *messaging.Handler {
	t.Helper()
	h := messaging.NewHandler()
	h.On("get-playback-state", func(context.Context, messaging.Message, messaging.Meta) (messaging.Response, error) {
		return messaging.DataResponse(map[string]any{
			"title": "Song A", "artist": "Artist", "album": "Album",
			"isPlaying": true, "progress": 10.0, "duration": 200.0,
		}), nil
	})
	h.On("get-track-details", func(context.Context, messaging.Message, messaging.Meta) (messaging.Response, error) {
		return messaging.DataResponse("<p>From <b>Album</b></p>"), nil
	})
	h.Start()
	return h
}

func newTestServer(t *testing.T, finder TargetFinder) *Server {
	t.Helper()

	popup := feature.NewPopupRegistry()
	if err := popup.Register(feature.PopupView{
		ID: "demo", Label: "Demo",
		Render: func(_ context.Context, w io.Writer) error {
			_, err := io.WriteString(w, "demo content\n")
			return err
		},
	}); err != nil {
		t.Fatalf("register view: %v", err)
	}

	background := messaging.NewHandler()
	background.On("get-stream-quality", func(context.Context, messaging.Message, messaging.Meta) (messaging.Response, error) {
		return messaging.DataResponse("2"), nil
	})
	background.Start()

	sender := messaging.NewSender()
	sender.SetTarget("tab-1", pageStub(t).Transport())
	executor := messaging.NewActionExecutor(sender, nopInjector{}, nil)

	return NewServer(popup, background, sender, finder, executor, nil)
}

func TestListViews(t *testing.T) {
	s := newTestServer(t, stubFinder{})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/views", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var views []viewInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 1 || views[0].ID != "demo" || views[0].Label != "Demo" {
		t.Fatalf("views = %+v", views)
	}
}

func TestRenderView(t *testing.T) {
	s := newTestServer(t, stubFinder{})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/views/demo", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "demo content\n" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestRenderUnknownViewIs404(t *testing.T) {
	s := newTestServer(t, stubFinder{})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/views/nope", nil))

	if rec.Code != 404 {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMessageRouteReachesBackground(t *testing.T) {
	s := newTestServer(t, stubFinder{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/message",
		strings.NewReader(`{"type":"get-stream-quality"}`))
	s.Router().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp messaging.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.Data != "2" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestNowPlaying(t *testing.T) {
	s := newTestServer(t, stubFinder{target: "tab-1", ok: true})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/now-playing", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"# Song A", "Artist", "playing", "**Album**"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestNowPlayingWithoutPlayerIs404(t *testing.T) {
	s := newTestServer(t, stubFinder{ok: false})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/now-playing", nil))

	if rec.Code != 404 {
		t.Fatalf("status = %d", rec.Code)
	}
}
