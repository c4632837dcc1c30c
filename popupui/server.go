// Package popupui is the popup execution context's serving side: a chi
// router on the daemon exposing the message route, the popup views
// contributed by modules, and a now-playing summary. The muselinkctl CLI
// is its only intended client; the listener binds to localhost.
package popupui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/muselink/muselink/feature"
	"github.com/muselink/muselink/messaging"
)

// TargetFinder locates the page target hosting the player.
type TargetFinder interface {
	FindTarget(ctx context.Context) (target string, ok bool, err error)
}

// Server serves the popup surface.
type Server struct {
	router   chi.Router
	popup    *feature.PopupRegistry
	handler  *messaging.Handler
	sender   *messaging.Sender
	finder   TargetFinder
	executor *messaging.ActionExecutor
	logger   *slog.Logger
}

// NewServer builds the router. The handler is the background's message
// handler; mounting it here is what makes the popup a real peer of the
// messaging layer instead of a side door.
func NewServer(popup *feature.PopupRegistry, handler *messaging.Handler, sender *messaging.Sender, finder TargetFinder, executor *messaging.ActionExecutor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		popup:    popup,
		handler:  handler,
		sender:   sender,
		finder:   finder,
		executor: executor,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/message", messaging.HTTPHandler(handler))
	r.Get("/views", s.listViews)
	r.Get("/views/{id}", s.renderView)
	r.Get("/now-playing", s.nowPlaying)
	s.router = r
	return s
}

// Router returns the mountable handler.
func (s *Server) Router() http.Handler { return s.router }

type viewInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func (s *Server) listViews(w http.ResponseWriter, r *http.Request) {
	views := s.popup.All()
	out := make([]viewInfo, 0, len(views))
	for _, v := range views {
		out = append(out, viewInfo{ID: v.ID, Label: v.Label})
	}
	writeJSON(w, out)
}

func (s *Server) renderView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, ok := s.popup.Get(id)
	if !ok {
		http.Error(w, fmt.Sprintf("no view %q", id), http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := view.Render(r.Context(), &buf); err != nil {
		s.logger.Error("render popup view", "view", id, "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(buf.Bytes())
}

// nowPlaying combines the playback snapshot with the track details panel,
// converted to markdown for terminal display.
func (s *Server) nowPlaying(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	target, ok, err := s.finder.FindTarget(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if !ok {
		http.Error(w, "no player page open", http.StatusNotFound)
		return
	}

	state, err := s.executor.PlaybackState(ctx, target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	var buf bytes.Buffer
	status := "paused"
	if state.IsPlaying {
		status = "playing"
	}
	fmt.Fprintf(&buf, "# %s\n\n%s", state.Title, state.Artist)
	if state.Album != "" {
		fmt.Fprintf(&buf, " (%s", state.Album)
		if state.Year != 0 {
			fmt.Fprintf(&buf, ", %d", state.Year)
		}
		buf.WriteString(")")
	}
	fmt.Fprintf(&buf, "\n\n%s, %.0f/%.0f s\n", status, state.Progress, state.Duration)

	if md := s.trackDetails(ctx, target); md != "" {
		fmt.Fprintf(&buf, "\n%s\n", md)
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write(buf.Bytes())
}

// trackDetails is best-effort: the details panel may not be rendered.
func (s *Server) trackDetails(ctx context.Context, target string) string {
	resp, err := s.sender.Send(ctx, messaging.NewMessage("get-track-details", nil),
		messaging.SendOptions{Target: target})
	if err != nil || !resp.OK {
		s.logger.Debug("fetch track details", "error", err)
		return ""
	}
	html, _ := resp.Data.(string)
	if html == "" {
		return ""
	}

	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		s.logger.Debug("convert track details", "error", err)
		return ""
	}
	return md
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
