// Package mcptools exposes playback control and now-playing state as MCP
// tools, so agent clients can drive the player through the daemon. The
// tools ride the same messaging layer as every other surface; nothing
// here touches the page directly.
package mcptools

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/muselink/muselink/messaging"
	"github.com/muselink/muselink/player"
)

// TargetFinder locates the page target hosting the player.
type TargetFinder interface {
	FindTarget(ctx context.Context) (target string, ok bool, err error)
}

// Service bundles what the tools need from the daemon.
type Service struct {
	executor *messaging.ActionExecutor
	sender   *messaging.Sender
	finder   TargetFinder
	logger   *slog.Logger
}

// NewService wires the tool backend.
func NewService(executor *messaging.ActionExecutor, sender *messaging.Sender, finder TargetFinder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{executor: executor, sender: sender, finder: finder, logger: logger}
}

// NewServer builds the MCP server with every tool registered.
func (s *Service) NewServer(version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "muselink", Version: version}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "muselink_now_playing",
		Description: "Current playback state of the music player: track, artist, album, progress.",
	}, s.nowPlaying)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "muselink_playback",
		Description: "Run a playback action: play, pause, togglePlay, next, previous.",
	}, s.playback)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "muselink_seek",
		Description: "Seek to an absolute position in the current track, in seconds.",
	}, s.seek)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "muselink_set_quality",
		Description: "Pin the stream quality tier: 1 (low), 2 (medium), 3 (high).",
	}, s.setQuality)

	return srv
}

// HTTPHandler mounts the MCP server on the daemon's router.
func (s *Service) HTTPHandler(srv *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
}

func (s *Service) target(ctx context.Context) (string, error) {
	target, ok, err := s.finder.FindTarget(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no player page open")
	}
	return target, nil
}

type nowPlayingInput struct{}

func (s *Service) nowPlaying(ctx context.Context, req *mcp.CallToolRequest, _ nowPlayingInput) (*mcp.CallToolResult, player.PlaybackState, error) {
	target, err := s.target(ctx)
	if err != nil {
		return nil, player.PlaybackState{}, err
	}
	state, err := s.executor.PlaybackState(ctx, target)
	if err != nil {
		return nil, player.PlaybackState{}, err
	}
	return nil, state, nil
}

type playbackInput struct {
	Action string `json:"action" jsonschema:"play, pause, togglePlay, next or previous"`
}

type okOutput struct {
	OK bool `json:"ok"`
}

func (s *Service) playback(ctx context.Context, req *mcp.CallToolRequest, in playbackInput) (*mcp.CallToolResult, okOutput, error) {
	if !player.ValidAction(in.Action) {
		return nil, okOutput{}, fmt.Errorf("unknown action %q", in.Action)
	}
	target, err := s.target(ctx)
	if err != nil {
		return nil, okOutput{}, err
	}
	if err := s.executor.Execute(ctx, player.Action(in.Action), target); err != nil {
		return nil, okOutput{}, err
	}
	return nil, okOutput{OK: true}, nil
}

type seekInput struct {
	Seconds float64 `json:"seconds" jsonschema:"absolute position in seconds"`
}

func (s *Service) seek(ctx context.Context, req *mcp.CallToolRequest, in seekInput) (*mcp.CallToolResult, okOutput, error) {
	target, err := s.target(ctx)
	if err != nil {
		return nil, okOutput{}, err
	}
	resp, err := s.sender.Send(ctx,
		messaging.NewMessage("seek-to", map[string]any{"seconds": in.Seconds}),
		messaging.SendOptions{Target: target})
	if err != nil {
		return nil, okOutput{}, err
	}
	if !resp.OK {
		return nil, okOutput{}, fmt.Errorf("seek rejected: %s", resp.Error)
	}
	return nil, okOutput{OK: true}, nil
}

type setQualityInput struct {
	Quality string `json:"quality" jsonschema:"stream quality tier: 1, 2 or 3"`
}

func (s *Service) setQuality(ctx context.Context, req *mcp.CallToolRequest, in setQualityInput) (*mcp.CallToolResult, okOutput, error) {
	resp, err := s.sender.Send(ctx,
		messaging.NewMessage("set-stream-quality", map[string]any{"value": in.Quality}),
		messaging.SendOptions{})
	if err != nil {
		return nil, okOutput{}, err
	}
	if !resp.OK {
		return nil, okOutput{}, fmt.Errorf("set quality rejected: %s", resp.Error)
	}
	return nil, okOutput{OK: true}, nil
}
