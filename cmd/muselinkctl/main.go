// Command muselinkctl is the popup context: a transient CLI that talks to
// the daemon's control surface. Every invocation builds its state from
// scratch, acts, prints, and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/muselink/muselink/messaging"
	"github.com/muselink/muselink/player"
)

// boolSettings maps setting names to their get/set message types and the
// payload field carrying the value.
var boolSettings = map[string][2]string{
	"notifications":     {"get-notifications-enabled", "set-notifications-enabled"},
	"notify-on-unpause": {"get-notify-on-unpause", "set-notify-on-unpause"},
	"mini-player":       {"get-mini-player-enabled", "set-mini-player-enabled"},
	"visualizer":        {"get-audio-visualizer-enabled", "set-audio-visualizer-enabled"},
}

var stringSettings = map[string][3]string{
	"quality":           {"get-stream-quality", "set-stream-quality", "value"},
	"visualizer-style":  {"get-audio-visualizer-style", "set-audio-visualizer-style", "style"},
	"visualizer-target": {"get-audio-visualizer-target", "set-audio-visualizer-target", "target"},
}

func main() {
	addr := flag.String("addr", env("MUSELINK_ADDR", "127.0.0.1:8974"), "daemon control surface address")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := &client{
		base:   "http://" + *addr,
		sender: messaging.NewSender(),
	}
	c.sender.SetBackground(messaging.HTTPTransport(c.base+"/message", nil))

	if err := c.run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, "muselinkctl:", err)
		os.Exit(1)
	}
}

type client struct {
	base   string
	sender *messaging.Sender
}

func (c *client) run(ctx context.Context, args []string) error {
	switch cmd := args[0]; cmd {
	case "now":
		return c.fetch(ctx, "/now-playing")
	case "views":
		if len(args) > 1 {
			return c.fetch(ctx, "/views/"+args[1])
		}
		return c.fetch(ctx, "/views")
	case "action":
		if len(args) != 2 || !player.ValidAction(args[1]) {
			return fmt.Errorf("usage: action play|pause|togglePlay|next|previous")
		}
		return c.send(ctx, "playback-action", map[string]any{"action": args[1]})
	case "seek":
		if len(args) != 2 {
			return fmt.Errorf("usage: seek <seconds>")
		}
		seconds, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("seek: %w", err)
		}
		return c.send(ctx, "seek-to", map[string]any{"seconds": seconds})
	case "get":
		if len(args) != 2 {
			return fmt.Errorf("usage: get <setting>")
		}
		return c.getSetting(ctx, args[1])
	case "set":
		if len(args) != 3 {
			return fmt.Errorf("usage: set <setting> <value>")
		}
		return c.setSetting(ctx, args[1], args[2])
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *client) getSetting(ctx context.Context, name string) error {
	if types, ok := boolSettings[name]; ok {
		return c.query(ctx, types[0])
	}
	if types, ok := stringSettings[name]; ok {
		return c.query(ctx, types[0])
	}
	return fmt.Errorf("unknown setting %q", name)
}

func (c *client) setSetting(ctx context.Context, name, value string) error {
	if types, ok := boolSettings[name]; ok {
		enabled, err := parseBool(value)
		if err != nil {
			return err
		}
		return c.send(ctx, types[1], map[string]any{"enabled": enabled})
	}
	if types, ok := stringSettings[name]; ok {
		return c.send(ctx, types[1], map[string]any{types[2]: value})
	}
	return fmt.Errorf("unknown setting %q", name)
}

// query sends a get-style message and prints the data field.
func (c *client) query(ctx context.Context, msgType string) error {
	resp, err := c.sender.Send(ctx, messaging.NewMessage(msgType, nil), messaging.SendOptions{})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%s", resp.Error)
	}
	fmt.Println(format(resp.Data))
	return nil
}

// send delivers a set-style message and reports success silently.
func (c *client) send(ctx context.Context, msgType string, payload map[string]any) error {
	resp, err := c.sender.Send(ctx, messaging.NewMessage(msgType, payload), messaging.SendOptions{})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}

// fetch prints a plain control-surface route.
func (c *client) fetch(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, body)
	}
	os.Stdout.Write(body)
	return nil
}

func format(data any) string {
	switch v := data.(type) {
	case nil:
		return "unset"
	case map[string]any:
		return format(v["current"])
	case bool:
		if v {
			return "on"
		}
		return "off"
	case string:
		if v == "" {
			return "unset"
		}
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBool(s string) (bool, error) {
	switch s {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: muselinkctl [-addr host:port] <command>

commands:
  now                     show the current track
  views [id]              list popup views, or render one
  action <name>           playback action: play, pause, togglePlay, next, previous
  seek <seconds>          seek within the current track
  get <setting>           read a setting
  set <setting> <value>   change a setting

settings:
  notifications, notify-on-unpause, mini-player, visualizer (on|off)
  quality (1|2|3), visualizer-style (bars|waveform|circular),
  visualizer-target (auto|all|pip-only|song-art-only|player-bar-only)
`)
}
