package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Popup.Listen != "127.0.0.1:8974" {
		t.Errorf("listen = %q", cfg.Popup.Listen)
	}
	if cfg.Observer.TrackInterval != 2*time.Second {
		t.Errorf("track interval = %v", cfg.Observer.TrackInterval)
	}
	if cfg.Observer.MiniPlayerInterval != time.Second {
		t.Errorf("mini-player interval = %v", cfg.Observer.MiniPlayerInterval)
	}
	if cfg.Settings.Path == "" {
		t.Error("settings path should have a default")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
browser:
  remote: ws://127.0.0.1:9222
popup:
  listen: 127.0.0.1:9000
settings:
  path: /tmp/test-settings.db
observer:
  track_interval: 5s
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Browser.Remote != "ws://127.0.0.1:9222" {
		t.Errorf("remote = %q", cfg.Browser.Remote)
	}
	if cfg.Popup.Listen != "127.0.0.1:9000" {
		t.Errorf("listen = %q", cfg.Popup.Listen)
	}
	if cfg.Settings.Path != "/tmp/test-settings.db" {
		t.Errorf("settings path = %q", cfg.Settings.Path)
	}
	if cfg.Observer.TrackInterval != 5*time.Second {
		t.Errorf("track interval = %v", cfg.Observer.TrackInterval)
	}
	// Unset fields still get defaults.
	if cfg.Observer.MiniPlayerInterval != time.Second {
		t.Errorf("mini-player interval = %v", cfg.Observer.MiniPlayerInterval)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("popup: ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml should fail")
	}
}
