// Package config loads the daemon configuration from a YAML file with
// sensible defaults, so a missing file still yields a runnable setup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level daemon configuration.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Popup    PopupConfig    `yaml:"popup"`
	Settings SettingsConfig `yaml:"settings"`
	Observer ObserverConfig `yaml:"observer"`
}

// BrowserConfig controls how the daemon reaches the browser.
type BrowserConfig struct {
	// Remote is the DevTools endpoint of an already running browser.
	// Empty means launch a local headful Chrome.
	Remote string `yaml:"remote"`
}

// PopupConfig controls the control surface listener.
type PopupConfig struct {
	Listen string `yaml:"listen"`
}

// SettingsConfig controls the settings database.
type SettingsConfig struct {
	Path string `yaml:"path"`
}

// ObserverConfig controls the page-side polling loops.
type ObserverConfig struct {
	TrackInterval      time.Duration `yaml:"track_interval"`
	MiniPlayerInterval time.Duration `yaml:"mini_player_interval"`
}

// Load reads a YAML configuration file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Popup.Listen == "" {
		c.Popup.Listen = "127.0.0.1:8974"
	}
	if c.Settings.Path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			c.Settings.Path = home + "/.local/share/muselink/settings.db"
		} else {
			c.Settings.Path = "muselink-settings.db"
		}
	}
	if c.Observer.TrackInterval <= 0 {
		c.Observer.TrackInterval = 2 * time.Second
	}
	if c.Observer.MiniPlayerInterval <= 0 {
		c.Observer.MiniPlayerInterval = time.Second
	}
}
