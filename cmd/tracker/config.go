package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"timearchitect/offline"

	"github.com/BurntSushi/toml"
)

type trackerConfig struct {
	ServerURL      string
	UserID         string
	QueuePath      string
	RequestTimeout time.Duration
	BreakDuration  time.Duration
}

type tomlConfig struct {
	ServerURL      string `toml:"server_url"`
	UserID         string `toml:"user_id"`
	QueuePath      string `toml:"queue_path"`
	RequestTimeout string `toml:"request_timeout"`
	BreakMinutes   int    `toml:"break_minutes"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tracker.toml"
	}
	return filepath.Join(home, ".config", "timearchitect", "tracker.toml")
}

// loadConfig reads the TOML file when present. A missing file means
// defaults; a malformed one is an error.
func loadConfig(path string) (*trackerConfig, error) {
	cfg := &trackerConfig{
		ServerURL:      "http://localhost:3000",
		RequestTimeout: 10 * time.Second,
		BreakDuration:  15 * time.Minute,
	}
	if queuePath, err := offline.DefaultPath(); err == nil {
		cfg.QueuePath = queuePath
	}

	if _, err := os.Stat(path); err != nil {
		return cfg, nil
	}

	var tc tomlConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if tc.ServerURL != "" {
		cfg.ServerURL = tc.ServerURL
	}
	if tc.UserID != "" {
		cfg.UserID = tc.UserID
	}
	if tc.QueuePath != "" {
		cfg.QueuePath = tc.QueuePath
	}
	if tc.RequestTimeout != "" {
		d, err := time.ParseDuration(tc.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid request_timeout %q: %w", tc.RequestTimeout, err)
		}
		cfg.RequestTimeout = d
	}
	if tc.BreakMinutes > 0 {
		cfg.BreakDuration = time.Duration(tc.BreakMinutes) * time.Minute
	}
	return cfg, nil
}
