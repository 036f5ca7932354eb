package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds runtime settings for the CLI.
type Config struct {
	DatabasePath      string
	SessionSecret     string
	LogLevel          string
	LogFormat         string
	MinPasswordLength int
	WatchDebounce     time.Duration
}

// LoadDefaults populates c with defaults matching the browser build: an
// eight character password rule at signup and plain text logs.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "mira.db"
	c.SessionSecret = ""
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.MinPasswordLength = 8
	c.WatchDebounce = 250 * time.Millisecond
}

// Load builds a Config from defaults, the optional config file and flags
// found in args (usually os.Args[1:]).
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}

// LoadConfig is Load over the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}
