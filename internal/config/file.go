package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/digitalmira/internal/flagx"
	"github.com/dmitrijs2005/digitalmira/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape. Pointer fields distinguish "absent" from
// zero values so a partial file only overrides what it names.
type FileConfig struct {
	DatabasePath      *string         `json:"database_path" yaml:"database_path"`
	SessionSecret     *string         `json:"session_secret" yaml:"session_secret"`
	LogLevel          *string         `json:"log_level" yaml:"log_level"`
	LogFormat         *string         `json:"log_format" yaml:"log_format"`
	MinPasswordLength *int            `json:"min_password_length" yaml:"min_password_length"`
	WatchDebounce     *timex.Duration `json:"watch_debounce" yaml:"watch_debounce"`
}

// parseFile overlays cfg with the file named by -c/-config, if any.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return err
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	if fc.DatabasePath != nil {
		cfg.DatabasePath = *fc.DatabasePath
	}
	if fc.SessionSecret != nil {
		cfg.SessionSecret = *fc.SessionSecret
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.LogFormat != nil {
		cfg.LogFormat = *fc.LogFormat
	}
	if fc.MinPasswordLength != nil {
		cfg.MinPasswordLength = *fc.MinPasswordLength
	}
	if fc.WatchDebounce != nil {
		cfg.WatchDebounce = fc.WatchDebounce.Duration
	}
}
