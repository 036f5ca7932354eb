package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/digitalmira/internal/flagx"
)

// parseFlags populates cfg from the flags it recognizes in args; anything
// else on the command line is left to other parsers.
func parseFlags(cfg *Config, args []string) error {
	filtered := flagx.FilterArgs(args, []string{"-d", "-s", "-l", "-f", "-p", "-w"})

	fs := flag.NewFlagSet("mira", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "durable storage database path")
	fs.StringVar(&cfg.SessionSecret, "s", cfg.SessionSecret, "session signing secret")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "f", cfg.LogFormat, "log format: text, json or zap")
	fs.IntVar(&cfg.MinPasswordLength, "p", cfg.MinPasswordLength, "minimum password length at registration")
	debounce := fs.Int("w", int(cfg.WatchDebounce.Milliseconds()), "storage watch debounce (in milliseconds)")

	if err := fs.Parse(filtered); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "w" {
			cfg.WatchDebounce = time.Duration(*debounce) * time.Millisecond
		}
	})
	return nil
}
