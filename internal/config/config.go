// Package config loads chronicle settings from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/chronicle/internal/timeline"
)

// Config holds settings shared by every command. CLI flags override
// individual fields after Load.
type Config struct {
	// DB is the SQLite event log path.
	DB string `env:"CHRONICLE_DB" envDefault:"chronicle.db"`

	// BusyTimeout is how long a store connection waits on a locked database.
	BusyTimeout time.Duration `env:"CHRONICLE_BUSY_TIMEOUT" envDefault:"5s"`

	// RuleSet is an optional CUE ruleset file; empty uses the built-in tables.
	RuleSet string `env:"CHRONICLE_RULESET"`

	CacheSize        int                  `env:"CHRONICLE_CACHE_SIZE" envDefault:"1000"`
	SampleIntervalMS int64                `env:"CHRONICLE_SAMPLE_INTERVAL_MS" envDefault:"0"`
	IndexPolicy      timeline.IndexPolicy `env:"CHRONICLE_INDEX_POLICY" envDefault:"revalidate"`
	Parallelism      int                  `env:"CHRONICLE_PARALLELISM" envDefault:"1"`

	LogLevel  slog.Level `env:"CHRONICLE_LOG_LEVEL" envDefault:"warn"`
	LogFormat string     `env:"CHRONICLE_LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges env tags cannot express.
func (c Config) Validate() error {
	if c.CacheSize < 1 {
		return fmt.Errorf("CHRONICLE_CACHE_SIZE must be >= 1, got %d", c.CacheSize)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("CHRONICLE_BUSY_TIMEOUT must be >= 0, got %s", c.BusyTimeout)
	}
	if c.SampleIntervalMS < 0 {
		return fmt.Errorf("CHRONICLE_SAMPLE_INTERVAL_MS must be >= 0, got %d", c.SampleIntervalMS)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("CHRONICLE_PARALLELISM must be >= 1, got %d", c.Parallelism)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("CHRONICLE_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// NewLogger builds the process logger. Format is "text" or "json".
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Logger builds the logger described by c.
func (c Config) Logger(w io.Writer) *slog.Logger {
	return NewLogger(w, c.LogLevel, c.LogFormat)
}
