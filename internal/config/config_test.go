package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/timeline"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "chronicle.db", cfg.DB)
	assert.Empty(t, cfg.RuleSet)
	assert.Equal(t, 5*time.Second, cfg.BusyTimeout)
	assert.Equal(t, timeline.DefaultMaxCacheSize, cfg.CacheSize)
	assert.Equal(t, int64(0), cfg.SampleIntervalMS)
	assert.Equal(t, timeline.IndexRevalidate, cfg.IndexPolicy)
	assert.Equal(t, 1, cfg.Parallelism)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHRONICLE_DB", "/tmp/log.db")
	t.Setenv("CHRONICLE_RULESET", "rules.cue")
	t.Setenv("CHRONICLE_BUSY_TIMEOUT", "250ms")
	t.Setenv("CHRONICLE_CACHE_SIZE", "16")
	t.Setenv("CHRONICLE_SAMPLE_INTERVAL_MS", "86400000")
	t.Setenv("CHRONICLE_INDEX_POLICY", "pinned")
	t.Setenv("CHRONICLE_PARALLELISM", "4")
	t.Setenv("CHRONICLE_LOG_LEVEL", "debug")
	t.Setenv("CHRONICLE_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/log.db", cfg.DB)
	assert.Equal(t, "rules.cue", cfg.RuleSet)
	assert.Equal(t, 250*time.Millisecond, cfg.BusyTimeout)
	assert.Equal(t, 16, cfg.CacheSize)
	assert.Equal(t, int64(86400000), cfg.SampleIntervalMS)
	assert.Equal(t, timeline.IndexPinned, cfg.IndexPolicy)
	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"not an int", "CHRONICLE_CACHE_SIZE", "lots", "parse env:"},
		{"unknown policy", "CHRONICLE_INDEX_POLICY", "sometimes", "unknown index policy"},
		{"unknown level", "CHRONICLE_LOG_LEVEL", "loud", "parse env:"},
		{"zero cache", "CHRONICLE_CACHE_SIZE", "0", "CHRONICLE_CACHE_SIZE"},
		{"negative interval", "CHRONICLE_SAMPLE_INTERVAL_MS", "-1", "CHRONICLE_SAMPLE_INTERVAL_MS"},
		{"negative busy timeout", "CHRONICLE_BUSY_TIMEOUT", "-1s", "CHRONICLE_BUSY_TIMEOUT"},
		{"zero parallelism", "CHRONICLE_PARALLELISM", "0", "CHRONICLE_PARALLELISM"},
		{"bad log format", "CHRONICLE_LOG_FORMAT", "xml", "CHRONICLE_LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, "json")

	logger.Debug("hidden")
	logger.Info("shown", "entity", "char-1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), "json handler output: %s", out)
	assert.Contains(t, out, `"entity":"char-1"`)
}

func TestConfigLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogLevel: slog.LevelWarn, LogFormat: "text"}

	cfg.Logger(&buf).Warn("careful", "rule", "resurrection")

	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "rule=resurrection")
}
