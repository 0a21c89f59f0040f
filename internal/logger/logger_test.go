package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/marketplace-escrow-ledger/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range tests {
		assert.Equal(t, want, parseLevel(input), "input %q", input)
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("TagsApplicationAndEnvironment", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &config.Config{
			Application: config.ApplicationConfig{Name: "escrow-ledger", Env: "staging"},
			Logging:     config.LoggingConfig{Level: "info"},
		}

		log := newLogger(&buf, cfg)
		log.Info("escrow released")

		out := buf.String()
		assert.Contains(t, out, `"msg":"logger initialized"`)
		assert.Contains(t, out, `"msg":"escrow released"`)
		assert.Contains(t, out, `"app":"escrow-ledger"`)
		assert.Contains(t, out, `"env":"staging"`)
		assert.NotContains(t, out, `"source"`)
		assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
	})

	t.Run("DebugAddsSource", func(t *testing.T) {
		var buf bytes.Buffer
		log := newLogger(&buf, &config.Config{Logging: config.LoggingConfig{Level: "debug"}})
		log.Debug("sweep tick")

		assert.Contains(t, buf.String(), `"source"`)
		assert.NotContains(t, buf.String(), `"app"`)
	})

	t.Run("ErrorLevelDropsInfo", func(t *testing.T) {
		var buf bytes.Buffer
		log := newLogger(&buf, &config.Config{Logging: config.LoggingConfig{Level: "error"}})
		log.Warn("conflict retried")

		assert.Empty(t, buf.String())
	})
}

func TestWithCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	WithCorrelationID(base, "corr-42").Info("hello")
	assert.Contains(t, buf.String(), `"correlation_id":"corr-42"`)

	buf.Reset()
	assert.Same(t, base, WithCorrelationID(base, ""))
}
