package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level   string
		enabled zapcore.Level
		off     zapcore.Level
	}{
		{"", zapcore.InfoLevel, zapcore.DebugLevel},
		{"debug", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"info", zapcore.InfoLevel, zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"error", zapcore.ErrorLevel, zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(Config{Level: tt.level})
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.off))
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log level "loud"`)

	_, err = New(Config{Format: "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log format "xml"`)
}

func TestNew_RejectsOutOfRangeRotation(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{name: "negative size", cfg: Config{MaxSizeMB: -5}, field: "MaxSizeMB"},
		{name: "oversized file", cfg: Config{MaxSizeMB: 20000}, field: "MaxSizeMB"},
		{name: "negative age", cfg: Config{MaxAgeDays: -1}, field: "MaxAgeDays"},
		{name: "age beyond ten years", cfg: Config{MaxAgeDays: 4000}, field: "MaxAgeDays"},
		{name: "level outside the documented set", cfg: Config{Level: "fatal"}, field: "Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, logger)
			assert.Contains(t, err.Error(), "invalid logging config")
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	_, err := New(DefaultConfig())
	assert.NoError(t, err, "defaults are within range")
}

func TestNew_FileOutput(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		t.Run(format, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Format = format
			cfg.File = filepath.Join(t.TempDir(), "logs", "host.log")

			logger, err := New(cfg)
			require.NoError(t, err)

			logger.Info("function type registered", zap.String("type", "hello.world"))
			logger.Debug("filtered out")
			_ = logger.Sync()

			data, err := os.ReadFile(cfg.File)
			require.NoError(t, err)
			content := string(data)

			assert.Contains(t, content, "function type registered")
			assert.Contains(t, content, "hello.world")
			assert.NotContains(t, content, "filtered out")

			if format == "json" {
				line := strings.TrimSpace(strings.Split(content, "\n")[0])
				var entry map[string]any
				require.NoError(t, json.Unmarshal([]byte(line), &entry))
				assert.Equal(t, "info", entry["level"])
				assert.Equal(t, "hello.world", entry["type"])
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Empty(t, cfg.File)
	assert.Positive(t, cfg.MaxSizeMB)
}
