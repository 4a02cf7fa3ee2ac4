package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Init(Config{Level: level, JSON: true, Output: &buf}))
	t.Cleanup(func() { _ = Init(DefaultConfig()) })
	return &buf
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, slog.LevelWarn, cfg.Level)
	assert.False(t, cfg.JSON)
}

func TestDebugConfig(t *testing.T) {
	cfg := DebugConfig()
	assert.Equal(t, slog.LevelDebug, cfg.Level)
	assert.True(t, cfg.JSON)
	assert.True(t, cfg.AddSource)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestInitSetsDebug(t *testing.T) {
	captureJSON(t, slog.LevelDebug)
	assert.True(t, Debug)

	captureJSON(t, slog.LevelInfo)
	assert.False(t, Debug)
}

func TestLoggingFunctions(t *testing.T) {
	buf := captureJSON(t, slog.LevelDebug)

	t.Run("info", func(t *testing.T) {
		buf.Reset()
		Info("test message", KeyStore, "tasks")
		assert.Contains(t, buf.String(), "test message")
		assert.Contains(t, buf.String(), `"store":"tasks"`)
	})

	t.Run("debug", func(t *testing.T) {
		buf.Reset()
		DebugLog("debug message")
		assert.Contains(t, buf.String(), "debug message")
	})

	t.Run("warn", func(t *testing.T) {
		buf.Reset()
		Warn("warn message")
		assert.Contains(t, buf.String(), "warn message")
	})

	t.Run("error", func(t *testing.T) {
		buf.Reset()
		Error("error message")
		assert.Contains(t, buf.String(), "error message")
	})
}

func TestLevelFiltering(t *testing.T) {
	buf := captureJSON(t, slog.LevelWarn)

	Info("hidden")
	DebugLog("hidden too")
	assert.Empty(t, buf.String())

	Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestContextLoggingCarriesRequestID(t *testing.T) {
	buf := captureJSON(t, slog.LevelDebug)

	ctx := WithRequestID(context.Background(), "req-123")
	WarnContext(ctx, "with id")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-123", line[KeyRequestID])
	assert.Equal(t, "with id", line["msg"])
}

func TestGenerateRequestID(t *testing.T) {
	a := GenerateRequestID()
	b := GenerateRequestID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
	//nolint:staticcheck // nil context is handled explicitly
	assert.Equal(t, "", RequestIDFromContext(nil))

	ctx := NewRequestContext(context.Background())
	assert.NotEmpty(t, RequestIDFromContext(ctx))
}

func TestRotatingFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "taskmap.log")
	require.NoError(t, Init(Config{Level: slog.LevelInfo, File: path}))
	t.Cleanup(func() { _ = Init(DefaultConfig()) })

	Info("to the file")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to the file")
}

func TestMaskValue(t *testing.T) {
	assert.True(t, IsSensitiveKey("sync.apiKey"))
	assert.True(t, IsSensitiveKey("GITHUB_TOKEN"))
	assert.False(t, IsSensitiveKey("theme"))

	assert.Equal(t, "***", MaskValue("password", "hunter2"))
	assert.Equal(t, "dark", MaskValue("theme", "dark"))
}
