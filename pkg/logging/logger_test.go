package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(buf *bytes.Buffer, level Level) Logger {
	return NewLogger(&Config{
		Level:       level,
		ServiceName: "test",
		Environment: "test",
		JSONFormat:  true,
		Output:      buf,
	})
}

func parseLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestDefaultLoggerConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, LevelInfo, cfg.Level)
	assert.Equal(t, "expopulse", cfg.ServiceName)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.JSONFormat)
}

func TestNewLoggerNilConfig(t *testing.T) {
	assert.NotNil(t, NewLogger(nil))
}

func TestLoggerJSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(&Config{
		Level:       LevelDebug,
		ServiceName: "test-service",
		Environment: "testing",
		JSONFormat:  true,
		Output:      buf,
	})

	log.Info("recording completed", F("booth", "A12"))

	out := parseLine(t, buf)
	assert.Equal(t, "recording completed", out["message"])
	assert.Equal(t, "test-service", out["service_name"])
	assert.Equal(t, "testing", out["environment"])
	assert.Equal(t, "A12", out["booth"])
	assert.Equal(t, "info", out["level"])
	assert.Contains(t, out, "time")
}

func TestLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := newJSONLogger(buf, LevelDebug)

			switch level {
			case "debug":
				log.Debug("msg")
			case "info":
				log.Info("msg")
			case "warn":
				log.Warn("msg")
			case "error":
				log.Error("msg")
			}

			assert.Equal(t, level, parseLine(t, buf)["level"])
		})
	}
}

func TestLoggerWith(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newJSONLogger(buf, LevelInfo).With(
		F("component", "pipeline"),
		F("worker_id", 3),
	)

	log.Info("stage complete")

	out := parseLine(t, buf)
	assert.Equal(t, "pipeline", out["component"])
	assert.Equal(t, float64(3), out["worker_id"])
}

func TestLoggerWithContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newJSONLogger(buf, LevelInfo)

	ctx := ContextWithRecordingID(context.Background(), "rec-123")
	ctx = context.WithValue(ctx, RequestIDKey, "req-456")

	log.WithContext(ctx).Info("processing started")

	out := parseLine(t, buf)
	assert.Equal(t, "rec-123", out["recording_id"])
	assert.Equal(t, "req-456", out["request_id"])
}

func TestLoggerWithContextEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newJSONLogger(buf, LevelInfo)

	log.WithContext(context.Background()).Info("no recording")

	out := parseLine(t, buf)
	assert.NotContains(t, out, "recording_id")
	assert.NotContains(t, out, "request_id")
}

func TestLoggerFieldTypes(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newJSONLogger(buf, LevelInfo)

	log.Info("type test",
		F("label", "Guest 1"),
		F("speakers", 3),
		F("offset", int64(9999999999)),
		F("duration_s", 42.5),
		F("linked", true),
		F("elapsed", 5*time.Second),
		F("started_at", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)),
		Err(errors.New("provider unavailable")),
	)

	out := parseLine(t, buf)
	assert.Equal(t, "Guest 1", out["label"])
	assert.Equal(t, float64(3), out["speakers"])
	assert.Equal(t, float64(9999999999), out["offset"])
	assert.Equal(t, 42.5, out["duration_s"])
	assert.Equal(t, true, out["linked"])
	assert.Equal(t, "provider unavailable", out["error"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newJSONLogger(buf, LevelWarn)

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown warn")
	log.Error("shown error")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "shown warn")
	assert.Contains(t, lines[1], "shown error")
}

func TestLoggerConsoleOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(&Config{
		Level:       LevelInfo,
		ServiceName: "my-service",
		Environment: "dev",
		JSONFormat:  false,
		Output:      buf,
	})

	log.Info("console output test", F("booth", "A12"))

	assert.Contains(t, buf.String(), "console output test")
	assert.Contains(t, buf.String(), "INF")
}

func TestFieldHelpers(t *testing.T) {
	f := F("key", "value")
	assert.Equal(t, "key", f.Key)
	assert.Equal(t, "value", f.Value)

	err := errors.New("boom")
	ef := Err(err)
	assert.Equal(t, "error", ef.Key)
	assert.Equal(t, err, ef.Value)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    Level
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{Level("invalid"), "info"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseLevel(tt.input).String(), string(tt.input))
	}
}
