package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		enable  slog.Level
		disable slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug, slog.LevelDebug - 1},
		{"warn level", "WARN", slog.LevelWarn, slog.LevelInfo},
		{"error level", "error", slog.LevelError, slog.LevelWarn},
		{"default info", "", slog.LevelInfo, slog.LevelDebug},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			assert.True(t, logger.Enabled(ctx, tt.enable))
			assert.False(t, logger.Enabled(ctx, tt.disable))
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	require.NotNil(t, logger.Logger)

	ctx := context.Background()
	assert.True(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.False(t, logger.Enabled(ctx, slog.LevelDebug))
	assert.NotSame(t, logger, Default())
}

func TestComponentTagsOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info").Component("bookings")

	logger.Info("appointment booked", "inquiry_id", "inq-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "bookings", line["component"])
	assert.Equal(t, "inq-1", line["inquiry_id"])
	assert.Equal(t, "appointment booked", line["msg"])
}

func TestComponentOnNilLogger(t *testing.T) {
	var logger *Logger
	assert.NotNil(t, logger.Component("x"))
}
