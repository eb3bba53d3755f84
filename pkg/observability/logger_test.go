package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer, level LogLevel) *slog.Logger {
	return NewLogger(LogConfig{
		Level:          level,
		Format:         LogFormatJSON,
		Output:         buf,
		ServiceName:    "axyra-worker",
		ServiceVersion: "1.2.3",
	})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewLogger_ServiceAttributes(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf, LogLevelInfo).Info("usage refreshed", "resource", "employees")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "usage refreshed", entry["msg"])
	assert.Equal(t, "axyra-worker", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Equal(t, "employees", entry["resource"])
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: LogLevelInfo, Format: LogFormatText, Output: &buf})

	logger.Info("plan changed", "to", "basic")
	assert.Contains(t, buf.String(), "msg=\"plan changed\"")
	assert.Contains(t, buf.String(), "to=basic")
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, LogLevelWarn)

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLogger_ContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, LogLevelDebug)

	ctx := WithCorrelationID(context.Background(), "corr-1")
	ctx = WithUserID(ctx, "user-9")
	logger.With("component", "accountant").InfoContext(ctx, "refresh started")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "corr-1", entry[CorrelationIDKey])
	assert.Equal(t, "user-9", entry[UserIDKey])
	assert.Equal(t, "accountant", entry["component"])
}

func TestNewLogger_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, LogLevelInfo).WithGroup("usage")

	logger.InfoContext(WithCorrelationID(context.Background(), "c"), "measured", "employees", 4)

	entry := decodeLine(t, &buf)
	group, ok := entry["usage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(4), group["employees"])
}

func TestDefaultAndProductionConfigs(t *testing.T) {
	def := DefaultLogConfig()
	assert.Equal(t, LogFormatText, def.Format)
	assert.Equal(t, "axyra", def.ServiceName)
	assert.False(t, def.AddSource)

	prod := ProductionLogConfig()
	assert.Equal(t, LogFormatJSON, prod.Format)
	assert.True(t, prod.AddSource)
}

func TestParseSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseSlogLevel(LogLevelDebug))
	assert.Equal(t, slog.LevelWarn, parseSlogLevel(LogLevelWarn))
	assert.Equal(t, slog.LevelError, parseSlogLevel(LogLevelError))
	assert.Equal(t, slog.LevelInfo, parseSlogLevel("verbose"))
}

func TestLoggerFromEnv(t *testing.T) {
	t.Setenv("AXYRA_ENV", "")
	t.Setenv("AXYRA_LOG_LEVEL", "error")
	t.Setenv("AXYRA_LOG_FORMAT", "json")

	logger := LoggerFromEnv()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestServiceLogger(t *testing.T) {
	logger := ServiceLogger("axyra-worker", "debug", false)
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger = ServiceLogger("axyra-worker", "warn", true)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

func TestContextAccessors(t *testing.T) {
	assert.Empty(t, CorrelationIDFromContext(context.Background()))
	assert.Empty(t, UserIDFromContext(context.Background()))

	ctx := WithCorrelationID(context.Background(), "")
	assert.Len(t, CorrelationIDFromContext(ctx), 36)
}
