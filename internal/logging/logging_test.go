package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBufferLogger builds a JSON logger writing into buf so tests can
// inspect emitted records.
func newBufferLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler), config: DefaultConfig()}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	return record
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, LevelInfo, cfg.Level)
	assert.Equal(t, FormatText, cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
	assert.False(t, cfg.AddSource)
}

func TestNewWithLevels(t *testing.T) {
	for _, level := range []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		cfg := DefaultConfig()
		cfg.Level = level
		logger, err := New(cfg)
		require.NoError(t, err, "level %s", level)
		require.NotNil(t, logger)
	}

	// Unknown levels fall back to info rather than failing.
	cfg := DefaultConfig()
	cfg.Level = "trace"
	logger, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "portsweep.log")
	cfg := Config{Level: LevelInfo, Format: FormatJSON, Output: path}

	logger, err := New(cfg)
	require.NoError(t, err)

	logger.Info("hello from test")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo).WithComponent("scanner")

	logger.Info("starting")

	record := decodeLine(t, &buf)
	assert.Equal(t, "scanner", record["component"])
	assert.Equal(t, "starting", record["msg"])
}

func TestWithSessionID(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo).WithSessionID("abc-123")

	logger.Info("running")

	record := decodeLine(t, &buf)
	assert.Equal(t, "abc-123", record["session_id"])
}

func TestInfoScan(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo)

	logger.InfoScan("scan started", "10.0.0.1", "ports", 4)

	record := decodeLine(t, &buf)
	assert.Equal(t, "10.0.0.1", record["target"])
	assert.Equal(t, float64(4), record["ports"])
}

func TestDebugProbe(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelDebug)

	logger.DebugProbe("probe completed", "10.0.0.1", 22, "status", "open")

	record := decodeLine(t, &buf)
	assert.Equal(t, "10.0.0.1", record["address"])
	assert.Equal(t, float64(22), record["port"])
	assert.Equal(t, "open", record["status"])
}

func TestDebugProbeSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo)

	logger.DebugProbe("probe completed", "10.0.0.1", 22)

	assert.Zero(t, buf.Len())
}

func TestSetDefault(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(newBufferLogger(&buf, slog.LevelInfo))

	Info("through the package-level logger")

	assert.Contains(t, buf.String(), "through the package-level logger")
}
