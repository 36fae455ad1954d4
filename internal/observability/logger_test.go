// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mlecomte/favsync/internal/config"
)

// newTestSink gives each test its own console writer so output assertions
// stay isolated from stdout.
func newTestSink() (*bytes.Buffer, zapcore.WriteSyncer) {
	var buf bytes.Buffer
	return &buf, zapcore.AddSync(&buf)
}

func TestInitialize(t *testing.T) {

	t.Run("should initialize colorized console logger", func(t *testing.T) {
		ResetForTest()
		buf, sink := newTestSink()

		cfg := config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "testservice",
		}
		Initialize(cfg, sink)
		logger := GetLogger()
		logger.Info("console smoke message")

		output := buf.String()
		assert.Contains(t, output, "INFO", "output should contain the log level")
		assert.Contains(t, output, "console smoke message")
		assert.Contains(t, output, colorGreen, "info level should be colorized green")
		assert.Contains(t, output, colorReset)
		assert.Contains(t, output, "testservice.", "console encoder should dot-suffix the logger name")
	})

	t.Run("should initialize json logger", func(t *testing.T) {
		ResetForTest()
		buf, sink := newTestSink()

		cfg := config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "jsontest",
		}
		Initialize(cfg, sink)
		GetLogger().Warn("structured message", zap.String("key", "value"))

		var logEntry map[string]interface{}
		err := json.Unmarshal(buf.Bytes(), &logEntry)
		require.NoError(t, err, "log output should be valid JSON")

		assert.Equal(t, "WARN", logEntry["level"])
		assert.Equal(t, "jsontest", logEntry["logger"])
		assert.Equal(t, "structured message", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("should respect the configured level", func(t *testing.T) {
		ResetForTest()
		buf, sink := newTestSink()

		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, sink)
		logger := GetLogger()
		logger.Info("should be dropped")
		logger.Warn("should be kept")

		output := buf.String()
		assert.NotContains(t, output, "should be dropped")
		assert.Contains(t, output, "should be kept")
	})

	t.Run("should fall back to info on a bad level", func(t *testing.T) {
		ResetForTest()
		buf, sink := newTestSink()

		Initialize(config.LoggerConfig{Level: "nonsense", Format: "json"}, sink)
		logger := GetLogger()
		logger.Debug("debug line")
		logger.Info("info line")

		output := buf.String()
		assert.NotContains(t, output, "debug line")
		assert.Contains(t, output, "info line")
	})

	t.Run("should tee to a log file when configured", func(t *testing.T) {
		ResetForTest()
		tmpFile, err := os.CreateTemp(t.TempDir(), "logger-test-*.log")
		require.NoError(t, err)
		require.NoError(t, tmpFile.Close())

		_, sink := newTestSink()
		cfg := config.LoggerConfig{
			Level:   "debug",
			Format:  "console",
			LogFile: tmpFile.Name(),
			MaxSize: 1, // 1 MB
		}
		Initialize(cfg, sink)
		GetLogger().Error("file-bound message")
		Sync()

		content, err := os.ReadFile(tmpFile.Name())
		require.NoError(t, err)
		assert.Contains(t, string(content), "file-bound message")
		// File output is JSON regardless of the console format.
		var logEntry map[string]interface{}
		require.NoError(t, json.Unmarshal(content, &logEntry))
	})

	t.Run("should only initialize once", func(t *testing.T) {
		ResetForTest()
		buf, sink := newTestSink()

		Initialize(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "first"}, sink)
		logger1 := GetLogger()

		// Second call must be ignored by the sync.Once guard.
		Initialize(config.LoggerConfig{Level: "debug", Format: "console", ServiceName: "second"}, sink)
		logger2 := GetLogger()

		assert.Equal(t, logger1, logger2)
		logger2.Info("probe")

		assert.True(t, strings.Contains(buf.String(), "first"))
		assert.False(t, strings.Contains(buf.String(), "second"))
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("should return a fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		logger := GetLogger()
		require.NotNil(t, logger)
	})

	t.Run("should return the global logger after initialization", func(t *testing.T) {
		ResetForTest()
		_, sink := newTestSink()
		Initialize(config.LoggerConfig{Level: "info", ServiceName: "globaltest"}, sink)

		logger := GetLogger()
		assert.Equal(t, globalLogger.Load(), logger)
	})
}
