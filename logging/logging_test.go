package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"scorecast/config"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestFileOutputAndLevelChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scorecast.log")
	logger, err := New(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("prediction served", zap.String("request_id", "req-1"))

	require.NoError(t, logger.SetLevel("debug"))
	assert.Equal(t, zapcore.DebugLevel, logger.Level.Level())
	logger.Debug("now visible")
	assert.Error(t, logger.SetLevel("verbose"))
	_ = logger.Sync()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var messages []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		messages = append(messages, entry["msg"].(string))
		if entry["msg"] == "prediction served" {
			assert.Equal(t, "req-1", entry["request_id"])
		}
	}
	assert.Equal(t, []string{"prediction served", "log level changed", "now visible"}, messages)
}

func TestDevelopmentConsole(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "warn", Development: true})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}
