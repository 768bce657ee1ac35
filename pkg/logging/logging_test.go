package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreDefaults(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(prev)
		log.SetOutput(os.Stderr)
	})
}

func TestSetupWriterShapesRecords(t *testing.T) {
	restoreDefaults(t)

	var buf bytes.Buffer
	logger := SetupWriter(&buf, "attentionrush", "test", slog.LevelInfo)
	logger.Info("batch sent", "count", 3)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "batch sent", record["message"])
	assert.Equal(t, "INFO", record["severity"])
	assert.Equal(t, "attentionrush", record["service"])
	assert.Equal(t, "test", record["env"])
	assert.Equal(t, float64(3), record["count"])
	assert.Contains(t, record, "timestamp")
	assert.NotContains(t, record, "msg")
}

func TestSetupWriterOmitsEmptyEnv(t *testing.T) {
	restoreDefaults(t)

	var buf bytes.Buffer
	SetupWriter(&buf, "attentionrush", " ", slog.LevelInfo)
	slog.Warn("default logger replaced")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, "env")
	assert.Equal(t, "WARN", record["severity"])
}

func TestSetupWritesLogFile(t *testing.T) {
	restoreDefaults(t)

	path := filepath.Join(t.TempDir(), "tips.log")
	logger := Setup("attentionrush", "test", path, slog.LevelInfo)
	logger.Info("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"message":"to file"`))
}

func TestSetupWriterHonoursLevel(t *testing.T) {
	restoreDefaults(t)

	var buf bytes.Buffer
	logger := SetupWriter(&buf, "attentionrush", "test", slog.LevelInfo)
	logger.Debug("skipping viewport tip")
	assert.Empty(t, buf.String())

	buf.Reset()
	logger = SetupWriter(&buf, "attentionrush", "test", slog.LevelDebug)
	logger.Debug("skipping viewport tip")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "DEBUG", record["severity"])
	assert.Equal(t, "skipping viewport tip", record["message"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
