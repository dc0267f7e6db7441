package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		wantErr bool
		expect  logrus.Level
	}{
		{"info", "info", false, logrus.InfoLevel},
		{"debug upper case", "DEBUG", false, logrus.DebugLevel},
		{"warning alias", "warning", false, logrus.WarnLevel},
		{"unknown", "loud", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(&bytes.Buffer{}, tt.level, false)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expect, logger.GetLevel())
		})
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "info", true)
	require.NoError(t, err)

	logger.WithField("job", "channel:UC1").Info("Feed generated")
	logger.Debug("hidden")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Feed generated", entry["msg"])
	assert.Equal(t, "channel:UC1", entry["job"])
	assert.Equal(t, "info", entry["level"])
}

func TestSetup(t *testing.T) {
	std := logrus.StandardLogger()
	out, level, formatter := std.Out, std.GetLevel(), std.Formatter
	defer func() {
		std.SetOutput(out)
		std.SetLevel(level)
		std.SetFormatter(formatter)
	}()

	var buf bytes.Buffer
	logger, err := Setup(&buf, "warn", false)
	require.NoError(t, err)
	assert.Same(t, std, logger)

	logrus.Info("dropped")
	logrus.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
