package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel log.Level
		wantErr   bool
	}{
		{name: "debug text", level: "debug", format: "text", wantLevel: log.DebugLevel},
		{name: "warn json", level: "warn", format: "json", wantLevel: log.WarnLevel},
		{name: "default format", level: "info", format: "", wantLevel: log.InfoLevel},
		{name: "bad level", level: "loud", format: "text", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := log.New()
			err := initLogger(logger, tt.level, tt.format, Console)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, logger.GetLevel())
		})
	}
}

func TestInitLoggerJSONFormatter(t *testing.T) {
	logger := log.New()
	require.NoError(t, initLogger(logger, "info", "json", ""))
	_, ok := logger.Formatter.(*log.JSONFormatter)
	assert.True(t, ok)
}

func TestInitLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actionstatus.log")
	logger := log.New()
	require.NoError(t, initLogger(logger, "info", "text", path))

	logger.Info("hello")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "hello")
}
