package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "proxyscout.log")

	logger, err := New(Options{
		Level:     "info",
		File:      file,
		MaxSizeMB: 1,
		Console:   zapcore.AddSync(&console),
	})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("candidate selected", zap.String("address", "1.2.3.4:80"))
	require.NoError(t, logger.Sync())

	assert.Contains(t, console.String(), "candidate selected")
	assert.NotContains(t, console.String(), "hidden")

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "candidate selected", entry["msg"])
	assert.Equal(t, "1.2.3.4:80", entry["address"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}
