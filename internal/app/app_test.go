package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func noEnv(values map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := values[k]
		return v, ok
	}
}

func TestNewLayersConfiguration(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "test.db")

	// Seed stored settings.
	a, err := New(Options{DBPath: dbPath, Lookup: noEnv(map[string]string{"PROXYSCOUT_LOG_FILE": "none"})})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, a.Storage.SetSetting(ctx, "engine.concurrency", "7"))
	require.NoError(t, a.Storage.SetSetting(ctx, "engine.max_candidates", "9"))
	require.NoError(t, a.Storage.SetSetting(ctx, "source.region", "日本"))
	require.NoError(t, a.Close())

	a, err = New(Options{
		DBPath: dbPath,
		Lookup: noEnv(map[string]string{
			"PROXYSCOUT_LOG_FILE":  "none",
			"MAX_PROXY_TEST_COUNT": "3",
			"PROXY_REGION":         "香港",
		}),
		Overrides: map[string]string{"source.region": "台湾"},
		Console:   zapcore.AddSync(&discard{}),
	})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 7, a.Config.Engine.Concurrency)   // stored
	assert.Equal(t, 3, a.Config.Engine.MaxCandidates) // env over stored
	assert.Equal(t, "台湾", a.Config.Source.Region)     // flag over env
	assert.Equal(t, dbPath, a.Config.Storage.DBPath)
	assert.Empty(t, a.Config.Log.File)
	assert.NotNil(t, a.Metrics)
}

func TestNewDBPathFromEnv(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "env.db")
	a, err := New(Options{Lookup: noEnv(map[string]string{DBPathEnv: dbPath, "PROXYSCOUT_LOG_FILE": "none"})})
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, dbPath, a.Config.Storage.DBPath)
}

func TestNewRejectsBadOverride(t *testing.T) {
	_, err := New(Options{
		DBPath:    filepath.Join(t.TempDir(), "x.db"),
		Lookup:    noEnv(nil),
		Overrides: map[string]string{"engine.concurrency": "many"},
	})
	assert.Error(t, err)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
