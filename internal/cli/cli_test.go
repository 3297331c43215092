package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxyscout/internal/scoring"
	"proxyscout/internal/storage/models"
	"proxyscout/internal/storage/sqlite"
	pkgerrors "proxyscout/pkg/errors"
)

// execute runs the command tree against dbPath and returns its output.
func execute(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PROXYSCOUT_LOG_FILE", "none")
	t.Setenv("PROXYSCOUT_LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--db", dbPath}, args...))
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "proxyscout.db")
}

// fakeProxy answers every proxied request with 204.
func fakeProxy(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func fastEngineEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PROXYSCOUT_ENGINE_CUSTOM_ENDPOINTS", "http://probe.test/a,http://probe.test/b")
	t.Setenv("PROXYSCOUT_ENGINE_FALLBACK_ENDPOINTS", "http://probe.test/fallback")
	t.Setenv("PROXYSCOUT_ENGINE_SAMPLE_DELAY", "0")
	t.Setenv("PROXYSCOUT_ENGINE_REQUEST_TIMEOUT", "2s")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, tempDB(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "proxyscout "+version)
}

func TestSettingsLifecycle(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, db, "settings", "set", "engine.concurrency", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "engine.concurrency = 7")

	out, err = execute(t, db, "settings", "get", "engine.concurrency")
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)

	_, err = execute(t, db, "settings", "set", "engine.concurrency", "lots")
	assert.ErrorIs(t, err, pkgerrors.ErrConfigInvalid)

	_, err = execute(t, db, "settings", "set", "engine.concurrency", "0")
	assert.ErrorIs(t, err, pkgerrors.ErrConfigInvalid)

	_, err = execute(t, db, "settings", "set", "engine.bogus", "1")
	assert.ErrorIs(t, err, pkgerrors.ErrSettingUnknown)

	out, err = execute(t, db, "settings", "set", "channel.token", "s3cr3t")
	require.NoError(t, err)
	assert.NotContains(t, out, "s3cr3t")

	out, err = execute(t, db, "settings", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "engine.concurrency")
	assert.Contains(t, out, "stored")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "s3cr3t")

	out, err = execute(t, db, "settings", "unset", "engine.concurrency")
	require.NoError(t, err)
	assert.Contains(t, out, "removed")

	out, err = execute(t, db, "settings", "unset", "engine.concurrency")
	require.NoError(t, err)
	assert.Contains(t, out, "was not stored")

	out, err = execute(t, db, "settings", "get", "engine.concurrency")
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)
}

func TestCacheShowAndClear(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, db, "cache", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "No cache record.")

	store, err := sqlite.New(db)
	require.NoError(t, err)
	require.NoError(t, store.SaveCacheRecord(context.Background(), &models.CacheRecord{
		ContentHash:        "abc123",
		SelectedAddress:    "10.0.0.1:8080",
		SelectedCredential: "alice",
		CompositeScore:     0.91,
		UpdatedAt:          time.Now().UTC(),
	}))
	require.NoError(t, store.Close())

	out, err = execute(t, db, "cache", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "10.0.0.1:8080")
	assert.Contains(t, out, "0.910")

	out, err = execute(t, db, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache cleared.")

	out, err = execute(t, db, "cache", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "No cache record.")
}

func TestTestCommandJSON(t *testing.T) {
	fastEngineEnv(t)
	addr := fakeProxy(t)

	out, err := execute(t, tempDB(t), "test", "--json",
		"--candidate", addr+",alice",
		"--candidate", "127.0.0.1:1,bob",
	)
	require.NoError(t, err)

	var report struct {
		Results  []*scoring.EvaluatedCandidate `json:"results"`
		Selected *scoring.EvaluatedCandidate   `json:"selected"`
		Degraded bool                          `json:"degraded"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	require.Len(t, report.Results, 2)
	require.NotNil(t, report.Selected)
	assert.Equal(t, addr, report.Selected.Candidate.Address)
	assert.Equal(t, "alice", report.Selected.Candidate.Credential)
	assert.False(t, report.Degraded)
	assert.Equal(t, addr, report.Results[0].Candidate.Address)
	assert.False(t, report.Results[1].IsWorking())
	assert.True(t, report.Results[1].IsFallback)
}

func TestRunDryRun(t *testing.T) {
	fastEngineEnv(t)
	addr := fakeProxy(t)

	out, err := execute(t, tempDB(t), "run", "--dry-run", "--candidate", addr+",alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Selected: "+addr)
	assert.Contains(t, out, "Dry run, not pushed: http://alice:1@"+addr)
}

func TestParseCandidates(t *testing.T) {
	got, err := parseCandidates([]string{"10.0.0.1:80,alice", " 10.0.0.2:8080 "})
	require.NoError(t, err)
	assert.Equal(t, []models.Candidate{
		{Address: "10.0.0.1:80", Credential: "alice"},
		{Address: "10.0.0.2:8080"},
	}, got)

	_, err = parseCandidates([]string{"no-port,alice"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidAddress)
}
