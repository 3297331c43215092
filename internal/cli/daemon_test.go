package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxyscout/internal/config"
	"proxyscout/internal/latency"
	"proxyscout/internal/storage/models"
	"proxyscout/internal/updater"
)

type steadyProber struct{}

func (steadyProber) Probe(_ context.Context, _ models.Candidate, endpoint string) models.ProbeOutcome {
	ms, status := 80.0, 204
	return models.ProbeOutcome{Endpoint: endpoint, Working: true, LatencyMS: &ms, StatusCode: &status}
}

type recordingPusher struct {
	mu    sync.Mutex
	calls []string
}

func (p *recordingPusher) UpdateProxy(_ context.Context, _ []int, proxyURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, proxyURL)
	return nil
}

func newTestScheduler(t *testing.T) *updater.Scheduler {
	t.Helper()
	cfg := config.Default()
	cfg.Engine.SampleDelay = 0
	cfg.Engine.CustomEndpoints = []string{"http://probe.test/a"}
	cfg.Channel.BaseURL = "http://api.test"
	cfg.Channel.Token = "tok"
	cfg.Channel.ChannelIDs = []int{3}

	tc, err := cfg.Engine.TesterConfig(steadyProber{}, nil, nil)
	require.NoError(t, err)

	u, err := updater.New(updater.Deps{
		Config:    cfg,
		Loader:    updater.StaticLoader{Candidates: []models.Candidate{{Address: "10.0.0.9:3128", Credential: "alice"}}},
		Evaluator: latency.NewTester(tc),
		Pusher:    &recordingPusher{},
	})
	require.NoError(t, err)

	s, err := updater.NewScheduler(u, "0 * * * *", nil)
	require.NoError(t, err)
	return s
}

func getStatus(t *testing.T, s *updater.Scheduler) runStatus {
	t.Helper()
	srv := httptest.NewServer(statusHandler(s))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var st runStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func TestStatusHandlerBeforeFirstRun(t *testing.T) {
	st := getStatus(t, newTestScheduler(t))
	assert.Equal(t, 0, st.Runs)
	assert.Empty(t, st.Selected)
	assert.False(t, st.Pushed)
	assert.Empty(t, st.Error)
}

func TestStatusHandlerReportsLastRun(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		runs, _, _ := s.Last()
		return runs == 1
	}, 5*time.Second, 10*time.Millisecond)

	st := getStatus(t, s)
	assert.Equal(t, 1, st.Runs)
	assert.Equal(t, "10.0.0.9:3128", st.Selected)
	assert.Greater(t, st.Composite, 0.0)
	assert.True(t, st.Pushed)
	assert.False(t, st.Skipped)
	assert.False(t, st.StartedAt.IsZero())
	assert.Empty(t, st.Error)
}
