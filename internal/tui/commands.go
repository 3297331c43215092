package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"proxyscout/internal/config"
	"proxyscout/internal/latency"
	"proxyscout/internal/scoring"
	"proxyscout/internal/storage"
	"proxyscout/internal/storage/models"
)

// sender delivers messages from worker goroutines; *tea.Program satisfies it.
type sender interface {
	Send(msg tea.Msg)
}

// runEvaluation tests the candidates and streams progress through s.
func runEvaluation(ctx context.Context, run int, tester *latency.Tester, policy scoring.Policy, candidates []models.Candidate, s sender) tea.Cmd {
	return func() tea.Msg {
		progress := func(p latency.Progress) {
			if s != nil {
				s.Send(evalProgressMsg{run: run, progress: p})
			}
		}
		batch := tester.TestBatch(ctx, candidates, progress)
		if err := ctx.Err(); err != nil {
			return evalDoneMsg{run: run, batch: batch, err: err}
		}
		selected := policy.Select(batch.Results)
		return evalDoneMsg{
			run:      run,
			batch:    batch,
			selected: selected,
			degraded: selected != nil && !policy.Qualifies(selected),
		}
	}
}

// loadSettings fetches the stored setting overrides.
func loadSettings(store storage.Storage) tea.Cmd {
	return func() tea.Msg {
		if store == nil {
			return settingsLoadedMsg{settings: map[string]string{}}
		}
		settings, err := store.GetAllSettings(context.Background())
		return settingsLoadedMsg{settings: settings, err: err}
	}
}

// saveSetting applies a setting to cfg and persists it.
func saveSetting(store storage.Storage, cfg *config.Config, key, value string) tea.Cmd {
	if err := cfg.Set(key, value); err != nil {
		return func() tea.Msg { return settingSavedMsg{key: key, err: err} }
	}
	return func() tea.Msg {
		if store == nil {
			return settingSavedMsg{key: key}
		}
		err := store.SetSetting(context.Background(), key, value)
		return settingSavedMsg{key: key, err: err}
	}
}

// clearNotification returns a command that fires after a delay.
func clearNotification(d time.Duration, version int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearNotificationMsg{version: version}
	})
}
