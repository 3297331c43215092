package tui

import (
	"proxyscout/internal/latency"
	"proxyscout/internal/scoring"
)

// Evaluation messages.

type evalProgressMsg struct {
	run      int
	progress latency.Progress
}

type evalDoneMsg struct {
	run      int
	batch    *latency.BatchResult
	selected *scoring.EvaluatedCandidate
	degraded bool
	err      error
}

// Settings messages.

type settingsLoadedMsg struct {
	settings map[string]string
	err      error
}

type settingSavedMsg struct {
	key string
	err error
}

// Notification.

type clearNotificationMsg struct {
	version int
}
