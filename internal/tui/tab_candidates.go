package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"proxyscout/internal/latency"
	"proxyscout/internal/scoring"
	"proxyscout/internal/storage/models"
)

// entry is one table row.
type entry struct {
	candidate models.Candidate
	state     latency.State
	result    *scoring.EvaluatedCandidate
}

type candidatesModel struct {
	table   table.Model
	entries []entry
	width   int
	height  int

	running   bool
	finished  bool
	completed int
	progress  progress.Model

	selected *scoring.EvaluatedCandidate
	degraded bool
}

func candidateColumns(addrWidth int) []table.Column {
	return []table.Column{
		{Title: "#", Width: 3},
		{Title: "Address", Width: addrWidth},
		{Title: "State", Width: 12},
		{Title: "Mean", Width: 9},
		{Title: "P95", Width: 9},
		{Title: "Success", Width: 8},
		{Title: "Score", Width: 6},
		{Title: "QoS", Width: 6},
		{Title: "", Width: 2},
	}
}

func newCandidatesModel() candidatesModel {
	t := table.New(
		table.WithColumns(candidateColumns(22)),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(colorPurple)
	s.Selected = s.Selected.
		Foreground(colorFg).
		Background(lipgloss.AdaptiveColor{Light: "#E8E0F0", Dark: "#2A1A3E"}).
		Bold(true)
	t.SetStyles(s)

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithoutPercentage(),
	)

	return candidatesModel{
		table:    t,
		progress: p,
	}
}

func (cm *candidatesModel) setSize(w, h int) {
	cm.width = w
	cm.height = h
	th := h - 1 // progress line
	if th < 1 {
		th = 1
	}
	cm.table.SetHeight(th)

	if w > 90 {
		cm.table.SetColumns(candidateColumns(w - 72))
	}
	cm.progress.Width = w / 2
}

// start resets the table to the candidates in input order.
func (cm *candidatesModel) start(candidates []models.Candidate) {
	cm.entries = make([]entry, len(candidates))
	for i, c := range candidates {
		cm.entries[i] = entry{candidate: c, state: latency.StatePending}
	}
	cm.running = true
	cm.finished = false
	cm.completed = 0
	cm.selected = nil
	cm.degraded = false
	cm.refreshRows()
	cm.table.GotoTop()
}

// apply records a progress event. Indices refer to input order.
func (cm *candidatesModel) apply(p latency.Progress) {
	if !cm.running || p.Index < 0 || p.Index >= len(cm.entries) {
		return
	}
	e := &cm.entries[p.Index]
	e.state = p.State
	if p.Result != nil {
		e.result = p.Result
	}
	if p.State == latency.StateDone && p.Completed > cm.completed {
		cm.completed = p.Completed
	}
	cm.refreshRows()
}

// finish replaces the rows with the ranked results.
func (cm *candidatesModel) finish(msg evalDoneMsg) {
	cm.running = false
	cm.finished = true
	cm.selected = msg.selected
	cm.degraded = msg.degraded
	if msg.batch != nil {
		cm.entries = make([]entry, len(msg.batch.Results))
		for i, r := range msg.batch.Results {
			cm.entries[i] = entry{candidate: r.Candidate, state: latency.StateDone, result: r}
		}
		cm.completed = len(cm.entries)
	}
	cm.refreshRows()
	cm.table.GotoTop()
}

func (cm *candidatesModel) current() *entry {
	idx := cm.table.Cursor()
	if idx >= 0 && idx < len(cm.entries) {
		return &cm.entries[idx]
	}
	return nil
}

func (cm *candidatesModel) refreshRows() {
	rows := make([]table.Row, len(cm.entries))
	for i, e := range cm.entries {
		mean, p95, success, score, qos := "-", "-", "-", "-", "-"
		if r := e.result; r != nil {
			if m := r.Stats.Basic.Mean; m != nil {
				mean = fmt.Sprintf("%.0fms", *m)
			}
			if p := r.Stats.Basic.P95; p != nil {
				p95 = fmt.Sprintf("%.0fms", *p)
			}
			success = fmt.Sprintf("%.0f%%", r.Stats.SuccessRate*100)
			score = fmt.Sprintf("%.2f", r.CompositeScore)
			qos = fmt.Sprintf("%.2f", r.QoSScore)
		}

		state := string(e.state)
		if e.result != nil && e.state == latency.StateDone {
			switch {
			case e.result.Error != "":
				state = "error"
			case !e.result.IsWorking():
				state = "failed"
			case e.result.IsFallback:
				state = "ok (fallback)"
			default:
				state = "ok"
			}
		}

		mark := ""
		if cm.selected != nil && e.result == cm.selected {
			mark = "*"
			if cm.degraded {
				mark = "~"
			}
		}

		rows[i] = table.Row{
			fmt.Sprintf("%d", i+1),
			truncate(e.candidate.Address, 40),
			state,
			mean,
			p95,
			success,
			score,
			qos,
			mark,
		}
	}
	cm.table.SetRows(rows)
}

func (cm *candidatesModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	var cmd tea.Cmd
	cm.table, cmd = cm.table.Update(msg)
	return cmd
}

func (cm *candidatesModel) View(s spinner.Model) string {
	var b strings.Builder

	total := len(cm.entries)
	switch {
	case cm.running:
		pct := 0.0
		if total > 0 {
			pct = float64(cm.completed) / float64(total)
		}
		b.WriteString(fmt.Sprintf("%s Evaluating %d/%d ", s.View(), cm.completed, total))
		b.WriteString(cm.progress.ViewAs(pct))
	case cm.finished && cm.selected == nil:
		b.WriteString(errorStyle.Render("No working candidate found"))
	case cm.finished && cm.degraded:
		b.WriteString(warningStyle.Render(fmt.Sprintf("Degraded pick: %s (no candidate met the thresholds)", cm.selected.Candidate.Address)))
	case cm.finished:
		b.WriteString(successStyle.Render(fmt.Sprintf("Selected: %s  score %.2f", cm.selected.Candidate.Address, cm.selected.CompositeScore)))
	default:
		b.WriteString(dimStyle.Render("Waiting to start"))
	}
	b.WriteString("\n")
	b.WriteString(cm.table.View())

	return forceHeight(b.String(), cm.width, cm.height)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "~"
}
