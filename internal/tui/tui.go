package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"proxyscout/internal/config"
	"proxyscout/internal/latency"
	"proxyscout/internal/metrics"
	"proxyscout/internal/storage"
	"proxyscout/internal/storage/models"
)

// Tab indices.
const (
	tabCandidates = 0
	tabDetails    = 1
	tabSettings   = 2
	tabCount      = 3
)

// Model is the root BubbleTea model.
type Model struct {
	// Dependencies.
	cfg        *config.Config
	store      storage.Storage
	candidates []models.Candidate
	prober     latency.Prober
	metrics    *metrics.Recorder
	logger     *zap.Logger
	program    sender

	// Dimensions.
	width  int
	height int

	// Navigation.
	activeTab int
	showHelp  bool

	// Evaluation state. run identifies the current evaluation so messages
	// from a cancelled one are dropped.
	run    int
	ctx    context.Context
	cancel context.CancelFunc

	// Tab models.
	candidatesTab candidatesModel
	detailsTab    detailsModel
	settingsTab   settingsModel

	// Notification.
	notification    string
	notificationErr bool
	notifVersion    int

	spinner spinner.Model
}

// Deps holds all dependencies injected into the TUI.
type Deps struct {
	Config     *config.Config
	Storage    storage.Storage
	Candidates []models.Candidate
	Prober     latency.Prober // nil probes over HTTP
	Metrics    *metrics.Recorder
	Logger     *zap.Logger
}

// NewModel creates a new root Model.
func NewModel(deps Deps) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Model{
		cfg:           cfg,
		store:         deps.Storage,
		candidates:    deps.Candidates,
		prober:        deps.Prober,
		metrics:       deps.Metrics,
		logger:        logger,
		activeTab:     tabCandidates,
		ctx:           context.Background(),
		spinner:       s,
		candidatesTab: newCandidatesModel(),
		detailsTab:    newDetailsModel(),
		settingsTab:   newSettingsModel(cfg),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		loadSettings(m.store),
		m.startRun(),
		m.spinner.Tick,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	prevNotifVersion := m.notifVersion

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		ch := m.contentHeight()
		m.candidatesTab.setSize(msg.Width, ch)
		m.detailsTab.setSize(msg.Width, ch)
		m.settingsTab.setSize(msg.Width, ch)
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}

	// Evaluation.
	case evalProgressMsg:
		if msg.run == m.run {
			m.candidatesTab.apply(msg.progress)
		}
	case evalDoneMsg:
		if msg.run != m.run {
			return m, nil
		}
		m.candidatesTab.finish(msg)
		m.cancelRun()
		switch {
		case msg.err != nil:
			m.setNotification(fmt.Sprintf("Evaluation stopped: %v", msg.err), true)
		case msg.batch != nil:
			m.setNotification(
				fmt.Sprintf("Tested %d: %d working, %d failed, %d fallback",
					msg.batch.Tested, msg.batch.Working, msg.batch.Failed, msg.batch.Fallbacks), msg.selected == nil)
		}

	// Settings.
	case settingsLoadedMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Loading settings failed: %v", msg.err), true)
		} else {
			m.settingsTab.setStored(msg.settings)
		}
	case settingSavedMsg:
		if msg.err != nil {
			delete(m.settingsTab.stored, msg.key)
			m.setNotification(fmt.Sprintf("Save failed: %v", msg.err), true)
		} else {
			m.setNotification(fmt.Sprintf("Saved %s", msg.key), false)
		}

	// Notification.
	case clearNotificationMsg:
		if msg.version == m.notifVersion {
			m.notification = ""
			m.notificationErr = false
		}

	case progress.FrameMsg:
		pm, cmd := m.candidatesTab.progress.Update(msg)
		if p, ok := pm.(progress.Model); ok {
			m.candidatesTab.progress = p
		}
		cmds = append(cmds, cmd)
	}

	if m.candidatesTab.running {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Schedule notification auto-clear when a new notification was set.
	if m.notifVersion > prevNotifVersion && m.notification != "" {
		cmds = append(cmds, clearNotification(4*time.Second, m.notifVersion))
	}

	// Delegate to active tab.
	switch m.activeTab {
	case tabCandidates:
		cmds = append(cmds, m.candidatesTab.Update(msg, m))
	case tabSettings:
		cmds = append(cmds, m.settingsTab.Update(msg, m))
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	st := runStatus{
		running:   m.candidatesTab.running,
		finished:  m.candidatesTab.finished,
		completed: m.candidatesTab.completed,
		total:     len(m.candidatesTab.entries),
		degraded:  m.candidatesTab.degraded,
	}
	if sel := m.candidatesTab.selected; sel != nil {
		st.selected = sel.Candidate.Address
	}
	header := renderHeader(m.activeTab, st, m.width)

	var content string
	switch m.activeTab {
	case tabCandidates:
		content = m.candidatesTab.View(m.spinner)
	case tabDetails:
		content = m.detailsTab.View(m.candidatesTab.current())
	case tabSettings:
		content = m.settingsTab.View()
	}

	var notif string
	if m.notification != "" {
		if m.notificationErr {
			notif = notifErrorStyle.Render("! " + m.notification)
		} else {
			notif = notifSuccessStyle.Render("* " + m.notification)
		}
	}

	helpText := renderHelpBar(m.showHelp)
	footer := renderFooter(helpText, m.width)

	parts := []string{header}
	if notif != "" {
		parts = append(parts, notif)
	}
	parts = append(parts, content, footer)
	output := lipgloss.JoinVertical(lipgloss.Left, parts...)

	// Force exactly m.height lines to prevent BubbleTea rendering drift.
	return forceHeight(output, m.width, m.height)
}

// forceHeight ensures the string has exactly `height` lines, each padded to `width`.
// This prevents BubbleTea from leaving ghost lines when switching tabs.
func forceHeight(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	blank := strings.Repeat(" ", width)
	for len(lines) < height {
		lines = append(lines, blank)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) contentHeight() int {
	overhead := 5
	if m.showHelp {
		overhead += 3
	}
	h := m.height - overhead
	if h < 1 {
		h = 1
	}
	return h
}

// startRun begins a new evaluation of the candidate list with the current
// configuration, cancelling any evaluation still in flight.
func (m *Model) startRun() tea.Cmd {
	m.cancelRun()
	m.run++

	tc, err := m.cfg.Engine.TesterConfig(m.prober, m.metrics, m.logger)
	if err != nil {
		m.setNotification(fmt.Sprintf("Invalid engine settings: %v", err), true)
		return nil
	}
	candidates := m.candidates
	if n := tc.MaxCandidates; n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	tester := latency.NewTester(tc)
	policy := m.cfg.Engine.Policy(m.logger)

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.candidatesTab.start(candidates)

	return runEvaluation(ctx, m.run, tester, policy, candidates, m.program)
}

func (m *Model) cancelRun() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// handleGlobalKey reports whether the key was consumed.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if m.activeTab == tabSettings && m.settingsTab.editing {
		return nil, false
	}

	switch {
	case key.Matches(msg, keys.Quit):
		m.cancelRun()
		return tea.Quit, true

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		ch := m.contentHeight()
		m.candidatesTab.setSize(m.width, ch)
		m.detailsTab.setSize(m.width, ch)
		m.settingsTab.setSize(m.width, ch)
		return nil, true

	case key.Matches(msg, keys.TabNext):
		m.activeTab = (m.activeTab + 1) % tabCount
		return nil, true

	case key.Matches(msg, keys.TabPrev):
		m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		return nil, true

	case key.Matches(msg, keys.Run):
		if m.candidatesTab.running {
			return nil, true
		}
		return tea.Batch(m.startRun(), m.spinner.Tick), true

	case key.Matches(msg, keys.Enter):
		if m.activeTab == tabCandidates && m.candidatesTab.current() != nil {
			m.activeTab = tabDetails
			return nil, true
		}

	case key.Matches(msg, keys.Back):
		if m.activeTab == tabDetails {
			m.activeTab = tabCandidates
			return nil, true
		}
	}

	return nil, false
}

func (m *Model) setNotification(text string, isErr bool) {
	m.notification = text
	m.notificationErr = isErr
	m.notifVersion++
}

// NewProgram creates a bubbletea program with alt screen.
func NewProgram(ctx context.Context, deps Deps) *tea.Program {
	m := NewModel(deps)
	m.ctx = ctx
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.program = p
	return p
}
