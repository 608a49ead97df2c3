package ui

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/homesim/internal/prefs"
	"github.com/five82/homesim/internal/simulator"
	"github.com/five82/homesim/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewSimulator View = iota
	ViewLogs
)

type pane int

const (
	paneSidebar pane = iota
	paneCanvas
)

// Options configures the UI.
type Options struct {
	Context    context.Context
	Controller *simulator.Controller
	Prefs      prefs.Prefs
	PrefsPath  string
	LogPath    string
	Logger     *slog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx        context.Context
	controller *simulator.Controller
	logger     *slog.Logger
	prefs      prefs.Prefs
	prefsPath  string
	logPath    string

	keys        keyMap
	theme       Theme
	currentView View
	focus       pane
	width       int
	height      int
	ready       bool

	snapshot   state.Snapshot
	sidebarRow int
	canvasRow  int

	// started and clock drive the fan animation.
	started time.Time
	clock   time.Time

	save       *saveDialog
	submitting bool
	showHelp   bool

	logState logState
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	now := time.Now()
	m := Model{
		ctx:        ctx,
		controller: opts.Controller,
		logger:     logger.With("component", "ui"),
		prefs:      opts.Prefs,
		prefsPath:  prefsPath,
		logPath:    opts.LogPath,
		keys:       DefaultKeyMap(),
		theme:      GetTheme(opts.Prefs.Theme),
		started:    now,
		clock:      now,
		logState:   newLogState(),
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return frameCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeLogViewport()
		return m, nil

	case frameMsg:
		return m.handleFrame(time.Time(msg))

	case actionDoneMsg:
		m.refresh()
		if msg.err != nil {
			m.logger.Debug("action failed", "op", msg.op, "err", msg.err)
		}
		return m, nil

	case savedMsg:
		return m.handleSaved(msg)

	case logsMsg:
		m.handleLogs(msg)
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	body := m.bodyHeight()
	var content string
	switch {
	case m.save != nil:
		content = m.renderSaveDialog(m.width, body)
	case m.currentView == ViewLogs:
		content = m.renderLogs(m.width, body)
	default:
		content = m.renderSimulator(m.width, body)
	}
	return m.renderHeader() + "\n" + content + "\n" + m.renderStatus()
}

func (m Model) bodyHeight() int {
	if h := m.height - 2; h > 0 {
		return h
	}
	return 0
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.save != nil {
		return m.handleSaveKey(msg)
	}
	if m.currentView == ViewLogs && m.logState.searching {
		return m.handleLogSearchInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		m.renderLogContent()
		return m, nil

	case key.Matches(msg, m.keys.Logs):
		if m.currentView == ViewLogs {
			m.currentView = ViewSimulator
			return m, nil
		}
		m.currentView = ViewLogs
		m.logState.lastRefresh = m.clock
		return m, m.loadLogsCmd()
	}

	if m.currentView == ViewLogs {
		return m.handleLogsKey(msg)
	}
	return m.handleSimulatorKey(msg)
}

// handleFrame advances the animation clock and picks up state changes made
// by commands still in flight.
func (m Model) handleFrame(t time.Time) (tea.Model, tea.Cmd) {
	m.clock = t
	m.refresh()

	cmds := []tea.Cmd{frameCmd()}
	if m.currentView == ViewLogs && m.logState.follow && t.Sub(m.logState.lastRefresh) >= LogRefreshInterval {
		m.logState.lastRefresh = t
		cmds = append(cmds, m.loadLogsCmd())
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) refresh() {
	if m.controller == nil {
		return
	}
	m.snapshot = m.controller.State().Snapshot()
	m.canvasRow = clampIndex(m.canvasRow, len(m.snapshot.Devices))
	m.sidebarRow = clampIndex(m.sidebarRow, len(m.sidebarItems()))
}

func (m *Model) savePrefs() {
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn("save prefs failed", "path", m.prefsPath, "err", err)
	}
}

// Messages

type frameMsg time.Time

type actionDoneMsg struct {
	op  string
	err error
}

// Commands

func frameCmd() tea.Cmd {
	return tea.Tick(FrameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// runAction wraps a blocking controller call in a command.
func (m Model) runAction(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{op: op, err: fn(ctx)}
	}
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(opts Options) error {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(opts.Context))
	_, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
