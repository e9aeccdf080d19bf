package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"orbit/pkg/eventlog"
	"orbit/pkg/protocol"
	"orbit/pkg/state"
	"orbit/pkg/telemetry"
)

// tickMsg is sent by Bubble Tea on every tick interval.
// Used to trigger periodic refresh from the state snapshot and history log.
type tickMsg time.Time

// snapshotMsg carries the loaded mission state snapshot.
// nil means the state file could not be read.
type snapshotMsg *state.Snapshot

// historyMsg carries the loaded history feed, oldest first.
type historyMsg []protocol.HistoryRecord

// gatesMsg carries the latest quality gate verdicts, newest first.
// nil means the telemetry database could not be read.
type gatesMsg []telemetry.GateRow

// feedLimit caps how many history records the feed keeps.
const feedLimit = 200

// tickCmd returns a command that sends a tickMsg after 2 seconds.
func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// loadSnapshotCmd returns a tea.Cmd that reads the state snapshot from disk.
func loadSnapshotCmd(path string) tea.Cmd {
	return func() tea.Msg {
		snap, err := readSnapshot(path)
		if err != nil {
			return snapshotMsg(nil)
		}
		return snapshotMsg(snap)
	}
}

// readSnapshot parses the state snapshot file. Orbit owns the file; the
// dashboard only ever reads it, so a missing file is an error here rather
// than a reason to create one.
func readSnapshot(path string) (*state.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	snap := &state.Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	return snap, nil
}

// loadHistoryCmd returns a tea.Cmd that tails the shared history log.
func loadHistoryCmd(path string) tea.Cmd {
	return func() tea.Msg {
		events, err := eventlog.Open(path).Query(context.Background(), eventlog.QueryOpts{Limit: feedLimit})
		if err != nil {
			return historyMsg(nil)
		}
		return historyMsg(events)
	}
}

// gateLimit caps how many quality gate verdicts the board shows.
const gateLimit = 5

// loadGatesCmd returns a tea.Cmd that reads the latest quality gates from
// the telemetry database.
func loadGatesCmd(dbPath string) tea.Cmd {
	return func() tea.Msg {
		if _, err := os.Stat(dbPath); err != nil {
			return gatesMsg(nil)
		}
		store, err := telemetry.Open(dbPath)
		if err != nil {
			return gatesMsg(nil)
		}
		defer store.Close() //nolint:errcheck // best-effort close on read-only path
		gates, err := store.QualityGates(context.Background(), "", gateLimit)
		if err != nil {
			return gatesMsg(nil)
		}
		return gatesMsg(gates)
	}
}

// defaultDBPath returns the telemetry database path from env or default.
func defaultDBPath() string {
	if v := os.Getenv("ORBIT_DB_PATH"); v != "" {
		return v
	}
	return filepath.Join(orbitHome(), "telemetry.db")
}

// defaultStatePath returns the state snapshot path from env or default.
func defaultStatePath() string {
	if v := os.Getenv("ORBIT_STATE_PATH"); v != "" {
		return v
	}
	return filepath.Join(orbitHome(), "state.json")
}

// defaultHistoryPath returns the history log path from env or default.
func defaultHistoryPath() string {
	if v := os.Getenv("ORBIT_HISTORY_PATH"); v != "" {
		return v
	}
	return filepath.Join(orbitHome(), "history.jsonl")
}

// orbitHome returns the orbit home directory from ORBIT_HOME or ~/.orbit.
func orbitHome() string {
	if v := os.Getenv("ORBIT_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".orbit")
}

// ViewType represents different views in the dashboard.
type ViewType int

const (
	// BoardView shows the mission board.
	BoardView ViewType = iota
	// FeedView shows the scrollable history feed.
	FeedView
)

// Model is the Bubble Tea model for the orbit dashboard.
type Model struct {
	activeView ViewType

	statePath   string
	historyPath string
	dbPath      string

	// Data fetched from disk
	snap   *state.Snapshot
	events []protocol.HistoryRecord
	gates  []telemetry.GateRow

	// Aggregate counts for the status bar
	activeMission string
	queuedCount   int
	runningCount  int
	blockedCount  int
	doneCount     int

	// UI state
	width  int
	height int

	feed      viewport.Model
	feedReady bool

	// Spinner shown until the first snapshot load completes.
	spin   spinner.Model
	loaded bool
}

// newModel creates a new Model initialized with BoardView active.
func newModel() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(DefaultTheme().Primary)

	return Model{
		activeView:  BoardView,
		statePath:   defaultStatePath(),
		historyPath: defaultHistoryPath(),
		dbPath:      defaultDBPath(),
		spin:        sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		loadSnapshotCmd(m.statePath),
		loadHistoryCmd(m.historyPath),
		loadGatesCmd(m.dbPath),
		m.spin.Tick,
		tickCmd(),
	}
	if watch := watchStateDir(filepath.Dir(m.statePath)); watch != nil {
		cmds = append(cmds, watch)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m = m.resizeFeed()

	case snapshotMsg:
		m.loaded = true
		m = m.applySnapshot((*state.Snapshot)(msg))

	case historyMsg:
		m.events = []protocol.HistoryRecord(msg)
		m = m.refreshFeedContent()

	case gatesMsg:
		m.gates = []telemetry.GateRow(msg)

	case spinner.TickMsg:
		if m.loaded {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case fsChangeMsg:
		// State changed on disk: reload immediately and re-arm the watcher.
		cmds := []tea.Cmd{loadSnapshotCmd(m.statePath), loadHistoryCmd(m.historyPath), loadGatesCmd(m.dbPath)}
		if watch := watchStateDir(filepath.Dir(m.statePath)); watch != nil {
			cmds = append(cmds, watch)
		}
		return m, tea.Batch(cmds...)

	case tickMsg:
		return m, tea.Batch(loadSnapshotCmd(m.statePath), loadHistoryCmd(m.historyPath), loadGatesCmd(m.dbPath), tickCmd())
	}

	return m, nil
}

// handleKeyPress processes keyboard input and returns updated model with optional command.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab", "f":
		if m.activeView == BoardView {
			m.activeView = FeedView
		} else {
			m.activeView = BoardView
		}
	case "b", "esc":
		m.activeView = BoardView
	}

	// Remaining keys (j/k, pgup/pgdown, arrows) scroll the feed viewport.
	if m.activeView == FeedView && m.feedReady {
		var cmd tea.Cmd
		m.feed, cmd = m.feed.Update(msg)
		return m, cmd
	}
	return m, nil
}

// applySnapshot replaces the cached snapshot and recomputes status bar counts.
func (m Model) applySnapshot(snap *state.Snapshot) Model {
	m.snap = snap
	m.activeMission = ""
	m.queuedCount = 0
	m.runningCount = 0
	m.blockedCount = 0
	m.doneCount = 0

	if snap == nil {
		return m
	}
	m.activeMission = snap.Workflow.ActiveMission
	m.queuedCount = len(snap.Workflow.Queue)
	for _, mission := range snap.Missions {
		switch mission.Status {
		case protocol.StatusInProgress, protocol.StatusCurrent:
			m.runningCount++
		case protocol.StatusBlocked:
			m.blockedCount++
		case protocol.StatusCompleted:
			m.doneCount++
		}
	}
	return m
}

// resizeFeed sizes the feed viewport below the status bar, creating it on
// the first WindowSizeMsg.
func (m Model) resizeFeed() Model {
	if m.width == 0 || m.height == 0 {
		return m
	}
	feedHeight := m.height - 2
	if feedHeight < 1 {
		feedHeight = 1
	}
	if !m.feedReady {
		m.feed = viewport.New(m.width, feedHeight)
		m.feedReady = true
		m = m.refreshFeedContent()
		return m
	}
	m.feed.Width = m.width
	m.feed.Height = feedHeight
	return m
}

// refreshFeedContent re-renders the feed viewport from the cached events.
func (m Model) refreshFeedContent() Model {
	if !m.feedReady {
		return m
	}
	m.feed.SetContent(renderFeed(m.events, DefaultTheme()))
	return m
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.loaded {
		return m.spin.View() + " loading mission state..."
	}

	statusBar := m.renderStatusBar()

	switch m.activeView {
	case FeedView:
		if m.feedReady {
			return statusBar + "\n" + m.feed.View()
		}
		return statusBar + "\n" + renderFeed(m.events, DefaultTheme())
	default:
		board := NewBoardModel(m.snap)
		return statusBar + "\n" + board.Render() + "\n" + renderGates(m.gates, DefaultTheme())
	}
}

// renderStatusBar renders the status bar with the active mission and aggregate stats.
func (m Model) renderStatusBar() string {
	theme := DefaultTheme()

	var active string
	if m.activeMission != "" {
		active = lipgloss.NewStyle().Foreground(theme.Success).Render("active: " + m.activeMission)
	} else {
		active = lipgloss.NewStyle().Foreground(theme.Muted).Render("active: none")
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		active,
		lipgloss.NewStyle().Render(" | Queued: "),
		lipgloss.NewStyle().Foreground(theme.Warning).Render(fmt.Sprintf("%d", m.queuedCount)),
		lipgloss.NewStyle().Render(" | Running: "),
		lipgloss.NewStyle().Foreground(theme.Success).Render(fmt.Sprintf("%d", m.runningCount)),
		lipgloss.NewStyle().Render(" | Blocked: "),
		lipgloss.NewStyle().Foreground(theme.Error).Render(fmt.Sprintf("%d", m.blockedCount)),
		lipgloss.NewStyle().Render(" | Done: "),
		lipgloss.NewStyle().Foreground(theme.Primary).Render(fmt.Sprintf("%d", m.doneCount)),
	)
}
