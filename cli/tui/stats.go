package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Snapshot is the set of live numbers the stats dashboard renders, supplied
// by the caller on every poll tick. It mirrors exactly what the non-TUI
// `qtrack stats` output prints; there is no TUI-exclusive data.
type Snapshot struct {
	RunID string

	QueueDepth int

	ConnState         string
	ConsecutiveErrors int

	EventsOffered int64
	EventsDropped int64
	BatchesSent   int64
	BatchesFailed int64
	EventsSent    int64
	Coalesced     int64

	SpoolPendingFiles  int
	SpoolPendingEvents int
	SpoolTotalSynced   int64
}

// PollFunc retrieves a fresh Snapshot on each tick.
type PollFunc func() Snapshot

type keyMap struct {
	Quit key.Binding
}

var statsKeys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

type tickMsg time.Time

// StatsModel is a live-polling Bubble Tea model for the qtrack stats
// dashboard: queue depth, connection state, batch counters, and spool
// backlog, refreshed on an interval.
type StatsModel struct {
	poll     PollFunc
	interval time.Duration
	snap     Snapshot
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a live stats model polling poll every interval.
func NewStatsModel(poll PollFunc, interval time.Duration) StatsModel {
	return StatsModel{
		poll:     poll,
		interval: interval,
		snap:     poll(),
	}
}

func (m StatsModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.snap = m.poll()
		return m, m.tick()

	case tea.KeyMsg:
		if key.Matches(msg, statsKeys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("qtrack stats  (run %s)", m.snap.RunID)))
	b.WriteString("\n\n")

	connStyle := StateStyle(m.snap.ConnState)
	b.WriteString(fmt.Sprintf("%s %s\n\n",
		LabelStyle.Render("Connection:"),
		connStyle.Render(strings.ToUpper(m.snap.ConnState))))

	boxes := []string{
		m.renderStatBox("Queue", int64(m.snap.QueueDepth), highlightColor),
		m.renderStatBox("Offered", m.snap.EventsOffered, lipgloss.Color("#3B82F6")),
		m.renderStatBox("Dropped", m.snap.EventsDropped, errorColor),
		m.renderStatBox("Sent", m.snap.EventsSent, successColor),
		m.renderStatBox("Coalesced", m.snap.Coalesced, mutedColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	boxes = []string{
		m.renderStatBox("Batches OK", m.snap.BatchesSent, successColor),
		m.renderStatBox("Batches Failed", m.snap.BatchesFailed, errorColor),
		m.renderStatBox("Spool Pending", int64(m.snap.SpoolPendingFiles), warningColor),
		m.renderStatBox("Spool Synced", m.snap.SpoolTotalSynced, successColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return b.String() + "\n" + help
}

func (m StatsModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the live stats dashboard until the user quits.
func RunStatsTUI(poll PollFunc, interval time.Duration) error {
	model := NewStatsModel(poll, interval)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders one snapshot without entering the TUI, for
// --tui=false or non-interactive output.
func RenderStatsStatic(snap Snapshot) string {
	m := StatsModel{snap: snap, width: 80, height: 24}
	return lipgloss.NewStyle().Padding(1, 2).Render(m.View())
}
