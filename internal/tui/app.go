package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/lossim/internal/app"
	"github.com/joacominatel/lossim/internal/database"
	"github.com/joacominatel/lossim/internal/tui/results"
	"github.com/joacominatel/lossim/internal/tui/statusbar"
	"github.com/joacominatel/lossim/internal/tui/theme"
)

// snapshotLimit bounds the rows read back from the backup table.
const snapshotLimit = 200

// Custom messages for async operations.
type (
	connectedMsg struct {
		err error
	}
	eventMsg struct {
		event app.Event
	}
	simulationDoneMsg struct {
		report *app.Report
		err    error
	}
	snapshotLoadedMsg struct {
		result *database.QueryResult
		err    error
	}
)

// stepState is the last known state of one simulation step.
type stepState struct {
	seen   bool
	status app.Status
	detail string
	err    error
}

// Model is the top-level bubbletea model showing the progress of one run.
type Model struct {
	migrator  *app.Migrator
	plan      app.Plan
	dsn       string
	connName  string
	spinner   spinner.Model
	steps     map[app.Step]stepState
	results   results.Model
	statusbar statusbar.Model
	events    chan tea.Msg
	ctx       context.Context
	cancel    context.CancelFunc
	report    *app.Report
	err       error
	running   bool
	quitting  bool
	width     int
	height    int
}

// NewModel creates the top-level model. The run starts once Init connects.
func NewModel(ctx context.Context, migrator *app.Migrator, plan app.Plan, dsn, connName string) Model {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(theme.StyleRunning),
	)

	m := Model{
		migrator:  migrator,
		plan:      plan,
		dsn:       dsn,
		connName:  connName,
		spinner:   s,
		steps:     make(map[app.Step]stepState, len(app.Steps)),
		results:   results.New("Backup rows"),
		statusbar: statusbar.New(),
		ctx:       ctx,
		cancel:    cancel,
		running:   true,
	}
	m.statusbar.SetMessage("Connecting to " + connName + "...")
	return m
}

// Report returns the report of the finished run, or nil.
func (m Model) Report() *app.Report {
	return m.report
}

// Err returns the error that ended the run, if any.
func (m Model) Err() error {
	return m.err
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.connectCmd())
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			if m.running && m.events != nil {
				// Wait for the run to observe the cancellation.
				m.quitting = true
				m.statusbar.SetMessage("Cancelling...")
				return m, nil
			}
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.running = false
			m.statusbar.SetMessage("Connection failed")
			return m, nil
		}
		m.statusbar.SetConnected(true, m.connName)
		m.statusbar.SetMessage("Simulating...")
		m.events = make(chan tea.Msg)
		return m, tea.Batch(m.simulateCmd(), waitForEvent(m.events))

	case eventMsg:
		ev := msg.event
		m.statusbar.SetRunID(ev.RunID)
		m.steps[ev.Step] = stepState{seen: true, status: ev.Status, detail: ev.Detail, err: ev.Err}
		return m, waitForEvent(m.events)

	case simulationDoneMsg:
		m.running = false
		m.report = msg.report
		m.err = msg.err
		if m.quitting {
			return m, tea.Quit
		}
		if msg.err != nil {
			m.statusbar.SetMessage("Simulation failed")
			return m, nil
		}
		m.statusbar.SetMessage("Done")
		m.results.SetTitle("Backup rows: " + msg.report.BackupTable)
		m.results.SetLoading(true)
		return m, m.snapshotCmd(msg.report.BackupTable)

	case snapshotLoadedMsg:
		if msg.err != nil {
			m.results.SetError(msg.err)
			return m, nil
		}
		m.results.SetResult(msg.result)
		return m, nil
	}

	return m, nil
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	// header + steps + borders + status bar
	used := 4 + len(app.Steps) + 3 + 1
	m.results.SetSize(m.width-4, max(m.height-used, 3))
	m.statusbar.SetWidth(m.width)
}

// Async commands

func (m Model) connectCmd() tea.Cmd {
	migrator, ctx, dsn := m.migrator, m.ctx, m.dsn
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return connectedMsg{err: migrator.Connect(ctx, dsn)}
	}
}

// simulateCmd runs the whole simulation, forwarding every event to the
// events channel, and closes the channel when the run ends.
func (m Model) simulateCmd() tea.Cmd {
	migrator, ctx, plan, events := m.migrator, m.ctx, m.plan, m.events
	return func() tea.Msg {
		defer close(events)
		report, err := migrator.Simulate(ctx, plan, func(ev app.Event) {
			// nobody drains events once the program has exited
			select {
			case events <- eventMsg{event: ev}:
			case <-ctx.Done():
			}
		})
		return simulationDoneMsg{report: report, err: err}
	}
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) snapshotCmd(table string) tea.Cmd {
	migrator, ctx := m.migrator, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		result, err := migrator.Snapshot(ctx, table, snapshotLimit)
		return snapshotLoadedMsg{result: result, err: err}
	}
}

// View renders the UI.
func (m Model) View() string {
	title := theme.StyleTitle.Padding(1, 0, 0, 0).Render("lossim")
	subtitle := theme.StyleMuted.Render(fmt.Sprintf("%s.%s → %s · sample %d",
		m.plan.Table, m.plan.KeyField, m.plan.BackupTable, m.plan.SampleSize))

	lines := []string{title, subtitle, ""}
	for _, step := range app.Steps {
		lines = append(lines, m.renderStep(step))
	}

	if m.err != nil {
		lines = append(lines, "", theme.StyleError.Render("  Error: "+m.err.Error()))
	}

	body := lipgloss.JoinVertical(lipgloss.Left, lines...)

	resultsWidth := m.width - 2
	if resultsWidth < 20 {
		resultsWidth = 20
	}
	resultsView := theme.StyleBorder.
		Width(resultsWidth).
		Render(m.results.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		body,
		resultsView,
		m.statusbar.View(),
	)
}

func (m Model) renderStep(step app.Step) string {
	st := m.steps[step]
	name := fmt.Sprintf("%-10s", step.String())

	var icon string
	switch {
	case !st.seen:
		icon = theme.StyleMuted.Render("○")
		name = theme.StyleMuted.Render(name)
	case st.status == app.StatusStarted:
		icon = m.spinner.View()
	case st.status == app.StatusDone:
		icon = theme.StyleSuccess.Render("✓")
	case st.status == app.StatusFailed:
		icon = theme.StyleError.Render("✗")
	case st.status == app.StatusSkipped:
		icon = theme.StyleMuted.Render("-")
		name = theme.StyleMuted.Render(name)
	}

	line := "  " + icon + " " + name
	switch {
	case st.err != nil:
		line += "  " + theme.StyleError.Render(firstLine(st.err.Error()))
	case st.detail != "":
		line += "  " + theme.StyleMuted.Render(st.detail)
	}
	return line
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
