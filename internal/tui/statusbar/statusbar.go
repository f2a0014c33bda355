package statusbar

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/lossim/internal/tui/theme"
)

// Model is the status bar component.
type Model struct {
	width     int
	connected bool
	connName  string
	runID     string
	message   string
}

// New creates a new status bar model.
func New() Model {
	return Model{}
}

// SetWidth updates the component width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// SetConnected updates the connection status display.
func (m *Model) SetConnected(connected bool, name string) {
	m.connected = connected
	m.connName = name
}

// SetRunID shows the id of the current simulation run.
func (m *Model) SetRunID(id string) {
	m.runID = id
}

// SetMessage sets a temporary status message.
func (m *Model) SetMessage(msg string) {
	m.message = msg
}

// View renders the status bar.
func (m Model) View() string {
	style := theme.StyleStatusBar.Width(m.width)

	var left string
	if m.connected {
		left = lipgloss.NewStyle().
			Foreground(theme.ColorSuccess).
			Render("●") + " " + m.connName
	} else {
		left = lipgloss.NewStyle().
			Foreground(theme.ColorError).
			Render("●") + " disconnected"
	}
	if m.runID != "" {
		left += theme.StyleMuted.Render("  run " + m.runID)
	}

	right := "↑/↓: Scroll rows │ q: Quit"
	if m.message != "" {
		right = m.message
	}

	padding := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-4, 1) // borders + spacing

	return style.Render(left + strings.Repeat(" ", padding) + right)
}
