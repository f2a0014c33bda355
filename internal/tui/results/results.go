package results

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/lossim/internal/database"
	"github.com/joacominatel/lossim/internal/tui/theme"
)

// maxColWidth caps the width of a rendered column.
const maxColWidth = 40

// Model renders a table snapshot, such as the rows staged in the backup table.
type Model struct {
	title     string
	result    *database.QueryResult
	err       error
	width     int
	height    int
	scrollY   int
	loading   bool
	colWidths []int
}

// New creates a new results model.
func New(title string) Model {
	return Model{title: title}
}

// SetTitle changes the pane title.
func (m *Model) SetTitle(title string) {
	m.title = title
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// SetResult sets the snapshot to display.
func (m *Model) SetResult(r *database.QueryResult) {
	m.result = r
	m.err = nil
	m.scrollY = 0
	m.loading = false
	m.calculateColumnWidths()
}

// SetError sets an error to display.
func (m *Model) SetError(err error) {
	m.err = err
	m.result = nil
	m.scrollY = 0
	m.loading = false
}

// Result returns the snapshot currently displayed.
func (m Model) Result() *database.QueryResult {
	return m.result
}

func (m *Model) calculateColumnWidths() {
	if m.result == nil || len(m.result.Columns) == 0 {
		m.colWidths = nil
		return
	}

	m.colWidths = make([]int, len(m.result.Columns))

	// Display width, not byte length
	for i, col := range m.result.Columns {
		m.colWidths[i] = lipgloss.Width(col)
	}

	for _, row := range m.result.Rows {
		for i, cell := range row {
			w := lipgloss.Width(cell)
			if i < len(m.colWidths) && w > m.colWidths[i] {
				m.colWidths[i] = w
			}
		}
	}

	for i := range m.colWidths {
		m.colWidths[i] = max(1, min(m.colWidths[i], maxColWidth))
	}
}

// Update scrolls the snapshot.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || m.result == nil {
		return m, nil
	}

	last := max(m.result.RowCount-1, 0)
	switch key.String() {
	case "up", "k":
		m.scrollY = max(m.scrollY-1, 0)
	case "down", "j":
		m.scrollY = min(m.scrollY+1, last)
	case "pgup":
		m.scrollY = max(m.scrollY-m.height/2, 0)
	case "pgdown":
		m.scrollY = min(m.scrollY+m.height/2, last)
	}
	return m, nil
}

// View renders the snapshot grid.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(0, 1)
	title := titleStyle.Render(m.title)

	switch {
	case m.loading:
		return title + "\n" + theme.StyleMuted.Render("  Loading rows...")
	case m.err != nil:
		return title + "\n" + theme.StyleError.Render("  Error: "+m.err.Error())
	case m.result == nil:
		return title + "\n" + theme.StyleMuted.Render("  Rows appear once the backup is written")
	}

	stats := fmt.Sprintf("%d row(s) | %s", m.result.RowCount, m.result.Duration.Round(1000).String())
	header := title + "  " + theme.StyleMuted.Render(stats)

	if len(m.result.Columns) == 0 {
		return header
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(m.renderRow(m.result.Columns, true))
	b.WriteString("\n")
	b.WriteString(m.renderSeparator())

	visibleRows := max(m.height-4, 1)
	for i := m.scrollY; i < len(m.result.Rows) && i < m.scrollY+visibleRows; i++ {
		b.WriteString("\n")
		b.WriteString(m.renderRow(m.result.Rows[i], false))
	}

	return b.String()
}

func (m Model) renderRow(cells []string, isHeader bool) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		width := 10
		if i < len(m.colWidths) {
			width = max(m.colWidths[i], 1)
		}

		display := truncate(cell, width)
		if pad := width - lipgloss.Width(display); pad > 0 {
			display += strings.Repeat(" ", pad)
		}

		if isHeader {
			parts[i] = lipgloss.NewStyle().
				Bold(true).
				Foreground(theme.ColorPrimary).
				Render(display)
		} else {
			parts[i] = display
		}
	}
	return "  " + strings.Join(parts, " │ ")
}

func (m Model) renderSeparator() string {
	parts := make([]string, len(m.colWidths))
	for i, w := range m.colWidths {
		parts[i] = strings.Repeat("─", max(w, 1))
	}
	return "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Join(parts, "─┼─"))
}

// truncate shortens s to width display cells, ending with an ellipsis.
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) >= width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
