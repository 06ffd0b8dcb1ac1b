package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/couchcryptid/palmer-drought-service/internal/domain"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	headerStyle = lipgloss.NewStyle().Bold(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	wetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2E86DE"))
	dryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E67E22"))

	passStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF4D4F"))
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// Index values at or beyond these read as moderately dry or wet.
const (
	dryThreshold = -2.0
	wetThreshold = 2.0
)

// renderResult draws every table in result inside its own box.
func renderResult(result domain.ComputationResult) string {
	var b strings.Builder
	for _, nt := range namedTables(result) {
		b.WriteString(titleStyle.Render(nt.name))
		b.WriteString("\n")
		b.WriteString(boxStyle.Render(renderTable(*nt.table)))
		b.WriteString("\n")
	}
	return b.String()
}

func renderTable(t domain.ResultTable) string {
	lines := make([]string, 0, len(t.Rows)+1)

	cells := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cells[i] = fmt.Sprintf("%6s", c)
	}
	lines = append(lines, headerStyle.Render(strings.Join(cells, " ")))

	for _, r := range t.Rows {
		cells = cells[:0]
		cells = append(cells, fmt.Sprintf("%6d", r.Year))
		for _, v := range r.Values {
			cells = append(cells, styleValue(v).Render(fmt.Sprintf("%6.2f", v)))
		}
		lines = append(lines, strings.Join(cells, " "))
	}
	return strings.Join(lines, "\n")
}

func styleValue(v float64) lipgloss.Style {
	switch {
	case v <= dryThreshold:
		return dryStyle
	case v >= wetThreshold:
		return wetStyle
	default:
		return lipgloss.NewStyle()
	}
}
