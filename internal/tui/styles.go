package tui

import "github.com/charmbracelet/lipgloss"

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	// TitleStyle styles the heading above the table.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))

	statusStyles = map[string]lipgloss.Style{
		"done":      lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"satisfied": lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"ok":        lipgloss.NewStyle().Foreground(lipgloss.Color("2")),

		"detecting": lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"running":   lipgloss.NewStyle().Foreground(lipgloss.Color("4")),

		"skipped": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"partial": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"missing": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"warning": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),

		"failed":  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		"blocked": lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		"error":   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),

		"pending": lipgloss.NewStyle().Faint(true),
	}
)

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
