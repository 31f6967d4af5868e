package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the styles used for text output. Colors are dropped
// automatically when the writer is not a terminal.
type Theme struct {
	Required    lipgloss.Style
	NotRequired lipgloss.Style
	Progress    lipgloss.Style
	Dim         lipgloss.Style
	Warn        lipgloss.Style
	Advice      lipgloss.Style
}

func newTheme(w io.Writer) Theme {
	r := lipgloss.NewRenderer(w)
	return Theme{
		Required:    r.NewStyle().Foreground(lipgloss.Color("#FF5F5F")),
		NotRequired: r.NewStyle().Foreground(lipgloss.Color("#5FD75F")),
		Progress:    r.NewStyle().Foreground(lipgloss.Color("#874BFD")),
		Dim:         r.NewStyle().Foreground(lipgloss.Color("#888888")),
		Warn:        r.NewStyle().Foreground(lipgloss.Color("#FFAF00")),
		Advice:      r.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
	}
}
