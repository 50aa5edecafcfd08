package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Styles bind to the stderr renderer, where prompts and summaries are drawn
var (
	Bold  lipgloss.Style
	Dim   lipgloss.Style
	Green lipgloss.Style
	Box   lipgloss.Style
)

func init() {
	lipgloss.SetDefaultRenderer(lipgloss.NewRenderer(os.Stderr))

	Bold = lipgloss.NewStyle().Bold(true)
	Dim = lipgloss.NewStyle().Faint(true)
	Green = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("4")).
		Padding(0, 1)
}
