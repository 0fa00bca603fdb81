package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles contains the visual styling for command output.
type Styles struct {
	Title   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Subtle  lipgloss.Style
}

// DefaultStyles returns the default styling.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		Subtle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
	}
}
