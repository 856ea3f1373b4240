package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles of the chat view.
type Styles struct {
	Title     lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Tools     lipgloss.Style
	Error     lipgloss.Style
	Help      lipgloss.Style
	Body      lipgloss.Style
}

func DefaultStyles() *Styles {
	var (
		primary   = lipgloss.Color("#1E88E5")
		secondary = lipgloss.Color("#06B6D4")
		muted     = lipgloss.Color("#6C7086")
		errColor  = lipgloss.Color("#F38BA8")
		success   = lipgloss.Color("#A6E3A1")
	)
	return &Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(primary).Padding(0, 1),
		User:      lipgloss.NewStyle().Bold(true).Foreground(secondary),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(success),
		Tools:     lipgloss.NewStyle().Italic(true).Foreground(muted),
		Error:     lipgloss.NewStyle().Foreground(errColor),
		Help:      lipgloss.NewStyle().Foreground(muted),
		Body:      lipgloss.NewStyle(),
	}
}
