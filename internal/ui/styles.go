package ui

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#7D56F4")
	muted   = lipgloss.Color("#6C7086")
	danger  = lipgloss.Color("#F38BA8")
	success = lipgloss.Color("#A6E3A1")
)

type styles struct {
	Title    lipgloss.Style
	Error    lipgloss.Style
	Info     lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	TaskName lipgloss.Style
	Done     lipgloss.Style
	Form     lipgloss.Style
	Label    lipgloss.Style
	Footer   lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			MarginBottom(1),
		Error: lipgloss.NewStyle().
			Foreground(danger),
		Info: lipgloss.NewStyle().
			Foreground(success),
		Muted: lipgloss.NewStyle().
			Foreground(muted),
		Selected: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true),
		TaskName: lipgloss.NewStyle().
			Bold(true),
		Done: lipgloss.NewStyle().
			Foreground(success),
		Form: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		Label: lipgloss.NewStyle().
			Foreground(muted).
			Width(13),
		Footer: lipgloss.NewStyle().
			Foreground(muted).
			MarginTop(1),
	}
}
