package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("#7C3AED")
	colorDim    = lipgloss.Color("#6B7280")
	colorOK     = lipgloss.Color("#16A34A")
	colorWarn   = lipgloss.Color("#DC2626")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			Padding(0, 1)

	userStyle      = lipgloss.NewStyle().Bold(true)
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	dateStyle      = lipgloss.NewStyle().Foreground(colorDim)
	imageStyle     = lipgloss.NewStyle().Foreground(colorDim).Italic(true)
	emptyStyle     = lipgloss.NewStyle().Foreground(colorDim).Italic(true)
	loadingStyle   = lipgloss.NewStyle().Foreground(colorAccent)

	successStyle = lipgloss.NewStyle().Foreground(colorOK)
	errorStyle   = lipgloss.NewStyle().Foreground(colorWarn)

	counterStyle     = lipgloss.NewStyle().Foreground(colorDim)
	counterWarnStyle = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)

	helpStyle = lipgloss.NewStyle().Foreground(colorDim)
)
