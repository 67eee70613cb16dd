package tui

import (
	"github.com/charmbracelet/lipgloss"

	"codeberg.org/vestilook/server/internal/status"
)

var (
	colorWhite     = lipgloss.Color("#FFFFFF")
	colorLightGray = lipgloss.Color("#CCCCCC")
	colorGray      = lipgloss.Color("#888888")
	colorDarkGray  = lipgloss.Color("#444444")
	colorRose      = lipgloss.Color("#d4728c")
	colorGreen     = lipgloss.Color("#5fd787")
	colorYellow    = lipgloss.Color("#d7d75f")
	colorRed       = lipgloss.Color("#ff5f5f")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRose).
			Align(lipgloss.Center).
			MarginTop(1).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorLightGray).
			Align(lipgloss.Center).
			MarginBottom(2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	menuItemStyle = lipgloss.NewStyle().
			Foreground(colorLightGray).
			PaddingLeft(2)

	menuItemSelectedStyle = lipgloss.NewStyle().
				Foreground(colorWhite).
				Bold(true).
				PaddingLeft(2)

	commandStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Bold(true)

	commandDescStyle = lipgloss.NewStyle().
				Foreground(colorGray).
				PaddingLeft(1)

	inputStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(colorLightGray)

	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Italic(true)

	successStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorDarkGray).
			Italic(true).
			MarginTop(1)
)

// colors a status state the same way everywhere
func stateStyle(s status.State) lipgloss.Style {
	switch s {
	case status.StateSucceeded:
		return successStyle
	case status.StateFailed:
		return errorStyle
	case status.StateExpired:
		return infoStyle
	default:
		return warningStyle
	}
}

const logo = `
  ██╗   ██╗███████╗███████╗████████╗██╗██╗      ██████╗  ██████╗ ██╗  ██╗
  ██║   ██║██╔════╝██╔════╝╚══██╔══╝██║██║     ██╔═══██╗██╔═══██╗██║ ██╔╝
  ██║   ██║█████╗  ███████╗   ██║   ██║██║     ██║   ██║██║   ██║█████╔╝
  ╚██╗ ██╔╝██╔══╝  ╚════██║   ██║   ██║██║     ██║   ██║██║   ██║██╔═██╗
   ╚████╔╝ ███████╗███████║   ██║   ██║███████╗╚██████╔╝╚██████╔╝██║  ██╗
    ╚═══╝  ╚══════╝╚══════╝   ╚═╝   ╚═╝╚══════╝ ╚═════╝  ╚═════╝ ╚═╝  ╚═╝
`
