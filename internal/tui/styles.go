package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary  = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim      = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorAccent   = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}
	colorGreen    = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorRed      = lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F5F"}
	colorTabBg    = lipgloss.AdaptiveColor{Light: "#EEEEEE", Dark: "#2A2A3E"}
	colorStatusBg = lipgloss.AdaptiveColor{Light: "#E8E8E8", Dark: "#16213E"}
	colorStatusFg = lipgloss.AdaptiveColor{Light: "#3D3D3D", Dark: "#ABABAB"}

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			PaddingLeft(1)

	updatedStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			PaddingLeft(1)

	tabActiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorPrimary).
			Padding(0, 1).
			Bold(true)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(colorStatusFg).
				Background(colorTabBg).
				Padding(0, 1)

	itemTitleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary)

	itemSelectedStyle = lipgloss.NewStyle().
				Foreground(colorAccent).
				Bold(true)

	itemSourceStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	itemTimeStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	heartStyle = lipgloss.NewStyle().
			Foreground(colorAccent)

	descStyle = lipgloss.NewStyle().
			Foreground(colorStatusFg).
			PaddingLeft(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true).
			PaddingLeft(1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true).
			PaddingLeft(1)

	statusBarStyle = lipgloss.NewStyle().
			Background(colorStatusBg).
			Foreground(colorStatusFg).
			PaddingLeft(1).
			PaddingRight(1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorAccent)
)
