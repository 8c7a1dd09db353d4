package cli

import "github.com/charmbracelet/lipgloss"

// Somfy palette
var (
	Amber     = lipgloss.Color("#F5A623")
	Slate     = lipgloss.Color("#4A5568")
	White     = lipgloss.Color("#FFFFFF")
	LightGray = lipgloss.Color("#B0B0B0")

	Success = lipgloss.Color("#00FF88")
	Warning = lipgloss.Color("#FFD700")
	Error   = lipgloss.Color("#FF6B6B")

	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Background(Slate).
			Bold(true).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(Amber)

	ValueStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Amber).
			Padding(0, 1)
)

const (
	CheckMark = "✓"
	CrossMark = "✗"
	Bullet    = "•"
)

// availability renders a device's availability marker.
func availability(ok bool) string {
	if ok {
		return SuccessStyle.Render(CheckMark)
	}
	return ErrorStyle.Render(CrossMark)
}
