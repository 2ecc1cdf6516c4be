package report

import "github.com/charmbracelet/lipgloss"

// Colors used in reports.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarning   = lipgloss.Color("214") // Orange
	colorError     = lipgloss.Color("196") // Red
)

// Header style for section titles.
var Header = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	MarginTop(1)

// Badge style for channel and status badges.
var Badge = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Background(lipgloss.Color("236")).
	Padding(0, 1).
	MarginRight(1)

// Label style for field names.
var Label = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Width(22)

// Muted style for ids and secondary text.
var Muted = lipgloss.NewStyle().
	Foreground(colorMuted)

// Good marks passing gates and healthy sources.
var Good = lipgloss.NewStyle().
	Foreground(colorSuccess)

// Caution marks degraded states.
var Caution = lipgloss.NewStyle().
	Foreground(colorWarning)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(colorError).
	Bold(true)

// Card frames a brief.
var Card = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(0, 1)

// statusStyle picks a style for a lifecycle status.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "approved", "generated", "ok":
		return Good
	case "rejected", "archived", "failing":
		return ErrorStyle
	case "superseded", "shortlisted", "degraded":
		return Caution
	default:
		return Badge
	}
}
