// ABOUTME: Shared lipgloss styles for consistent console appearance
// ABOUTME: Defines the palette, frame, panel, notice and table styles

package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/markalston/propdesk/internal/client"
)

var (
	// Colors - Core palette
	Primary   = lipgloss.Color("#7C3AED") // Purple
	Secondary = lipgloss.Color("#10B981") // Green
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Danger    = lipgloss.Color("#EF4444") // Red
	Muted     = lipgloss.Color("#6B7280") // Gray
	Text      = lipgloss.Color("#F9FAFB") // Light
	Accent    = lipgloss.Color("#8B5CF6")
	Info      = lipgloss.Color("#3B82F6")

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(Muted)

	StatusOK = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	StatusWarning = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	StatusCritical = lipgloss.NewStyle().
			Foreground(Danger).
			Bold(true)

	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(1, 2)

	ActivePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	Help = lipgloss.NewStyle().
		Foreground(Muted).
		MarginTop(1)

	KeyStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)

	ValueStyle = lipgloss.NewStyle().
			Foreground(Text).
			Bold(true)

	// Table header row
	Column = lipgloss.NewStyle().
		Foreground(Muted).
		Bold(true)

	// Navigation tabs across the top of the content area
	Tab = lipgloss.NewStyle().
		Foreground(Muted).
		Padding(0, 1)

	ActiveTab = lipgloss.NewStyle().
			Foreground(Text).
			Background(Primary).
			Bold(true).
			Padding(0, 1)

	// Focused login input label
	FocusedLabel = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)
)

// Notice returns the toast style for a failure class. Session and login
// problems are warnings, server and network trouble is critical.
func Notice(class client.Class) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch class {
	case client.ClassLoginRejected, client.ClassSessionExpired, client.ClassForbidden:
		return base.Foreground(lipgloss.Color("#000000")).Background(Warning)
	case client.ClassServerError, client.ClassNetworkError:
		return base.Foreground(Text).Background(Danger)
	default:
		return base.Foreground(Text).Background(Info)
	}
}
