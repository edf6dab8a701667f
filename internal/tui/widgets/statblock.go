// ABOUTME: Compact stat block widget for the management dashboard
// ABOUTME: Draws a titled box holding one value and a subtitle line

package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// StatBlockConfig holds configuration for a stat block
type StatBlockConfig struct {
	Width       int
	BorderColor lipgloss.Color
	TitleColor  lipgloss.Color
	ValueColor  lipgloss.Color
}

// DefaultStatBlockConfig returns sensible defaults
func DefaultStatBlockConfig() StatBlockConfig {
	return StatBlockConfig{
		Width:       22,
		BorderColor: lipgloss.Color("#6B7280"),
		TitleColor:  lipgloss.Color("#7C3AED"),
		ValueColor:  lipgloss.Color("#F9FAFB"),
	}
}

// StatBlock renders title, value and subtitle in a box with the title set
// into the top border
func StatBlock(title, value, subtitle string, config StatBlockConfig) string {
	if config.Width <= 0 {
		config.Width = 22
	}
	inner := config.Width - 4

	title = truncate(title, inner-1)
	value = truncate(value, inner)
	subtitle = truncate(subtitle, inner)

	titleStyle := lipgloss.NewStyle().Foreground(config.TitleColor)
	valueStyle := lipgloss.NewStyle().Foreground(config.ValueColor).Bold(true)
	subtitleStyle := lipgloss.NewStyle().Foreground(BadgeNeutralBg)
	borderStyle := lipgloss.NewStyle().Foreground(config.BorderColor)

	top := fmt.Sprintf("┌─ %s %s┐", titleStyle.Render(title),
		strings.Repeat("─", max(0, config.Width-5-lipgloss.Width(title))))
	valueLine := "│ " + valueStyle.Render(value) + strings.Repeat(" ", max(0, inner-lipgloss.Width(value))) + " │"
	subLine := "│ " + subtitleStyle.Render(subtitle) + strings.Repeat(" ", max(0, inner-lipgloss.Width(subtitle))) + " │"
	bottom := "└" + strings.Repeat("─", config.Width-2) + "┘"

	return strings.Join([]string{
		borderStyle.Render(top),
		borderStyle.Render(valueLine),
		borderStyle.Render(subLine),
		borderStyle.Render(bottom),
	}, "\n")
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
