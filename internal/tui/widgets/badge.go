// ABOUTME: Status and notification badges for quick visual indication
// ABOUTME: Maps work-order and complaint states and slot counts to colored inline badges

package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/markalston/propdesk/internal/session"
)

// StatusLevel represents the severity of a status
type StatusLevel int

const (
	StatusOK StatusLevel = iota
	StatusWarning
	StatusCritical
	StatusInfo
	StatusNeutral
)

// Badge colors
var (
	BadgeOKBg      = lipgloss.Color("#10B981")
	BadgeOKFg      = lipgloss.Color("#FFFFFF")
	BadgeWarnBg    = lipgloss.Color("#F59E0B")
	BadgeWarnFg    = lipgloss.Color("#000000")
	BadgeCritBg    = lipgloss.Color("#EF4444")
	BadgeCritFg    = lipgloss.Color("#FFFFFF")
	BadgeInfoBg    = lipgloss.Color("#3B82F6")
	BadgeInfoFg    = lipgloss.Color("#FFFFFF")
	BadgeNeutralBg = lipgloss.Color("#6B7280")
	BadgeNeutralFg = lipgloss.Color("#FFFFFF")
)

// Badge renders a colored badge
func Badge(text string, level StatusLevel) string {
	var bg, fg lipgloss.Color

	switch level {
	case StatusOK:
		bg, fg = BadgeOKBg, BadgeOKFg
	case StatusWarning:
		bg, fg = BadgeWarnBg, BadgeWarnFg
	case StatusCritical:
		bg, fg = BadgeCritBg, BadgeCritFg
	case StatusInfo:
		bg, fg = BadgeInfoBg, BadgeInfoFg
	default:
		bg, fg = BadgeNeutralBg, BadgeNeutralFg
	}

	return lipgloss.NewStyle().
		Background(bg).
		Foreground(fg).
		Padding(0, 1).
		Bold(true).
		Render(text)
}

// LevelFor maps a server-side order, bill or complaint status to a level.
// Unknown statuses are neutral.
func LevelFor(status string) StatusLevel {
	switch strings.ToLower(status) {
	case "completed", "resolved", "closed", "paid", "evaluated":
		return StatusOK
	case "pending", "unpaid", "submitted", "assigned":
		return StatusWarning
	case "overdue", "rejected", "cancelled":
		return StatusCritical
	case "in_progress", "processing", "replied":
		return StatusInfo
	default:
		return StatusNeutral
	}
}

// StatusBadge renders status with its level color
func StatusBadge(status string) string {
	if status == "" {
		return Badge("--", StatusNeutral)
	}
	return Badge(status, LevelFor(status))
}

// UrgencyBadge renders a repair urgency level
func UrgencyBadge(urgency string) string {
	switch strings.ToLower(urgency) {
	case "high", "urgent", "emergency":
		return Badge(urgency, StatusCritical)
	case "medium", "normal":
		return Badge(urgency, StatusWarning)
	case "":
		return Badge("--", StatusNeutral)
	default:
		return Badge(urgency, StatusNeutral)
	}
}

var slotLabels = map[session.Slot]string{
	session.SlotNewWorkOrder:          "new order",
	session.SlotWorkOrderStatusUpdate: "order update",
	session.SlotWorkOrderEvaluated:    "rated order",
	session.SlotWorkOrderDeleted:      "order removed",
	session.SlotComplaintUpdate:       "complaint reply",
	session.SlotNewComplaint:          "new complaint",
	session.SlotComplaintRated:        "rated complaint",
}

// SlotLabel is the short human name of a notification slot
func SlotLabel(slot session.Slot) string {
	if l, ok := slotLabels[slot]; ok {
		return l
	}
	return string(slot)
}

// SlotBadge renders an unseen-notification counter. A zero count renders
// nothing.
func SlotBadge(slot session.Slot, count int) string {
	if count <= 0 {
		return ""
	}
	return Badge(fmt.Sprintf("%s %d", SlotLabel(slot), count), StatusInfo)
}

// SlotBadges renders the non-zero counters in session.AllSlots order
func SlotBadges(counts map[session.Slot]int) string {
	var parts []string
	for _, slot := range session.AllSlots {
		if b := SlotBadge(slot, counts[slot]); b != "" {
			parts = append(parts, b)
		}
	}
	return strings.Join(parts, " ")
}

// ConnectionIndicator shows whether the realtime channel is up
func ConnectionIndicator(connected bool) string {
	if connected {
		return lipgloss.NewStyle().Foreground(BadgeOKBg).Render("● live")
	}
	return lipgloss.NewStyle().Foreground(BadgeNeutralBg).Render("○ offline")
}
