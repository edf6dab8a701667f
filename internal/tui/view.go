// ABOUTME: Rendering for the console frame and each guarded screen
// ABOUTME: Header shows who is signed in, footer the shortcuts, toast line the latest notice

package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/markalston/propdesk/internal/client"
	"github.com/markalston/propdesk/internal/guard"
	"github.com/markalston/propdesk/internal/tui/styles"
	"github.com/markalston/propdesk/internal/tui/widgets"
)

// View renders the whole console
func (a *App) View() string {
	var content string
	if a.route.Path == guard.PathLogin {
		content = a.viewLogin()
	} else {
		content = a.viewScreen()
	}

	var sb strings.Builder
	sb.WriteString(a.renderHeader())
	sb.WriteString("\n")
	if nav := a.renderNav(); nav != "" {
		sb.WriteString(nav)
		sb.WriteString("\n")
	}
	if toast := a.renderToast(); toast != "" {
		sb.WriteString(toast)
		sb.WriteString("\n")
	}
	sb.WriteString(content)
	sb.WriteString("\n")
	sb.WriteString(a.renderFooter())
	return sb.String()
}

func (a *App) frameWidth() int {
	if a.width < minTerminalWidth {
		return minTerminalWidth
	}
	return a.width
}

// renderHeader creates the header bar with app name, screen and session
func (a *App) renderHeader() string {
	width := a.frameWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	titleStyle := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	contextStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	left := " " + titleStyle.Render("propdesk")
	if a.route.Title != "" {
		left += " " + contextStyle.Render(a.route.Title)
	}
	left += " "

	right := ""
	if a.store.IsAuthenticated() {
		id := a.store.Identity()
		right = " " + contextStyle.Render(fmt.Sprintf("%s (%s)", id.Name(), a.store.CurrentRole())) +
			" " + widgets.ConnectionIndicator(a.live) + " "
	}

	fill := max(0, width-4-lipgloss.Width(left)-lipgloss.Width(right))
	return borderStyle.Render("╭─") + left + borderStyle.Render(strings.Repeat("─", fill)) + right + borderStyle.Render("─╮")
}

// renderNav shows the routes this session may open and unseen updates
func (a *App) renderNav() string {
	if len(a.tabs) == 0 {
		return ""
	}
	var tabs []string
	for i, t := range a.tabs {
		label := fmt.Sprintf("%d %s", i+1, t.Title)
		if t.Path == a.route.Path {
			tabs = append(tabs, styles.ActiveTab.Render(label))
		} else {
			tabs = append(tabs, styles.Tab.Render(label))
		}
	}
	line := strings.Join(tabs, "")
	if badges := widgets.SlotBadges(a.badges); badges != "" {
		line += "  " + badges
	}
	return line
}

func (a *App) renderToast() string {
	if a.toast == nil {
		return ""
	}
	return styles.Notice(a.toast.Class).Render(a.toast.Text)
}

// renderFooter creates the footer with keyboard shortcuts and last update
func (a *App) renderFooter() string {
	width := a.frameWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	labelStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	statusStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	var shortcuts []string
	if a.route.Path == guard.PathLogin {
		shortcuts = []string{"Tab Next", "Enter Sign-in", "ctrl+c Quit"}
	} else {
		shortcuts = []string{"Tab Switch", "1-9 Jump", "r Refresh", "x Sign-out", "q Quit"}
	}

	var styled []string
	for _, s := range shortcuts {
		key, label, _ := strings.Cut(s, " ")
		styled = append(styled, styles.KeyStyle.Render(key)+" "+labelStyle.Render(label))
	}
	left := " " + strings.Join(styled, "  ") + " "

	right := ""
	if !a.lastUpdate.IsZero() && a.route.Path != guard.PathLogin {
		right = " " + statusStyle.Render("Updated "+formatTimeSince(a.lastUpdate)) + " "
	}

	fill := max(0, width-4-lipgloss.Width(left)-lipgloss.Width(right))
	return borderStyle.Render("╰─") + left + borderStyle.Render(strings.Repeat("─", fill)) + right + borderStyle.Render("─╯")
}

// formatTimeSince formats the time since t in human-readable form
func formatTimeSince(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < 5*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

// viewLogin renders the sign-in form
func (a *App) viewLogin() string {
	var sb strings.Builder
	sb.WriteString(styles.Title.Render("Sign in"))
	sb.WriteString("\n")

	labels := []string{"Username", "Password"}
	for i, in := range a.inputs {
		label := styles.Subtitle.Render(labels[i])
		if i == a.focus {
			label = styles.FocusedLabel.Render(labels[i])
		}
		sb.WriteString(label + "\n" + in.View() + "\n\n")
	}

	if a.signingIn {
		sb.WriteString(a.spinner.View() + " Signing in...\n")
	}
	if a.loginErr != "" {
		sb.WriteString(styles.StatusCritical.Render(a.loginErr) + "\n")
	}
	sb.WriteString(styles.Help.Render("Enter to continue, Tab to switch fields"))

	return styles.ActivePanel.Width(min(60, a.frameWidth()-4)).Render(sb.String())
}

// viewScreen renders the data screen for the current route
func (a *App) viewScreen() string {
	title := styles.Title.Render(a.route.Title)

	switch {
	case a.loadErr != nil:
		return title + "\n" + styles.StatusCritical.Render("Could not load: "+errorText(a.loadErr))
	case a.data == nil:
		if a.loading {
			return title + "\n" + a.spinner.View() + " Loading..."
		}
		return title
	}

	var body string
	switch a.route.Path {
	case guard.PathAnnouncements:
		body = viewAnnouncements(a.data.announcements)
	case guard.PathOwnerHome:
		body = viewOwnerHome(a.data)
	case guard.PathOwnerBills:
		body = viewBills(a.data.bills)
	case guard.PathOwnerRepairs, guard.PathMaintenanceOrders, guard.PathAdminRepairs:
		body = viewRepairs(a.data.repairs, a.route.Path == guard.PathAdminRepairs)
	case guard.PathDashboard:
		body = viewDashboard(a.data)
	case guard.PathAdminComplaints:
		body = viewComplaints(a.data.complaints)
	}
	if a.route.Path == guard.PathMaintenanceOrders && a.data.profile != nil {
		body = styles.Subtitle.Render("Assigned to "+a.data.profile.Name()) + "\n" + body
	}
	return title + "\n" + body
}

func errorText(err error) string {
	var e *client.Error
	if errors.As(err, &e) {
		return e.Class.Notice(e.Message)
	}
	return err.Error()
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.Muted)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Column.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func empty(what string) string {
	return styles.Subtitle.Render("No " + what + ".")
}

func short(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}

// date trims server timestamps to the day
func date(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}

func viewAnnouncements(items []client.Announcement) string {
	if len(items) == 0 {
		return empty("announcements")
	}
	var sb strings.Builder
	for _, an := range items {
		when := an.PublishedAt
		if when == "" {
			when = an.CreatedAt
		}
		sb.WriteString(styles.ValueStyle.Render(an.Title) + "  " + styles.Subtitle.Render(date(when)) + "\n")
		sb.WriteString(short(an.Content, 200) + "\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func viewOwnerHome(d *screenData) string {
	var unpaid float64
	for _, b := range d.bills {
		unpaid += b.Amount.Float()
	}
	open := 0
	for _, r := range d.repairs {
		if widgets.LevelFor(r.Status) != widgets.StatusOK {
			open++
		}
	}

	cfg := widgets.DefaultStatBlockConfig()
	blocks := lipgloss.JoinHorizontal(lipgloss.Top,
		widgets.StatBlock("Unpaid bills", strconv.Itoa(len(d.bills)), fmt.Sprintf("%.2f due", unpaid), cfg),
		" ",
		widgets.StatBlock("Open repairs", strconv.Itoa(open), fmt.Sprintf("%d total", len(d.repairs)), cfg),
	)

	name := ""
	if d.profile != nil {
		name = d.profile.Name()
		if prop, _ := d.profile["property_info"].(string); prop != "" {
			name += "  " + styles.Subtitle.Render(prop)
		}
	}
	return styles.ValueStyle.Render("Welcome, "+name) + "\n\n" + blocks
}

func viewBills(bills []client.Bill) string {
	if len(bills) == 0 {
		return empty("bills")
	}
	t := newTable("Fee", "Period", "Amount", "Due", "Status")
	for _, b := range bills {
		t.Row(b.FeeType, b.BillingPeriod, fmt.Sprintf("%.2f", b.Amount.Float()), date(b.DueDate), widgets.StatusBadge(b.Status))
	}
	return t.Render()
}

func viewRepairs(orders []client.RepairOrder, withOwner bool) string {
	if len(orders) == 0 {
		return empty("work orders")
	}
	headers := []string{"Order", "Urgency", "Status", "Description"}
	if withOwner {
		headers = append(headers, "Owner", "Worker")
	}
	t := newTable(headers...)
	for _, o := range orders {
		row := []string{o.OrderNumber, widgets.UrgencyBadge(o.UrgencyLevel), widgets.StatusBadge(o.Status), short(o.Description, 40)}
		if withOwner {
			row = append(row, o.OwnerName, o.MaintenanceWorkerName)
		}
		t.Row(row...)
	}
	return t.Render()
}

func viewDashboard(d *screenData) string {
	cfg := widgets.DefaultStatBlockConfig()
	var blocks []string
	if s := d.stats; s != nil {
		rating := "--"
		if s.AverageRating != nil {
			rating = fmt.Sprintf("%.1f", *s.AverageRating)
		}
		blocks = append(blocks,
			widgets.StatBlock("Orders", strconv.Itoa(s.TotalOrders), "all time", cfg),
			widgets.StatBlock("Pending", strconv.Itoa(s.PendingOrders), "awaiting dispatch", cfg),
			widgets.StatBlock("In progress", strconv.Itoa(s.InProgressOrders), fmt.Sprintf("%d completed", s.CompletedOrders), cfg),
			widgets.StatBlock("Rating", rating, "average", cfg),
		)
	}
	out := lipgloss.JoinHorizontal(lipgloss.Top, blocks...)

	if d.complaints != nil {
		out += "\n\n" + styles.ValueStyle.Render(fmt.Sprintf("Pending complaints: %d", d.complaints.Total))
		if len(d.complaints.Items) > 0 {
			out += "\n" + viewComplaints(d.complaints)
		}
	}
	return out
}

func viewComplaints(page *client.ComplaintPage) string {
	if page == nil || len(page.Items) == 0 {
		return empty("complaints")
	}
	t := newTable("Type", "Status", "Owner", "Complaint", "Filed")
	for _, c := range page.Items {
		t.Row(c.Type, widgets.StatusBadge(c.Status), c.OwnerName, short(c.Content, 40), date(c.CreatedAt))
	}
	return t.Render()
}
