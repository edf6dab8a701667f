// ABOUTME: Per-route data loading for the console screens
// ABOUTME: Fetches each screen's endpoints in parallel and lists which updates refresh it

package tui

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/markalston/propdesk/internal/client"
	"github.com/markalston/propdesk/internal/guard"
	"github.com/markalston/propdesk/internal/session"
)

const listLimit = 50

// screenData holds whatever the current screen fetched. Only the fields
// its route needs are set.
type screenData struct {
	profile       session.Identity
	announcements []client.Announcement
	bills         []client.Bill
	repairs       []client.RepairOrder
	complaints    *client.ComplaintPage
	stats         *client.RepairStatistics
}

// refreshSlots lists, per route, the notification slots that make the
// visible list stale. Updates to other slots become badges.
var refreshSlots = map[string][]session.Slot{
	guard.PathOwnerHome: {
		session.SlotWorkOrderStatusUpdate,
		session.SlotComplaintUpdate,
	},
	guard.PathOwnerRepairs: {
		session.SlotWorkOrderStatusUpdate,
		session.SlotWorkOrderDeleted,
	},
	guard.PathMaintenanceOrders: {
		session.SlotNewWorkOrder,
		session.SlotWorkOrderStatusUpdate,
		session.SlotWorkOrderDeleted,
	},
	guard.PathDashboard: {
		session.SlotNewWorkOrder,
		session.SlotWorkOrderEvaluated,
		session.SlotNewComplaint,
		session.SlotComplaintRated,
	},
	guard.PathAdminRepairs: {
		session.SlotNewWorkOrder,
		session.SlotWorkOrderStatusUpdate,
		session.SlotWorkOrderEvaluated,
		session.SlotWorkOrderDeleted,
	},
	guard.PathAdminComplaints: {
		session.SlotNewComplaint,
		session.SlotComplaintUpdate,
		session.SlotComplaintRated,
	},
}

// fetch loads every endpoint the screen at path shows. The calls run
// concurrently; the first failure cancels the rest.
func fetch(ctx context.Context, c *client.Client, path string, role session.Role) (*screenData, error) {
	var d screenData
	g, ctx := errgroup.WithContext(ctx)
	page := client.ListOptions{Limit: listLimit}

	switch path {
	case guard.PathAnnouncements:
		g.Go(func() (err error) {
			d.announcements, err = c.Announcements(ctx, page)
			return err
		})

	case guard.PathOwnerHome:
		g.Go(func() (err error) {
			d.profile, err = c.Profile(ctx, role)
			return err
		})
		g.Go(func() (err error) {
			d.bills, err = c.OwnerBills(ctx, client.ListOptions{Status: "unpaid", Limit: listLimit})
			return err
		})
		g.Go(func() (err error) {
			d.repairs, err = c.OwnerRepairs(ctx, page)
			return err
		})

	case guard.PathOwnerBills:
		g.Go(func() (err error) {
			d.bills, err = c.OwnerBills(ctx, page)
			return err
		})

	case guard.PathOwnerRepairs:
		g.Go(func() (err error) {
			d.repairs, err = c.OwnerRepairs(ctx, page)
			return err
		})

	case guard.PathMaintenanceOrders:
		g.Go(func() (err error) {
			d.profile, err = c.Profile(ctx, role)
			return err
		})
		g.Go(func() (err error) {
			d.repairs, err = c.MaintenanceOrders(ctx, page)
			return err
		})

	case guard.PathDashboard:
		g.Go(func() (err error) {
			d.stats, err = c.RepairStatistics(ctx)
			return err
		})
		g.Go(func() (err error) {
			d.complaints, err = c.ManagerComplaints(ctx, client.ListOptions{Status: "pending", Limit: 5})
			return err
		})

	case guard.PathAdminRepairs:
		g.Go(func() (err error) {
			d.repairs, err = c.ManagerRepairs(ctx, page)
			return err
		})

	case guard.PathAdminComplaints:
		g.Go(func() (err error) {
			d.complaints, err = c.ManagerComplaints(ctx, page)
			return err
		})

	default:
		return nil, fmt.Errorf("no screen for %s", path)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}
