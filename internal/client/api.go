// ABOUTME: Typed wrappers over Do for the endpoints the console and CLI use
// ABOUTME: Each is a thin parameterized call; business rules stay on the server

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/markalston/propdesk/internal/session"
)

// Decimal is a money amount. The server sends decimals as strings, older
// builds as numbers; both decode to the same text.
type Decimal string

func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = Decimal(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decimal: %w", err)
	}
	*d = Decimal(n.String())
	return nil
}

// Float returns the amount as a float64, 0 when empty or invalid
func (d Decimal) Float() float64 {
	f, _ := strconv.ParseFloat(string(d), 64)
	return f
}

// Announcement is a published notice from property management
type Announcement struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	PublishedAt string `json:"published_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// Bill is one fee owed by an owner
type Bill struct {
	ID            int64   `json:"id"`
	FeeType       string  `json:"fee_type"`
	Amount        Decimal `json:"amount"`
	BillingPeriod string  `json:"billing_period"`
	DueDate       string  `json:"due_date"`
	Status        string  `json:"status"`
	PaidAt        string  `json:"paid_at,omitempty"`
	PropertyInfo  string  `json:"property_info,omitempty"`
}

// RepairOrder is a work order as seen by any role
type RepairOrder struct {
	ID                    int64  `json:"id"`
	OrderNumber           string `json:"order_number"`
	Description           string `json:"description"`
	UrgencyLevel          string `json:"urgency_level"`
	Status                string `json:"status"`
	OwnerName             string `json:"owner_name,omitempty"`
	PropertyInfo          string `json:"property_info,omitempty"`
	MaintenanceWorkerName string `json:"maintenance_worker_name,omitempty"`
	Rating                *int   `json:"rating,omitempty"`
	CreatedAt             string `json:"created_at"`
}

// Complaint is an owner complaint handled by management
type Complaint struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	Status    string `json:"status"`
	Reply     string `json:"reply,omitempty"`
	Rating    *int   `json:"rating,omitempty"`
	OwnerName string `json:"owner_name"`
	CreatedAt string `json:"created_at"`
}

// ComplaintPage is the paginated complaint list
type ComplaintPage struct {
	Items []Complaint `json:"items"`
	Total int         `json:"total"`
}

// RepairStatistics summarizes work orders for the dashboard
type RepairStatistics struct {
	TotalOrders      int      `json:"total_orders"`
	PendingOrders    int      `json:"pending_orders"`
	InProgressOrders int      `json:"in_progress_orders"`
	CompletedOrders  int      `json:"completed_orders"`
	AverageRating    *float64 `json:"average_rating"`
}

// ListOptions are the paging and status filters shared by list endpoints
type ListOptions struct {
	Status string
	Skip   int
	Limit  int
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.Status != "" {
		q.Set("status", o.Status)
	}
	if o.Skip > 0 {
		q.Set("skip", strconv.Itoa(o.Skip))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	return q
}

func get(path string, q url.Values) Call {
	return Call{Method: http.MethodGet, Path: path, Query: q}
}

// Announcements lists published announcements (any signed-in role)
func (c *Client) Announcements(ctx context.Context, opts ListOptions) ([]Announcement, error) {
	var out []Announcement
	err := c.DoJSON(ctx, get("/common/announcements", opts.values()), &out)
	return out, err
}

// Profile fetches the signed-in user's profile from the endpoint for role.
// Concurrent calls for the same role share one request.
func (c *Client) Profile(ctx context.Context, role session.Role) (session.Identity, error) {
	var path string
	switch role {
	case session.RoleOwner:
		path = "/owner/profile"
	case session.RoleMaintenance:
		path = "/maintenance/profile"
	default:
		return nil, fmt.Errorf("no profile endpoint for role %s", role)
	}

	v, err, _ := c.profiles.Do(string(role), func() (any, error) {
		var id session.Identity
		if err := c.DoJSON(ctx, get(path, nil), &id); err != nil {
			return nil, err
		}
		return id, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(session.Identity).Clone(), nil
}

// OwnerBills lists the owner's bills
func (c *Client) OwnerBills(ctx context.Context, opts ListOptions) ([]Bill, error) {
	var out []Bill
	err := c.DoJSON(ctx, get("/owner/bills", opts.values()), &out)
	return out, err
}

// OwnerRepairs lists the owner's repair requests
func (c *Client) OwnerRepairs(ctx context.Context, opts ListOptions) ([]RepairOrder, error) {
	var out []RepairOrder
	err := c.DoJSON(ctx, get("/owner/repairs", opts.values()), &out)
	return out, err
}

// MaintenanceOrders lists orders assigned to the maintenance worker
func (c *Client) MaintenanceOrders(ctx context.Context, opts ListOptions) ([]RepairOrder, error) {
	var out []RepairOrder
	err := c.DoJSON(ctx, get("/maintenance/orders", opts.values()), &out)
	return out, err
}

// ManagerRepairs lists every repair order
func (c *Client) ManagerRepairs(ctx context.Context, opts ListOptions) ([]RepairOrder, error) {
	var out []RepairOrder
	err := c.DoJSON(ctx, get("/manager/repairs", opts.values()), &out)
	return out, err
}

// ManagerComplaints lists complaints for management
func (c *Client) ManagerComplaints(ctx context.Context, opts ListOptions) (*ComplaintPage, error) {
	var out ComplaintPage
	if err := c.DoJSON(ctx, get("/manager/complaints", opts.values()), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RepairStatistics fetches the work-order summary
func (c *Client) RepairStatistics(ctx context.Context) (*RepairStatistics, error) {
	var out RepairStatistics
	if err := c.DoJSON(ctx, get("/manager/statistics/repairs", nil), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
