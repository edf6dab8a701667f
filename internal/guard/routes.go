// ABOUTME: Console route table with authentication and role requirements
// ABOUTME: Each role has a home area that lateral redirects land on

package guard

import "github.com/markalston/propdesk/internal/session"

const (
	PathLogin             = "/login"
	PathAnnouncements     = "/announcements"
	PathOwnerHome         = "/home"
	PathOwnerBills        = "/bills"
	PathOwnerRepairs      = "/repairs"
	PathMaintenanceOrders = "/maintenance/orders"
	PathDashboard         = "/dashboard"
	PathAdminRepairs      = "/admin/repairs"
	PathAdminComplaints   = "/admin/complaints"
)

// Route is a navigation target and its access metadata. An empty Role
// means any authenticated session may enter.
type Route struct {
	Path         string
	Title        string
	RequiresAuth bool
	Role         session.Role
}

// Routes is the console route table
var Routes = []Route{
	{Path: PathLogin, Title: "Sign in"},
	{Path: PathAnnouncements, Title: "Announcements", RequiresAuth: true},
	{Path: PathOwnerHome, Title: "Home", RequiresAuth: true, Role: session.RoleOwner},
	{Path: PathOwnerBills, Title: "My bills", RequiresAuth: true, Role: session.RoleOwner},
	{Path: PathOwnerRepairs, Title: "My repairs", RequiresAuth: true, Role: session.RoleOwner},
	{Path: PathMaintenanceOrders, Title: "Work orders", RequiresAuth: true, Role: session.RoleMaintenance},
	{Path: PathDashboard, Title: "Dashboard", RequiresAuth: true, Role: session.RoleAdmin},
	{Path: PathAdminRepairs, Title: "Repairs", RequiresAuth: true, Role: session.RoleAdmin},
	{Path: PathAdminComplaints, Title: "Complaints", RequiresAuth: true, Role: session.RoleAdmin},
}

var homes = map[session.Role]string{
	session.RoleOwner:       PathOwnerHome,
	session.RoleMaintenance: PathMaintenanceOrders,
	session.RoleAdmin:       PathDashboard,
}

// Home returns the home area of role, or "" for unknown roles
func Home(role session.Role) string {
	return homes[role]
}

// Lookup finds path in table. Unlisted paths require authentication and
// no particular role.
func Lookup(table []Route, path string) Route {
	for _, r := range table {
		if r.Path == path {
			return r
		}
	}
	return Route{Path: path, RequiresAuth: true}
}

// ForRole lists the routes a session with role may open, in table order
func ForRole(table []Route, role session.Role) []Route {
	var out []Route
	for _, r := range table {
		if !r.RequiresAuth {
			continue
		}
		if r.Role == "" || r.Role == role {
			out = append(out, r)
		}
	}
	return out
}
