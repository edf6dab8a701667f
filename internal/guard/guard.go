// ABOUTME: Navigation guard deciding allow, redirect or forced logout
// ABOUTME: Decide is pure; Guard applies its decisions to the session store

package guard

import (
	"log/slog"

	"github.com/markalston/propdesk/internal/session"
)

// View is the part of the session a navigation decision depends on
type View struct {
	Authenticated bool
	Role          session.Role
}

// ViewOf snapshots the store for Decide
func ViewOf(s *session.Store) View {
	return View{Authenticated: s.IsAuthenticated(), Role: s.CurrentRole()}
}

// Decision is the guard's outcome. When Allow is false, Redirect names
// where to go instead. ForceLogout asks the caller to end the session
// before redirecting.
type Decision struct {
	Allow       bool
	Redirect    string
	ForceLogout bool
	Reason      string
}

func allow() Decision {
	return Decision{Allow: true}
}

func redirect(path, reason string) Decision {
	return Decision{Redirect: path, Reason: reason}
}

// Decide evaluates route against the session view. It fails closed: a
// role-tagged route is never allowed for a different role.
func Decide(route Route, view View) Decision {
	if !route.RequiresAuth {
		return allow()
	}
	if !view.Authenticated {
		return redirect(PathLogin, "not authenticated")
	}
	if route.Path == PathLogin {
		return allow()
	}
	if route.Role != "" && route.Role != view.Role {
		if home := Home(view.Role); home != "" {
			return redirect(home, "role "+view.Role.String()+" cannot open "+route.Path)
		}
		d := redirect(PathLogin, "unrecognized role")
		d.ForceLogout = true
		return d
	}
	return allow()
}

// maxHops bounds redirect chains in Resolve
const maxHops = 4

// Guard applies Decide to the live session
type Guard struct {
	store  *session.Store
	routes []Route
	logger *slog.Logger
}

// New creates a guard over the default route table
func New(store *session.Store, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{store: store, routes: Routes, logger: logger}
}

// Route returns the table entry for path
func (g *Guard) Route(path string) Route {
	return Lookup(g.routes, path)
}

// Before runs before every navigation to path. A forced logout is applied
// here so callers only need to follow the redirect.
func (g *Guard) Before(path string) Decision {
	d := Decide(g.Route(path), ViewOf(g.store))
	if d.Allow {
		return d
	}
	if d.ForceLogout {
		g.logger.Warn("Forcing logout on navigation", "path", path, "role", g.store.CurrentRole())
		g.store.Logout()
	} else {
		g.logger.Debug("Navigation redirected", "path", path, "to", d.Redirect, "reason", d.Reason)
	}
	return d
}

// Resolve follows redirects from path and returns the route the user
// actually lands on
func (g *Guard) Resolve(path string) Route {
	for range maxHops {
		d := g.Before(path)
		if d.Allow {
			return g.Route(path)
		}
		path = d.Redirect
	}
	return g.Route(PathLogin)
}

// Landing is where a session starts: its role home, or login
func (g *Guard) Landing() string {
	if !g.store.IsAuthenticated() {
		return PathLogin
	}
	if home := Home(g.store.CurrentRole()); home != "" {
		return home
	}
	return PathAnnouncements
}
