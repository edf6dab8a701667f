// ABOUTME: Role tags carried by server identities
// ABOUTME: Parses server role strings into the closed set the client understands

package session

import "strings"

// Role identifies which area of the client a session may enter
type Role string

const (
	RoleOwner       Role = "owner"
	RoleMaintenance Role = "maintenance"
	RoleAdmin       Role = "admin"
	RoleUnknown     Role = "unknown"
)

// ParseRole maps a server role string onto a Role. The server calls
// administrators "manager". Anything unrecognized is RoleUnknown.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "owner":
		return RoleOwner
	case "maintenance":
		return RoleMaintenance
	case "admin", "manager":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

// IsKnown reports whether r is one of the recognized roles
func (r Role) IsKnown() bool {
	switch r {
	case RoleOwner, RoleMaintenance, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	if r == "" {
		return string(RoleUnknown)
	}
	return string(r)
}
