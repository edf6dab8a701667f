// ABOUTME: Server-supplied user profile kept alongside the credential
// ABOUTME: Stored as an opaque JSON object so unknown server fields survive round trips

package session

import (
	"encoding/json"
	"strconv"
)

// Identity is the user object returned by the login endpoint. It is always
// replaced as a whole and never merged.
type Identity map[string]any

// ParseIdentity decodes a stored identity. Anything that is not a JSON
// object yields an empty identity and the decode error.
func ParseIdentity(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, nil
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return Identity{}, err
	}
	if id == nil {
		return Identity{}, nil
	}
	return id, nil
}

// IsEmpty reports whether the identity has no fields
func (id Identity) IsEmpty() bool {
	return len(id) == 0
}

// Role returns the parsed role field, or RoleUnknown when absent
func (id Identity) Role() Role {
	s, _ := id["role"].(string)
	return ParseRole(s)
}

// Name returns the display name, falling back to the username
func (id Identity) Name() string {
	if name, _ := id["name"].(string); name != "" {
		return name
	}
	return id.Username()
}

// Username returns the login name
func (id Identity) Username() string {
	s, _ := id["username"].(string)
	return s
}

// UserID returns the numeric user id the realtime channel is addressed by
func (id Identity) UserID() (int64, bool) {
	switch v := id["id"].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Clone returns a deep copy so callers can never mutate stored state
func (id Identity) Clone() Identity {
	if id == nil {
		return Identity{}
	}
	out := make(Identity, len(id))
	for k, v := range id {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case Identity:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}
