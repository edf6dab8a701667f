// ABOUTME: Realtime channel addressing and push-frame decoding
// ABOUTME: Maps server event kinds onto the fixed set of notification slots

package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/markalston/propdesk/internal/session"
)

var (
	// ErrNotAuthenticated means there is no session to open a channel for
	ErrNotAuthenticated = errors.New("realtime: not authenticated")
	// ErrUnsupportedRole means the session cannot be addressed on the channel
	ErrUnsupportedRole = errors.New("realtime: role has no channel")
)

// wireRoles is how each role is addressed in the channel path
var wireRoles = map[session.Role]string{
	session.RoleOwner:       "owner",
	session.RoleMaintenance: "maintenance",
	session.RoleAdmin:       "manager",
}

// ChannelURL derives the websocket address from the API origin: http
// becomes ws, https becomes wss, and the path is /ws/{role}/{user id}.
func ChannelURL(apiURL string, role session.Role, userID int64, token string) (string, error) {
	wireRole, ok := wireRoles[role]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedRole, role)
	}

	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("invalid API URL %q: %w", apiURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported API URL scheme %q", u.Scheme)
	}

	u.Path = "/ws/" + wireRole + "/" + strconv.FormatInt(userID, 10)
	u.RawPath = ""
	u.RawQuery = url.Values{"token": {token}}.Encode()
	u.Fragment = ""
	return u.String(), nil
}

var slotsByKind = map[string]session.Slot{
	"new_workorder":        session.SlotNewWorkOrder,
	"new_repair":           session.SlotNewWorkOrder,
	"workorder_update":     session.SlotWorkOrderStatusUpdate,
	"repair_status_update": session.SlotWorkOrderStatusUpdate,
	"repair_evaluated":     session.SlotWorkOrderEvaluated,
	"workorder_deleted":    session.SlotWorkOrderDeleted,
	"complaint_update":     session.SlotComplaintUpdate,
	"new_complaint":        session.SlotNewComplaint,
	"complaint_rated":      session.SlotComplaintRated,
}

// SlotFor returns the slot an event kind writes to
func SlotFor(kind string) (session.Slot, bool) {
	slot, ok := slotsByKind[kind]
	return slot, ok
}

// frame accepts both the server's type/data spelling and kind/payload
type frame struct {
	Type       string          `json:"type"`
	Kind       string          `json:"kind"`
	Data       json.RawMessage `json:"data"`
	Payload    json.RawMessage `json:"payload"`
	UpdateType string          `json:"update_type"`
	OrderID    json.Number     `json:"order_id"`
}

var errUnknownKind = errors.New("unknown event kind")

// Decode parses one text frame into the slot it targets and its event
func Decode(raw []byte, now time.Time) (session.Slot, *session.Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", nil, fmt.Errorf("malformed frame: %w", err)
	}

	kind := f.Kind
	if kind == "" {
		kind = f.Type
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return "", nil, fmt.Errorf("malformed frame: no kind")
	}

	slot, ok := SlotFor(kind)
	if !ok {
		return "", nil, fmt.Errorf("%w %q", errUnknownKind, kind)
	}

	payload := f.Payload
	if len(payload) == 0 {
		payload = f.Data
	}
	ev := &session.Event{
		Kind:       kind,
		UpdateType: f.UpdateType,
		Payload:    payload,
		ReceivedAt: now,
	}
	if f.OrderID != "" {
		if id, err := f.OrderID.Int64(); err == nil {
			ev.OrderID = id
		}
	}
	return slot, ev, nil
}
