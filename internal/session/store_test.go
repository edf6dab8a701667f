// ABOUTME: Tests for the session store and its durable storage mirror
// ABOUTME: Covers login/logout pairing, hydration and notification reset

package session

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/markalston/propdesk/internal/storage"
)

func TestLoginLogout_BothEntriesRemoved(t *testing.T) {
	kv := storage.NewMemory()
	s := Open(kv)

	s.Login("abc", Identity{"role": "owner"})
	if !s.IsAuthenticated() {
		t.Fatal("expected authenticated after login")
	}
	if s.CurrentRole() != RoleOwner {
		t.Errorf("expected role owner, got %s", s.CurrentRole())
	}

	s.Logout()
	if s.IsAuthenticated() {
		t.Error("expected unauthenticated after logout")
	}
	if kv.Has(storage.KeyToken) {
		t.Error("expected token entry removed")
	}
	if kv.Has(storage.KeyUserInfo) {
		t.Error("expected userInfo entry removed")
	}
	if !s.Identity().IsEmpty() {
		t.Errorf("expected empty identity, got %v", s.Identity())
	}
}

func TestLogout_Idempotent(t *testing.T) {
	s := Open(storage.NewMemory())
	s.Login("abc", Identity{"role": "owner"})
	s.Logout()
	s.Logout()
	if s.IsAuthenticated() {
		t.Error("expected unauthenticated")
	}
}

func TestLogin_EmptyTokenActsAsLogout(t *testing.T) {
	s := Open(storage.NewMemory())
	s.Login("abc", Identity{"role": "owner"})
	s.Login("", Identity{"role": "admin"})

	snap := s.Snapshot()
	if snap.Token != "" || !snap.Identity.IsEmpty() {
		t.Errorf("expected empty session, got %+v", snap)
	}
}

func TestLogin_EmptyIdentityActsAsLogout(t *testing.T) {
	kv := storage.NewMemory()
	s := Open(kv)
	s.Login("abc", Identity{})

	snap := s.Snapshot()
	if snap.Token != "" || !snap.Identity.IsEmpty() {
		t.Errorf("expected empty session, got %+v", snap)
	}
	if kv.Has(storage.KeyToken) || kv.Has(storage.KeyUserInfo) {
		t.Error("expected nothing persisted")
	}

	s.Login("abc", Identity{"role": "owner"})
	s.Login("def", nil)
	if s.IsAuthenticated() {
		t.Error("expected login without identity to end the session")
	}

	restored := Open(kv)
	if restored.IsAuthenticated() != s.IsAuthenticated() {
		t.Error("expected restart to reproduce the session")
	}
}

func TestLogin_ReplacesWholeIdentity(t *testing.T) {
	s := Open(storage.NewMemory())
	s.Login("a", Identity{"role": "owner", "room": "3-101"})
	s.Login("b", Identity{"role": "maintenance"})

	id := s.Identity()
	if _, ok := id["room"]; ok {
		t.Error("expected identity replaced, not merged")
	}
	if s.CurrentRole() != RoleMaintenance {
		t.Errorf("expected maintenance, got %s", s.CurrentRole())
	}
	if s.Token() != "b" {
		t.Errorf("expected token b, got %s", s.Token())
	}
}

func TestLoginLogoutSequences_PairingHolds(t *testing.T) {
	s := Open(storage.NewMemory())
	steps := []struct {
		token    string
		identity Identity
		logout   bool
		want     bool
	}{
		{token: "tok", identity: Identity{"role": "admin", "username": "root"}, want: true},
		{token: "tok", identity: Identity{"role": "owner"}, want: true},
		{logout: true, want: false},
		{token: "tok", identity: Identity{}, want: false},
		{token: "tok", identity: Identity{"role": "admin"}, want: true},
		{token: "tok", identity: nil, want: false},
		{logout: true, want: false},
		{token: "", identity: Identity{"role": "owner"}, want: false},
		{token: "tok", identity: Identity{"role": "maintenance"}, want: true},
	}
	for i, step := range steps {
		if step.logout {
			s.Logout()
		} else {
			s.Login(step.token, step.identity)
		}
		snap := s.Snapshot()
		if (snap.Token == "") != snap.Identity.IsEmpty() {
			t.Fatalf("step %d: split session %+v", i, snap)
		}
		if s.IsAuthenticated() != step.want {
			t.Fatalf("step %d: expected authenticated=%v", i, step.want)
		}
	}
}

func TestIdentity_ReturnsCopy(t *testing.T) {
	s := Open(storage.NewMemory())
	s.Login("abc", Identity{"role": "owner", "tags": []any{"a"}})

	id := s.Identity()
	id["role"] = "admin"
	id["tags"].([]any)[0] = "mutated"

	if s.CurrentRole() != RoleOwner {
		t.Error("mutating returned identity changed the store")
	}
	if s.Identity()["tags"].([]any)[0] != "a" {
		t.Error("mutating nested value changed the store")
	}
}

func TestOpen_RestoresPersistedSession(t *testing.T) {
	dir := t.TempDir()
	first := Open(storage.NewFile(dir))
	first.Login("abc", Identity{"role": "maintenance", "id": float64(7), "username": "wang"})

	second := Open(storage.NewFile(dir))
	if second.Token() != "abc" {
		t.Errorf("expected token abc, got %q", second.Token())
	}
	if second.CurrentRole() != RoleMaintenance {
		t.Errorf("expected maintenance, got %s", second.CurrentRole())
	}
	if id, ok := second.Identity().UserID(); !ok || id != 7 {
		t.Errorf("expected user id 7, got %d (%v)", id, ok)
	}
}

func TestOpen_CorruptIdentityDiscarded(t *testing.T) {
	kv := storage.NewMemory()
	kv.Set(storage.KeyToken, "abc")
	kv.Set(storage.KeyUserInfo, "{not json")

	s := Open(kv)
	if s.IsAuthenticated() {
		t.Error("expected unauthenticated with unreadable identity")
	}
	if !s.Identity().IsEmpty() {
		t.Error("expected empty identity")
	}
	if kv.Has(storage.KeyToken) || kv.Has(storage.KeyUserInfo) {
		t.Error("expected partial session purged from storage")
	}
}

func TestOpen_IdentityWithoutToken(t *testing.T) {
	kv := storage.NewMemory()
	kv.Set(storage.KeyUserInfo, `{"role":"owner"}`)

	s := Open(kv)
	if s.IsAuthenticated() || !s.Identity().IsEmpty() {
		t.Errorf("expected empty session, got %+v", s.Snapshot())
	}
	if kv.Has(storage.KeyUserInfo) {
		t.Error("expected orphan identity purged")
	}
}

func TestOpen_EmptyStorage(t *testing.T) {
	s := Open(storage.NewMemory())
	if s.IsAuthenticated() {
		t.Error("expected unauthenticated")
	}
	if s.CurrentRole() != RoleUnknown {
		t.Errorf("expected unknown role, got %s", s.CurrentRole())
	}
}

func TestLogin_PersistsIdentityJSON(t *testing.T) {
	kv := storage.NewMemory()
	s := Open(kv)
	s.Login("abc", Identity{"role": "owner", "name": "Li"})

	raw, err := kv.Get(storage.KeyUserInfo)
	if err != nil {
		t.Fatalf("expected userInfo entry: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("stored identity is not JSON: %v", err)
	}
	if decoded["name"] != "Li" {
		t.Errorf("expected name Li, got %v", decoded["name"])
	}
}

func TestLogout_ResetsSlotsAndNotifiesWatchers(t *testing.T) {
	s := Open(storage.NewMemory())
	s.Login("abc", Identity{"role": "admin"})
	notes := s.Notifications()

	var mu sync.Mutex
	var seen []*Event
	cancel, err := notes.Watch(SlotComplaintUpdate, func(ev *Event) {
		mu.Lock()
		seen = append(seen, ev)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()

	notes.Publish(SlotComplaintUpdate, &Event{Kind: "complaint_update", ReceivedAt: time.Now()})
	s.Logout()

	for slot, ev := range notes.All() {
		if ev != nil {
			t.Errorf("expected slot %s cleared", slot)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(seen))
	}
	if seen[1] != nil {
		t.Error("expected nil delivery on logout")
	}
}

func TestLogin_DoesNotResetSlots(t *testing.T) {
	s := Open(storage.NewMemory())
	s.Login("a", Identity{"role": "owner"})
	s.Notifications().Publish(SlotNewWorkOrder, &Event{Kind: "new_workorder"})

	s.Login("b", Identity{"role": "maintenance"})
	if s.Notifications().Latest(SlotNewWorkOrder) == nil {
		t.Error("expected slot kept across re-login")
	}
}

func TestPublishFor_DroppedAfterLogout(t *testing.T) {
	s := Open(storage.NewMemory())
	s.Login("abc", Identity{"role": "maintenance"})
	notes := s.Notifications()

	if ok, _ := notes.PublishFor("abc", SlotNewWorkOrder, &Event{Kind: "new_repair"}); !ok {
		t.Fatal("expected event accepted for current credential")
	}

	s.Logout()
	if ok, _ := notes.PublishFor("abc", SlotNewWorkOrder, &Event{Kind: "new_repair"}); ok {
		t.Error("expected event for logged out credential dropped")
	}
	if notes.Latest(SlotNewWorkOrder) != nil {
		t.Error("expected slot to stay null after logout")
	}

	s.Login("def", Identity{"role": "owner"})
	if ok, _ := notes.PublishFor("abc", SlotNewWorkOrder, &Event{Kind: "new_repair"}); ok {
		t.Error("expected previous session's event dropped after re-login")
	}
	if ok, _ := notes.PublishFor("def", SlotNewWorkOrder, &Event{Kind: "new_repair"}); !ok {
		t.Error("expected event for new credential accepted")
	}
}

func TestOpen_HydratedSessionOwnsSlots(t *testing.T) {
	kv := storage.NewMemory()
	Open(kv).Login("abc", Identity{"role": "owner"})

	s := Open(kv)
	if ok, _ := s.Notifications().PublishFor("abc", SlotComplaintUpdate, &Event{Kind: "complaint_update"}); !ok {
		t.Error("expected restored credential to own the slots")
	}
}
