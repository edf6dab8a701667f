// ABOUTME: Process-wide session store holding the credential and identity
// ABOUTME: Mirrors every change into durable storage and owns the notification slots

package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/markalston/propdesk/internal/storage"
)

// Session is a point-in-time copy of the store contents
type Session struct {
	Token    string
	Identity Identity
}

// Store is the single writer for credential and identity. Credential and
// identity are always both set or both empty.
type Store struct {
	mu       sync.RWMutex
	token    string
	identity Identity
	changed  chan struct{}

	kv     storage.KV
	notes  *Notifications
	logger *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger overrides the logger (default slog.Default())
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNotifications attaches existing slot state instead of a fresh one
func WithNotifications(n *Notifications) Option {
	return func(s *Store) {
		if n != nil {
			s.notes = n
		}
	}
}

// Open creates a store and hydrates it from kv. A damaged or partial stored
// session is discarded rather than failing startup.
func Open(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		identity: Identity{},
		changed:  make(chan struct{}),
		kv:       kv,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notes == nil {
		s.notes = NewNotifications()
	}
	s.hydrate()
	return s
}

func (s *Store) hydrate() {
	token := s.read(storage.KeyToken)
	raw := s.read(storage.KeyUserInfo)

	identity, err := ParseIdentity(raw)
	if err != nil {
		s.logger.Warn("Stored identity is not valid JSON, ignoring it", "error", err)
	}

	if token == "" || identity.IsEmpty() {
		if token != "" || raw != "" {
			s.logger.Warn("Discarding incomplete stored session")
			s.purge()
		}
		return
	}

	s.token = token
	s.identity = identity
	s.notes.own(token)
	s.logger.Debug("Session restored", "user", identity.Username(), "role", identity.Role())
}

func (s *Store) read(key string) string {
	value, err := s.kv.Get(key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Failed to read session storage", "key", key, "error", err)
		}
		return ""
	}
	return value
}

func (s *Store) purge() {
	for _, key := range []string{storage.KeyToken, storage.KeyUserInfo} {
		if err := s.kv.Delete(key); err != nil {
			s.logger.Warn("Failed to remove session storage entry", "key", key, "error", err)
		}
	}
}

// Login replaces the whole session. An empty token or an empty identity is
// treated as Logout, since the two are only ever set together.
func (s *Store) Login(token string, identity Identity) {
	if token == "" || identity.IsEmpty() {
		if token != "" {
			s.logger.Warn("Refusing login without identity, logging out")
		}
		s.Logout()
		return
	}

	id := identity.Clone()
	encoded, err := json.Marshal(id)
	if err != nil {
		s.logger.Warn("Identity cannot be encoded, storing empty object", "error", err)
		encoded = []byte("{}")
	}

	s.mu.Lock()
	s.token = token
	s.identity = id
	s.notes.own(token)
	s.signalChange()
	if err := s.kv.Set(storage.KeyToken, token); err != nil {
		s.logger.Warn("Failed to persist token", "error", err)
	}
	if err := s.kv.Set(storage.KeyUserInfo, string(encoded)); err != nil {
		s.logger.Warn("Failed to persist identity", "error", err)
	}
	s.mu.Unlock()

	s.logger.Info("Logged in", "user", id.Username(), "role", id.Role())
}

// Logout clears credential, identity and every notification slot. Calling
// it on an empty store does nothing.
func (s *Store) Logout() {
	s.mu.Lock()
	if s.token == "" {
		s.mu.Unlock()
		return
	}
	user := s.identity.Username()
	s.token = ""
	s.identity = Identity{}
	s.purge()
	cleared := s.notes.clear()
	s.signalChange()
	s.mu.Unlock()

	// Watchers may read the store, so they run after the lock is released.
	s.notes.announce(cleared)
	s.logger.Info("Logged out", "user", user)
}

// Changed returns a channel that is closed the next time the session is
// replaced or cleared
func (s *Store) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// signalChange wakes Changed waiters. Callers hold mu.
func (s *Store) signalChange() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// IsAuthenticated reports whether a credential is held
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Token returns the raw credential, empty when logged out
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// CurrentRole returns the identity role or RoleUnknown
func (s *Store) CurrentRole() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Role()
}

// Identity returns a copy of the current identity
func (s *Store) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Clone()
}

// Snapshot returns credential and identity read under one lock
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{Token: s.token, Identity: s.identity.Clone()}
}

// Notifications returns the slot state owned by this store
func (s *Store) Notifications() *Notifications {
	return s.notes
}
