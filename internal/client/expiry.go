// ABOUTME: Debounced session teardown after credential expiry
// ABOUTME: Collapses any number of overlapping session-expired failures into one teardown

package client

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/markalston/propdesk/internal/metrics"
	"github.com/markalston/propdesk/internal/session"
)

// LoginPath is where a teardown sends the user
const LoginPath = "/login"

// DefaultTeardownDelay leaves the expiry notice readable before teardown
const DefaultTeardownDelay = 1500 * time.Millisecond

// Timer is a scheduled callback that can be cancelled
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Tests inject a fake to control time.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Navigator performs a hard navigation that discards all view state
type Navigator interface {
	HardNavigate(path string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(path string)

func (f NavigatorFunc) HardNavigate(path string) { f(path) }

type expiryState int

const (
	stateIdle expiryState = iota
	statePendingTeardown
)

func (s expiryState) String() string {
	if s == statePendingTeardown {
		return "pending_teardown"
	}
	return "idle"
}

// Expiry is the {idle, pending_teardown} state machine shared by every call
// made through one Client
type Expiry struct {
	mu      sync.Mutex
	state   expiryState
	episode string
	timer   Timer

	delay   time.Duration
	clock   Clock
	store   *session.Store
	nav     Navigator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func newExpiry(store *session.Store, nav Navigator, clock Clock, delay time.Duration, m *metrics.Metrics, logger *slog.Logger) *Expiry {
	return &Expiry{
		delay:   delay,
		clock:   clock,
		store:   store,
		nav:     nav,
		metrics: m,
		logger:  logger,
	}
}

// Expired records a session-expired failure. It returns true only for the
// failure that opened a new episode; the caller shows the notice then.
func (e *Expiry) Expired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == statePendingTeardown {
		e.metrics.ExpiryAbsorbedTotal.Inc()
		e.logger.Debug("Session expiry absorbed by pending teardown", "episode", e.episode)
		return false
	}

	ep := uuid.NewString()
	e.state = statePendingTeardown
	e.episode = ep
	e.timer = e.clock.AfterFunc(e.delay, func() { e.fire(ep) })
	e.logger.Info("Session expired, teardown scheduled", "episode", ep, "delay", e.delay)
	return true
}

// Succeeded records a fully successful response and cancels a pending
// teardown, if any
func (e *Expiry) Succeeded() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != statePendingTeardown {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.logger.Info("Teardown cancelled by successful response", "episode", e.episode)
	e.reset()
	e.metrics.TeardownsTotal.WithLabelValues("cancelled").Inc()
}

// Pending reports whether a teardown is scheduled
func (e *Expiry) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == statePendingTeardown
}

// Flush runs a pending teardown now instead of waiting for the delay.
// Short-lived processes call it before exiting. It reports whether a
// teardown ran.
func (e *Expiry) Flush() bool {
	e.mu.Lock()
	if e.state != statePendingTeardown {
		e.mu.Unlock()
		return false
	}
	ep := e.episode
	if e.timer != nil {
		e.timer.Stop()
	}
	e.mu.Unlock()

	e.fire(ep)
	return true
}

func (e *Expiry) reset() {
	e.state = stateIdle
	e.episode = ""
	e.timer = nil
}

// fire runs when the timer for episode ep elapses. Once past the state
// check the teardown is unconditional.
func (e *Expiry) fire(ep string) {
	e.mu.Lock()
	if e.state != statePendingTeardown || e.episode != ep {
		e.mu.Unlock()
		return
	}
	e.reset()
	e.mu.Unlock()

	e.logger.Info("Tearing down expired session", "episode", ep)
	e.metrics.TeardownsTotal.WithLabelValues("fired").Inc()
	e.store.Logout()
	e.nav.HardNavigate(LoginPath)
}
