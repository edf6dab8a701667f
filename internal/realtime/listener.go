// ABOUTME: Websocket listener that feeds push events into notification slots
// ABOUTME: Keeps one connection per session alive with heartbeats and redials

package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/markalston/propdesk/internal/metrics"
	"github.com/markalston/propdesk/internal/session"
)

const (
	DefaultHeartbeat      = 25 * time.Second
	DefaultReconnectDelay = 3 * time.Second

	pingText = "ping"
	pongText = "pong"
)

// errSessionChanged ends a connection whose credential is no longer current
var errSessionChanged = errors.New("session changed")

// Listener consumes the realtime channel for the store's current session
type Listener struct {
	origin         string
	store          *session.Store
	dialer         *websocket.Dialer
	heartbeat      time.Duration
	reconnectDelay time.Duration
	now            func() time.Time
	onStatus       func(connected bool)
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// Option configures a Listener
type Option func(*Listener)

// WithDialer replaces websocket.DefaultDialer
func WithDialer(d *websocket.Dialer) Option {
	return func(l *Listener) {
		if d != nil {
			l.dialer = d
		}
	}
}

// WithHeartbeat sets the ping interval
func WithHeartbeat(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.heartbeat = d
		}
	}
}

// WithReconnectDelay sets the wait before redialing
func WithReconnectDelay(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.reconnectDelay = d
		}
	}
}

// WithStatusHook is called whenever the connection opens or closes
func WithStatusHook(fn func(connected bool)) Option {
	return func(l *Listener) { l.onStatus = fn }
}

// WithMetrics records dispatch outcomes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Listener) { l.metrics = m }
}

// WithLogger overrides slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) { l.logger = logger }
}

// NewListener creates a listener for the API at origin
func NewListener(origin string, store *session.Store, opts ...Option) *Listener {
	l := &Listener{
		origin:         origin,
		store:          store,
		dialer:         websocket.DefaultDialer,
		heartbeat:      DefaultHeartbeat,
		reconnectDelay: DefaultReconnectDelay,
		now:            time.Now,
		onStatus:       func(bool) {},
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.metrics == nil {
		l.metrics = metrics.Discard()
	}
	return l
}

// Dispatch routes one inbound text frame into its slot for the current
// session. Heartbeat replies are consumed. Unknown or malformed frames are
// logged and dropped.
func (l *Listener) Dispatch(raw []byte) (session.Slot, bool) {
	return l.dispatch(raw, l.store.Token())
}

// dispatch routes a frame that arrived on a connection opened with token.
// Frames for a session that has since ended are dropped.
func (l *Listener) dispatch(raw []byte, token string) (session.Slot, bool) {
	if strings.TrimSpace(string(raw)) == pongText {
		return "", false
	}

	slot, ev, err := Decode(raw, l.now())
	if err != nil {
		reason := "malformed"
		if errors.Is(err, errUnknownKind) {
			reason = "unknown_kind"
		}
		l.metrics.RealtimeDroppedTotal.WithLabelValues(reason).Inc()
		l.logger.Warn("Dropping realtime frame", "reason", reason, "error", err)
		return "", false
	}

	ok, err := l.store.Notifications().PublishFor(token, slot, ev)
	if err != nil {
		l.logger.Warn("Failed to publish realtime event", "slot", slot, "error", err)
		return "", false
	}
	if !ok {
		l.metrics.RealtimeDroppedTotal.WithLabelValues("stale_session").Inc()
		l.logger.Debug("Dropping realtime frame for ended session", "kind", ev.Kind)
		return "", false
	}
	l.metrics.RealtimeEventsTotal.WithLabelValues(string(slot)).Inc()
	l.logger.Debug("Realtime event", "kind", ev.Kind, "slot", slot)
	return slot, true
}

// Connect opens the channel for the current session. The returned token
// is the credential the connection was opened with.
func (l *Listener) Connect(ctx context.Context) (*websocket.Conn, string, error) {
	snap := l.store.Snapshot()
	if snap.Token == "" {
		return nil, "", ErrNotAuthenticated
	}
	userID, ok := snap.Identity.UserID()
	if !ok {
		return nil, "", fmt.Errorf("%w: identity has no user id", ErrUnsupportedRole)
	}
	u, err := ChannelURL(l.origin, snap.Identity.Role(), userID, snap.Token)
	if err != nil {
		return nil, "", err
	}

	conn, resp, err := l.dialer.DialContext(ctx, u, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, "", fmt.Errorf("realtime handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, "", fmt.Errorf("cannot connect realtime channel: %w", err)
	}
	return conn, snap.Token, nil
}

// Run keeps the channel open until ctx ends or the session logs out. A
// re-login reconnects with the new identity.
func (l *Listener) Run(ctx context.Context) error {
	if !l.store.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	for {
		if !l.store.IsAuthenticated() {
			l.logger.Info("Realtime listener stopped: logged out")
			return nil
		}

		conn, token, err := l.Connect(ctx)
		switch {
		case errors.Is(err, ErrUnsupportedRole):
			return err
		case errors.Is(err, ErrNotAuthenticated):
			return nil
		case err != nil:
			l.logger.Warn("Realtime connect failed", "error", err, "retry_in", l.reconnectDelay)
		default:
			l.logger.Info("Realtime channel connected", "role", l.store.CurrentRole())
			l.onStatus(true)
			err = l.serve(ctx, conn, token)
			l.onStatus(false)
			if errors.Is(err, errSessionChanged) {
				continue
			}
			l.logger.Info("Realtime channel disconnected", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.reconnectDelay):
		}
	}
}

// serve pumps one connection until it fails, ctx ends, or the session
// that opened it is gone
func (l *Listener) serve(ctx context.Context, conn *websocket.Conn, token string) error {
	changed := l.store.Changed()
	if l.store.Token() != token {
		conn.Close()
		return errSessionChanged
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		case <-changed:
			return errSessionChanged
		}
	})

	g.Go(func() error {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return err
			}
			if msgType != websocket.TextMessage {
				continue
			}
			l.dispatch(data, token)
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(l.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if l.store.Token() != token {
					return errSessionChanged
				}
				conn.SetWriteDeadline(time.Now().Add(l.heartbeat))
				if err := conn.WriteMessage(websocket.TextMessage, []byte(pingText)); err != nil {
					return err
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return conn.Close()
	})

	return g.Wait()
}
