// ABOUTME: HTTP client for the property-management API
// ABOUTME: Runs every call through the outbound stage, classification and the expiry state machine

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/markalston/propdesk/internal/metrics"
	"github.com/markalston/propdesk/internal/session"
)

// DefaultPrefix is the REST base path on the API origin
const DefaultPrefix = "/api/v1"

// maxBodyBytes bounds how much of a response is read
const maxBodyBytes = 8 << 20

// Notice is a user-visible message produced by the pipeline
type Notice struct {
	Class Class
	Text  string
}

// Notifier shows notices to the user
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Call describes one API request. Path is relative to the REST prefix.
// Body is sent as JSON; json.RawMessage and []byte are sent verbatim.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Client is the API client every view shares
type Client struct {
	origin     string
	prefix     string
	httpClient *http.Client
	store      *session.Store
	expiry     *Expiry

	notifier    Notifier
	navigator   Navigator
	clock       Clock
	delay       time.Duration
	loginReject *regexp.Regexp
	metrics     *metrics.Metrics
	logger      *slog.Logger

	profiles singleflight.Group
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (10s timeout)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPrefix overrides DefaultPrefix
func WithPrefix(prefix string) Option {
	return func(c *Client) { c.prefix = "/" + strings.Trim(prefix, "/") }
}

// WithNotifier sets where notices go (default: the logger)
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithNavigator sets the hard-navigation target used by teardown
func WithNavigator(n Navigator) Option {
	return func(c *Client) { c.navigator = n }
}

// WithClock injects the clock that schedules teardown
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithTeardownDelay overrides DefaultTeardownDelay
func WithTeardownDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithLoginRejectPattern overrides DefaultLoginRejectPattern
func WithLoginRejectPattern(re *regexp.Regexp) Option {
	return func(c *Client) {
		if re != nil {
			c.loginReject = re
		}
	}
}

// WithMetrics records call outcomes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger overrides slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the API at origin (scheme://host[:port])
func New(origin string, store *session.Store, opts ...Option) *Client {
	c := &Client{
		origin:      strings.TrimRight(origin, "/"),
		prefix:      DefaultPrefix,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		store:       store,
		clock:       realClock{},
		delay:       DefaultTeardownDelay,
		loginReject: defaultLoginReject,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.Discard()
	}
	if c.notifier == nil {
		c.notifier = NotifierFunc(func(n Notice) {
			c.logger.Info("Notice", "class", n.Class, "text", n.Text)
		})
	}
	if c.navigator == nil {
		c.navigator = NavigatorFunc(func(path string) {
			c.logger.Info("Navigation requested", "path", path)
		})
	}
	c.expiry = newExpiry(store, c.navigator, c.clock, c.delay, c.metrics, c.logger)
	return c
}

// Origin returns the API origin the client talks to
func (c *Client) Origin() string {
	return c.origin
}

// Session returns the store the client reads credentials from
func (c *Client) Session() *session.Store {
	return c.store
}

// Expiry exposes the teardown state machine
func (c *Client) Expiry() *Expiry {
	return c.expiry
}

// Do sends call and returns the response body unchanged on 2xx. Any
// failure is an *Error.
func (c *Client) Do(ctx context.Context, call Call) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, call)
	if err != nil {
		return nil, err
	}

	credential := c.store.Token()
	Outbound(req, credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.handleRequestError(ctx, call, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.handleRequestError(ctx, call, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.expiry.Succeeded()
		c.metrics.RequestsTotal.WithLabelValues("ok").Inc()
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, nil
		}
		return json.RawMessage(body), nil
	}

	return nil, c.handleErrorResponse(call, resp.StatusCode, body, credential)
}

// DoJSON runs call and decodes the body into out
func (c *Client) DoJSON(ctx context.Context, call Call, out any) error {
	body, err := c.Do(ctx, call)
	if err != nil {
		return err
	}
	if out == nil || body == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("invalid response from %s %s: %w", call.Method, call.Path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, call Call) (*http.Request, error) {
	method := strings.ToUpper(call.Method)
	if method == "" {
		method = http.MethodGet
	}

	u := c.origin + c.prefix + "/" + strings.TrimLeft(call.Path, "/")
	if len(call.Query) > 0 {
		u += "?" + call.Query.Encode()
	}

	var body io.Reader
	if call.Body != nil {
		var payload []byte
		switch b := call.Body.(type) {
		case json.RawMessage:
			payload = b
		case []byte:
			payload = b
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			payload = encoded
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// handleRequestError classifies a call that got no response
func (c *Client) handleRequestError(ctx context.Context, call Call, err error) error {
	e := &Error{Class: ClassNetworkError, Cause: err}
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		e.Message = "request canceled"
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		e.Message = "request timed out"
	default:
		e.Message = fmt.Sprintf("cannot connect to %s", c.origin)
	}

	c.metrics.RequestsTotal.WithLabelValues(string(e.Class)).Inc()
	c.logger.Info("Request failed", "method", call.Method, "path", call.Path, "class", e.Class, "error", err)

	// The caller walked away; nobody is waiting to read a notice.
	if !errors.Is(ctx.Err(), context.Canceled) {
		c.notifier.Notify(Notice{Class: e.Class, Text: e.Class.Notice("")})
	}
	return e
}

// handleErrorResponse classifies a non-2xx response and applies its policy.
// credential is the token the request carried.
func (c *Client) handleErrorResponse(call Call, status int, body []byte, credential string) error {
	message := ExtractMessage(body)
	class := Classify(status, message, c.loginReject)
	e := &Error{Class: class, Status: status, Message: message}

	c.metrics.RequestsTotal.WithLabelValues(string(class)).Inc()

	if class != ClassSessionExpired {
		c.logger.Info("Request failed", "method", call.Method, "path", call.Path, "status", status, "class", class)
		c.notifier.Notify(Notice{Class: class, Text: class.Notice(message)})
		return e
	}

	if c.store.Token() != credential {
		// The session this request belonged to is already gone.
		c.metrics.ExpiryAbsorbedTotal.Inc()
		c.logger.Debug("Stale session expiry ignored", "method", call.Method, "path", call.Path)
		return e
	}
	if c.expiry.Expired() {
		c.notifier.Notify(Notice{Class: class, Text: class.Notice(message)})
	}
	return e
}
