// ABOUTME: Tests for the request pipeline and expiry debounce
// ABOUTME: Uses httptest to mock API responses and a fake clock for teardown timing

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/markalston/propdesk/internal/metrics"
	"github.com/markalston/propdesk/internal/session"
	"github.com/markalston/propdesk/internal/storage"
)

type fakeTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
	delays []time.Duration
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{f: f}
	c.timers = append(c.timers, t)
	c.delays = append(c.delays, d)
	return t
}

// fireAll runs every timer that has not been stopped
func (c *fakeClock) fireAll() {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) scheduled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

type recorder struct {
	mu       sync.Mutex
	notices  []Notice
	navigate []string
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) HardNavigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigate = append(r.navigate, path)
}

func (r *recorder) noticeCount(class Class) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, notice := range r.notices {
		if notice.Class == class {
			n++
		}
	}
	return n
}

type harness struct {
	client  *Client
	store   *session.Store
	kv      *storage.Memory
	clock   *fakeClock
	rec     *recorder
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, serverURL string) *harness {
	t.Helper()
	kv := storage.NewMemory()
	store := session.Open(kv)
	store.Login("tok-1", session.Identity{"role": "owner", "username": "li"})

	h := &harness{
		store:   store,
		kv:      kv,
		clock:   &fakeClock{},
		rec:     &recorder{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	h.client = New(serverURL, store,
		WithClock(h.clock),
		WithNotifier(h.rec),
		WithNavigator(h.rec),
		WithMetrics(h.metrics),
		WithTeardownDelay(1500*time.Millisecond),
	)
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status  int
		message string
		want    Class
	}{
		{401, "用户名或密码错误", ClassLoginRejected},
		{401, "Incorrect username or password", ClassLoginRejected},
		{401, "Invalid credentials", ClassLoginRejected},
		{401, "token expired", ClassSessionExpired},
		{401, "", ClassSessionExpired},
		{403, "nope", ClassForbidden},
		{404, "", ClassNotFound},
		{500, "boom", ClassServerError},
		{503, "", ClassServerError},
		{400, "bad input", ClassClientError},
		{422, "", ClassClientError},
		{0, "", ClassNetworkError},
	}
	for _, tt := range tests {
		if got := Classify(tt.status, tt.message, nil); got != tt.want {
			t.Errorf("Classify(%d, %q) = %s, want %s", tt.status, tt.message, got, tt.want)
		}
	}
}

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":"token expired"}`, "token expired"},
		{`{"message":"from message"}`, "from message"},
		{`{"error":"from error"}`, "from error"},
		{`{"detail":"d","message":"m"}`, "d"},
		{`{"detail":[{"loc":["body","username"],"msg":"field required"}]}`, "field required"},
		{`<html>bad gateway</html>`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		if got := ExtractMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("ExtractMessage(%s) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestOutbound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	Outbound(req, "abc")
	if got := req.Header.Get("Authorization"); got != "Bearer abc" {
		t.Errorf("expected bearer header, got %q", got)
	}
	if req.Header.Get(RequestIDHeader) == "" {
		t.Error("expected request id")
	}

	anon := httptest.NewRequest(http.MethodGet, "/x", nil)
	Outbound(anon, "")
	if got := anon.Header.Get("Authorization"); got != "" {
		t.Errorf("expected no auth header, got %q", got)
	}
}

func TestDo_SuccessReturnsBodyUnchanged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/owner/bills" {
			t.Errorf("expected path /api/v1/owner/bills, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("status") != "unpaid" {
			t.Errorf("expected status=unpaid, got %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			t.Errorf("expected bearer tok-1, got %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`[{"id":1,"amount":"12.50"}]`))
	}))
	defer server.Close()

	h := newHarness(t, server.URL)
	body, err := h.client.Do(context.Background(), Call{
		Method: http.MethodGet,
		Path:   "/owner/bills",
		Query:  url.Values{"status": {"unpaid"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `[{"id":1,"amount":"12.50"}]` {
		t.Errorf("unexpected body %s", body)
	}
	if got := testutil.ToFloat64(h.metrics.RequestsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("expected 1 ok request, got %v", got)
	}
}

func TestDo_SendsJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		var got map[string]any
		json.NewDecoder(r.Body).Decode(&got)
		if got["rating"] != float64(5) {
			t.Errorf("expected rating 5, got %v", got["rating"])
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	}))
	defer server.Close()

	h := newHarness(t, server.URL)
	_, err := h.client.Do(context.Background(), Call{
		Method: http.MethodPost,
		Path:   "owner/repairs/3/evaluate",
		Body:   map[string]any{"rating": 5, "comment": "fast"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDo_ParallelExpiryTearsDownOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
	}))
	defer server.Close()

	h := newHarness(t, server.URL)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range 4 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.client.Do(context.Background(), Call{Method: http.MethodGet, Path: "/owner/repairs"})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !IsClass(err, ClassSessionExpired) {
			t.Errorf("call %d: expected session expired, got %v", i, err)
		}
	}
	if got := h.rec.noticeCount(ClassSessionExpired); got != 1 {
		t.Errorf("expected 1 expiry notice, got %d", got)
	}
	if got := h.clock.scheduled(); got != 1 {
		t.Fatalf("expected 1 scheduled teardown, got %d", got)
	}
	if h.clock.delays[0] != 1500*time.Millisecond {
		t.Errorf("expected 1.5s delay, got %v", h.clock.delays[0])
	}
	if !h.store.IsAuthenticated() {
		t.Error("expected session intact until the timer fires")
	}

	h.clock.fireAll()

	if h.store.IsAuthenticated() {
		t.Error("expected logged out after teardown")
	}
	if len(h.rec.navigate) != 1 || h.rec.navigate[0] != LoginPath {
		t.Errorf("expected one navigation to %s, got %v", LoginPath, h.rec.navigate)
	}
	if h.kv.Has(storage.KeyToken) {
		t.Error("expected token removed from storage")
	}
	if got := testutil.ToFloat64(h.metrics.TeardownsTotal.WithLabelValues("fired")); got != 1 {
		t.Errorf("expected 1 fired teardown, got %v", got)
	}
	if got := testutil.ToFloat64(h.metrics.ExpiryAbsorbedTotal); got != 3 {
		t.Errorf("expected 3 absorbed expiries, got %v", got)
	}
}

func TestDo_SuccessCancelsPendingTeardown(t *testing.T) {
	var expired atomic.Bool
	expired.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if expired.Load() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, []any{})
	}))
	defer server.Close()

	h := newHarness(t, server.URL)
	ctx := context.Background()

	h.client.Do(ctx, Call{Method: http.MethodGet, Path: "/owner/bills"})
	if !h.client.Expiry().Pending() {
		t.Fatal("expected pending teardown")
	}

	expired.Store(false)
	if _, err := h.client.Do(ctx, Call{Method: http.MethodGet, Path: "/owner/bills"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.client.Expiry().Pending() {
		t.Error("expected teardown cancelled")
	}

	h.clock.fireAll()
	if !h.store.IsAuthenticated() {
		t.Error("expected session to survive a cancelled teardown")
	}
	if len(h.rec.navigate) != 0 {
		t.Errorf("expected no navigation, got %v", h.rec.navigate)
	}
	if got := testutil.ToFloat64(h.metrics.TeardownsTotal.WithLabelValues("cancelled")); got != 1 {
		t.Errorf("expected 1 cancelled teardown, got %v", got)
	}
}

func TestDo_NewEpisodeAfterTeardown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
	}))
	defer server.Close()

	h := newHarness(t, server.URL)
	ctx := context.Background()

	h.client.Do(ctx, Call{Path: "/owner/bills"})
	h.clock.fireAll()

	h.store.Login("tok-2", session.Identity{"role": "owner"})
	h.client.Do(ctx, Call{Path: "/owner/bills"})

	if got := h.rec.noticeCount(ClassSessionExpired); got != 2 {
		t.Errorf("expected a notice per episode, got %d", got)
	}
	if got := h.clock.scheduled(); got != 2 {
		t.Errorf("expected 2 scheduled teardowns, got %d", got)
	}
}

func TestDo_StaleExpiryAbsorbed(t *testing.T) {
	var h *harness
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The user switches accounts while this request is in flight.
		h.store.Login("tok-new", session.Identity{"role": "admin"})
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
	}))
	defer server.Close()

	h = newHarness(t, server.URL)
	_, err := h.client.Do(context.Background(), Call{Path: "/owner/bills"})

	if !IsClass(err, ClassSessionExpired) {
		t.Errorf("expected session expired error, got %v", err)
	}
	if h.clock.scheduled() != 0 {
		t.Error("expected no teardown for a stale credential")
	}
	if h.rec.noticeCount(ClassSessionExpired) != 0 {
		t.Error("expected no notice for a stale credential")
	}
	if h.store.Token() != "tok-new" {
		t.Errorf("expected new session kept, got %q", h.store.Token())
	}
}

func TestDo_LoginRejectedLeavesSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "用户名或密码错误"})
	}))
	defer server.Close()

	h := newHarness(t, server.URL)
	_, err := h.client.Do(context.Background(), Call{Method: http.MethodPost, Path: "/auth/login"})

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Class != ClassLoginRejected || apiErr.Message != "用户名或密码错误" {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if h.clock.scheduled() != 0 {
		t.Error("expected no teardown on login rejection")
	}
	if !h.store.IsAuthenticated() {
		t.Error("expected session untouched")
	}
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	if len(h.rec.notices) != 1 || h.rec.notices[0].Text != "用户名或密码错误" {
		t.Errorf("expected server message as notice, got %+v", h.rec.notices)
	}
}

func TestDo_LocalFailuresNotify(t *testing.T) {
	tests := []struct {
		status int
		body   map[string]string
		class  Class
		text   string
	}{
		{http.StatusForbidden, map[string]string{"detail": "no"}, ClassForbidden, ClassForbidden.Notice("")},
		{http.StatusNotFound, nil, ClassNotFound, ClassNotFound.Notice("")},
		{http.StatusInternalServerError, map[string]string{"detail": "db down"}, ClassServerError, ClassServerError.Notice("")},
		{http.StatusBadRequest, map[string]string{"detail": "Bill already paid"}, ClassClientError, "Bill already paid"},
		{http.StatusConflict, nil, ClassClientError, "Request failed"},
	}
	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))
			defer server.Close()

			h := newHarness(t, server.URL)
			_, err := h.client.Do(context.Background(), Call{Path: "/anything"})

			if !IsClass(err, tt.class) {
				t.Errorf("expected %s, got %v", tt.class, err)
			}
			if !h.store.IsAuthenticated() {
				t.Error("expected session untouched")
			}
			if len(h.rec.notices) != 1 || h.rec.notices[0].Text != tt.text {
				t.Errorf("expected notice %q, got %+v", tt.text, h.rec.notices)
			}
		})
	}
}

func TestDo_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	h := newHarness(t, serverURL)
	_, err := h.client.Do(context.Background(), Call{Path: "/owner/bills"})

	if !IsClass(err, ClassNetworkError) {
		t.Errorf("expected network error, got %v", err)
	}
	if h.rec.noticeCount(ClassNetworkError) != 1 {
		t.Error("expected network notice")
	}
}

func TestDo_CanceledContextIsQuiet(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	h := newHarness(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := h.client.Do(ctx, Call{Path: "/owner/bills"})

	if !IsClass(err, ClassNetworkError) {
		t.Errorf("expected network error, got %v", err)
	}
	if !strings.Contains(err.Error(), "request canceled") {
		t.Errorf("expected canceled message, got %v", err)
	}
	if len(h.rec.notices) != 0 {
		t.Errorf("expected no notice, got %+v", h.rec.notices)
	}
}

func TestError_IsMatchesClass(t *testing.T) {
	err := error(&Error{Class: ClassForbidden, Status: 403})
	if !errors.Is(err, &Error{Class: ClassForbidden}) {
		t.Error("expected errors.Is to match by class")
	}
	if errors.Is(err, &Error{Class: ClassNotFound}) {
		t.Error("expected class mismatch")
	}
	if _, ok := ClassOf(errors.New("plain")); ok {
		t.Error("expected no class on plain error")
	}
}

func TestExpiry_FlushRunsPendingTeardown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "无效的认证凭证"})
	}))
	defer server.Close()
	h := newHarness(t, server.URL)

	if h.client.Expiry().Flush() {
		t.Error("expected nothing to flush while idle")
	}

	h.client.Do(context.Background(), Call{Method: http.MethodGet, Path: "/owner/bills"})
	if !h.client.Expiry().Flush() {
		t.Fatal("expected pending teardown flushed")
	}
	if h.store.IsAuthenticated() {
		t.Error("expected session cleared")
	}
	if len(h.rec.navigate) != 1 {
		t.Errorf("expected one hard navigation, got %v", h.rec.navigate)
	}

	h.clock.fireAll()
	if len(h.rec.navigate) != 1 {
		t.Error("expected the stopped timer not to tear down again")
	}
}
