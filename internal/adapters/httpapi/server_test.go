package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bfhl/go-backend/internal/domains/operations"
	"bfhl/go-backend/internal/platform/metrics"
	"bfhl/go-backend/internal/platform/ratelimiter"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

const testEmail = "ops@example.com"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubAsker struct {
	answer string
	err    error
}

func (s stubAsker) Ask(context.Context, string) (string, error) {
	return s.answer, s.err
}

type envelope struct {
	IsSuccess     bool            `json:"is_success"`
	OfficialEmail *string         `json:"official_email"`
	Data          json.RawMessage `json:"data"`
	Error         *string         `json:"error"`
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, mutate func(*Options)) *Server {
	t.Helper()
	opts := Options{
		OfficialEmail: testEmail,
		Dispatcher:    operations.NewDispatcher(nil, quietLogger()),
		Metrics:       metrics.New(),
		Logger:        quietLogger(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	s := NewServer(opts)
	if s.initErr != nil {
		t.Fatalf("init server: %v", s.initErr)
	}
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func assertFailure(t *testing.T, rec *httptest.ResponseRecorder, env envelope, status int, message string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d (%s)", status, rec.Code, rec.Body.String())
	}
	if env.IsSuccess {
		t.Fatal("expected is_success=false")
	}
	if env.Error == nil {
		t.Fatalf("expected error field, got %s", rec.Body.String())
	}
	if message != "" && *env.Error != message {
		t.Fatalf("expected error %q, got %q", message, *env.Error)
	}
	if env.Data != nil || env.OfficialEmail != nil {
		t.Fatalf("failure must not carry data or official_email: %s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec, env := do(t, s.Handler(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !env.IsSuccess {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
	if env.OfficialEmail == nil || *env.OfficialEmail != testEmail {
		t.Fatalf("unexpected official_email in %s", rec.Body.String())
	}
	if env.Data != nil || env.Error != nil {
		t.Fatalf("health must not carry data or error: %s", rec.Body.String())
	}
}

func TestDocsListsEveryOperationWithExample(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/bfhl", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var docs struct {
		Message   string `json:"message"`
		Endpoints struct {
			Health   string                                `json:"GET /health"`
			BFHL     string                                `json:"POST /bfhl"`
			Examples map[string]map[string]json.RawMessage `json:"examples"`
		} `json:"endpoints"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil {
		t.Fatalf("decode docs: %v", err)
	}
	if docs.Message == "" || docs.Endpoints.Health == "" {
		t.Fatalf("incomplete docs: %s", rec.Body.String())
	}
	if !strings.HasSuffix(docs.Endpoints.BFHL, "fibonacci, prime, lcm, hcf, AI") {
		t.Fatalf("unexpected POST /bfhl description %q", docs.Endpoints.BFHL)
	}
	for _, k := range operations.Kinds() {
		example, ok := docs.Endpoints.Examples[string(k)]
		if !ok {
			t.Fatalf("missing example for %s", k)
		}
		if _, ok := example[string(k)]; !ok {
			t.Fatalf("example for %s does not use its key: %v", k, example)
		}
	}
	if got := string(docs.Endpoints.Examples["prime"]["prime"]); got != "[2,4,7,9,11]" {
		t.Fatalf("unexpected prime example %s", got)
	}
}

func TestPostScenarios(t *testing.T) {
	s := newTestServer(t, nil)
	cases := []struct {
		name string
		body string
		data string
	}{
		{"A fibonacci", `{"fibonacci":7}`, `[0,1,1,2,3,5,8,13]`},
		{"B prime", `{"prime":[2,4,7,9,11]}`, `[2,7,11]`},
		{"C lcm", `{"lcm":[12,18,24]}`, `72`},
		{"D hcf", `{"hcf":[24,36,60]}`, `12`},
		{"fibonacci zero", `{"fibonacci":0}`, `[0]`},
		{"no primes", `{"prime":[4,6,8]}`, `[]`},
		{"large lcm", `{"lcm":[9007199254740881,9007199254740991]}`, `81129638414605672889472474153071`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, s.Handler(), http.MethodPost, "/bfhl", tc.body)
			if rec.Code != http.StatusOK || !env.IsSuccess {
				t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
			}
			if env.OfficialEmail == nil || *env.OfficialEmail != testEmail {
				t.Fatalf("missing official_email: %s", rec.Body.String())
			}
			if env.Error != nil {
				t.Fatalf("success must not carry error: %s", rec.Body.String())
			}
			if got := string(env.Data); got != tc.data {
				t.Fatalf("expected data %s, got %s", tc.data, got)
			}
		})
	}
}

func TestPostClientErrors(t *testing.T) {
	s := newTestServer(t, nil)
	twentyOne := "[" + strings.TrimSuffix(strings.Repeat("2,", 21), ",") + "]"
	cases := []struct {
		name    string
		body    string
		message string
	}{
		{"E invalid key", `{"invalid_key":"x"}`, operations.MsgInvalidKey},
		{"zero keys", `{}`, operations.MsgExactlyOneKey},
		{"empty body", ``, operations.MsgExactlyOneKey},
		{"two keys", `{"fibonacci":7,"prime":[2]}`, operations.MsgExactlyOneKey},
		{"array body", `[{"fibonacci":7}]`, operations.MsgExactlyOneKey},
		{"scalar body", `7`, operations.MsgExactlyOneKey},
		{"fibonacci 51", `{"fibonacci":51}`, `"fibonacci" must be less than or equal to 50`},
		{"prime length 21", `{"prime":` + twentyOne + `}`, `"prime" must contain less than or equal to 20 items`},
		{"malformed json", `{"fibonacci":`, msgInvalidJSON},
		{"trailing data", `{"fibonacci":7} {"prime":[2]}`, msgInvalidJSON},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, s.Handler(), http.MethodPost, "/bfhl", tc.body)
			assertFailure(t, rec, env, http.StatusBadRequest, tc.message)
		})
	}
}

func TestPostInvalidKeyNamesRecognizedSet(t *testing.T) {
	s := newTestServer(t, nil)
	rec, env := do(t, s.Handler(), http.MethodPost, "/bfhl", `{"invalid_key":"x"}`)
	assertFailure(t, rec, env, http.StatusBadRequest, "")
	for _, k := range operations.Kinds() {
		if !strings.Contains(*env.Error, string(k)) {
			t.Fatalf("error %q does not name %s", *env.Error, k)
		}
	}
}

func TestPostAIWithoutCredentialIsServiceUnavailable(t *testing.T) {
	s := newTestServer(t, nil)
	rec, env := do(t, s.Handler(), http.MethodPost, "/bfhl", `{"AI":"capital of India"}`)
	assertFailure(t, rec, env, http.StatusServiceUnavailable, operations.MsgAINotConfigured)
}

func TestPostAIAnswer(t *testing.T) {
	s := newTestServer(t, func(o *Options) {
		o.Dispatcher = operations.NewDispatcher(stubAsker{answer: "New Delhi"}, quietLogger())
	})
	rec, env := do(t, s.Handler(), http.MethodPost, "/bfhl", `{"AI":"capital of India"}`)
	if rec.Code != http.StatusOK || string(env.Data) != `"New Delhi"` {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestPostAIUpstreamFailureIsGeneric(t *testing.T) {
	s := newTestServer(t, func(o *Options) {
		o.Dispatcher = operations.NewDispatcher(stubAsker{err: io.ErrUnexpectedEOF}, quietLogger())
	})
	rec, env := do(t, s.Handler(), http.MethodPost, "/bfhl", `{"AI":"capital of India"}`)
	assertFailure(t, rec, env, http.StatusInternalServerError, operations.MsgAIUnavailable)
	if strings.Contains(rec.Body.String(), "unexpected EOF") {
		t.Fatalf("upstream detail leaked: %s", rec.Body.String())
	}
}

func TestPostIsIdempotent(t *testing.T) {
	s := newTestServer(t, nil)
	_, first := do(t, s.Handler(), http.MethodPost, "/bfhl", `{"lcm":[4,6,8,10]}`)
	_, second := do(t, s.Handler(), http.MethodPost, "/bfhl", `{"lcm":[4,6,8,10]}`)
	if diff := cmp.Diff(string(first.Data), string(second.Data)); diff != "" || string(first.Data) != "120" {
		t.Fatalf("repeated requests differ or are wrong: %s vs %s", first.Data, second.Data)
	}
}

func TestPostBodyTooLarge(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.MaxBodyBytes = 32 })
	body := `{"AI":"` + strings.Repeat("x", 64) + `"}`
	rec, env := do(t, s.Handler(), http.MethodPost, "/bfhl", body)
	assertFailure(t, rec, env, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
}

func TestUnknownRoutesAndMethodsAreNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	cases := []struct{ method, path string }{
		{http.MethodGet, "/"},
		{http.MethodGet, "/unknown"},
		{http.MethodPost, "/health"},
		{http.MethodPut, "/bfhl"},
		{http.MethodDelete, "/bfhl"},
		{http.MethodPost, "/bfhl/extra"},
	}
	for _, tc := range cases {
		rec, env := do(t, s.Handler(), tc.method, tc.path, "")
		assertFailure(t, rec, env, http.StatusNotFound, msgNotFound)
	}
}

func TestRateLimitReturns429Envelope(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.Limiter = ratelimiter.NewWindow(2, time.Hour) })
	for i := 0; i < 2; i++ {
		rec, _ := do(t, s.Handler(), http.MethodGet, "/health", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d should pass, got %d", i+1, rec.Code)
		}
		if rec.Header().Get("RateLimit-Limit") != "2" {
			t.Fatalf("missing RateLimit-Limit header")
		}
	}
	rec, env := do(t, s.Handler(), http.MethodPost, "/bfhl", `{"fibonacci":7}`)
	assertFailure(t, rec, env, http.StatusTooManyRequests, msgTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRateLimitIsPerClient(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.Limiter = ratelimiter.NewWindow(1, time.Hour) })
	for _, addr := range []string{"10.0.0.1:1000", "10.0.0.2:1000"} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("first request from %s should pass, got %d", addr, rec.Code)
		}
	}
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.1:2000"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request from same IP should be limited, got %d", rec.Code)
	}
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	s := newTestServer(t, nil)
	for _, path := range []string{"/health", "/nowhere"} {
		rec, _ := do(t, s.Handler(), http.MethodGet, path, "")
		for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Strict-Transport-Security"} {
			if rec.Header().Get(h) == "" {
				t.Fatalf("%s: missing %s", path, h)
			}
		}
	}
}

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.AllowedOrigins = []string{"https://app.example.com"} })

	req := httptest.NewRequest(http.MethodOptions, "/bfhl", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected preflight 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("unexpected allow-origin %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin for foreign origin: %q", got)
	}
}

func TestRequestIDIsPropagatedOrGenerated(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "trace-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "trace-123" {
		t.Fatalf("expected propagated id, got %q", got)
	}

	rec, _ = do(t, s.Handler(), http.MethodGet, "/health", "")
	if got := rec.Header().Get(requestIDHeader); len(got) != 36 {
		t.Fatalf("expected generated uuid, got %q", got)
	}
}

func TestRecoverPanicsWritesEnvelope(t *testing.T) {
	s := newTestServer(t, nil)
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), s.recoverPanics, s.assignRequestID)
	rec, env := do(t, h, http.MethodPost, "/bfhl", `{}`)
	assertFailure(t, rec, env, http.StatusInternalServerError, "Internal server error")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	do(t, s.Handler(), http.MethodPost, "/bfhl", `{"fibonacci":3}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected metrics status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `bfhl_operations_total{operation="fibonacci",outcome="ok"} 1`) {
		t.Fatalf("operation metric missing:\n%s", rec.Body.String())
	}

	noMetrics := newTestServer(t, func(o *Options) { o.Metrics = nil })
	rec, env := do(t, noMetrics.Handler(), http.MethodGet, "/metrics", "")
	assertFailure(t, rec, env, http.StatusNotFound, msgNotFound)
}

func TestAccessLogRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	s := newTestServer(t, func(o *Options) { o.Logger = slog.New(slog.NewJSONHandler(&buf, nil)) })
	do(t, s.Handler(), http.MethodGet, "/health", "")
	if !strings.Contains(buf.String(), `"msg":"http request"`) || !strings.Contains(buf.String(), `"status":200`) {
		t.Fatalf("unexpected access log: %s", buf.String())
	}
}

func TestNewServerRequiresDispatcher(t *testing.T) {
	s := NewServer(Options{})
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected init error without dispatcher")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.Addr = "127.0.0.1:0" })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
