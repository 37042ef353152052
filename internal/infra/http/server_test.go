package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"vizpilot/internal/config"
	"vizpilot/internal/domain"
	"vizpilot/internal/infra/metrics"
	"vizpilot/internal/infra/ratelimit"
	"vizpilot/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type fakeViz struct {
	mu      sync.Mutex
	renders []usecase.RenderRequest
	replays []usecase.ReplayRequest
	resp    domain.Response
	records map[string]domain.RequestRecord
	panics  bool
}

func (f *fakeViz) Render(_ context.Context, req usecase.RenderRequest) domain.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders = append(f.renders, req)
	if f.panics {
		panic("render exploded")
	}
	return f.resp
}

func (f *fakeViz) Replay(_ context.Context, req usecase.ReplayRequest) domain.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replays = append(f.replays, req)
	if _, ok := f.records[req.RequestID]; !ok {
		return domain.Response{RequestID: req.RequestID, Status: domain.StatusError, ErrorCode: domain.CodeNotFound, Message: "not found"}
	}
	return f.resp
}

func (f *fakeViz) History(_ context.Context, id string) (domain.RequestRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return domain.RequestRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, int, time.Duration) (domain.RateLimitDecision, error) {
	return domain.RateLimitDecision{}, errors.New("redis down")
}
func (brokenLimiter) Close() error { return nil }

func init() {
	gin.SetMode(gin.TestMode)
}

func successResponse() domain.Response {
	return domain.Response{
		RequestID: "req-1",
		Status:    domain.StatusSuccess,
		Spec:      domain.ChartSpec{"mark": "line"},
		Caption:   "TSLA close",
	}
}

func testConfig() config.Config {
	cfg := config.FromEnv()
	cfg.MockAuth = true
	cfg.RateLimitPerMinute = 0
	cfg.RedisAddr = ""
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config, viz *fakeViz, limiter domain.RateLimiter) *Server {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	return NewServerWithDeps(cfg, ServerDeps{Viz: viz, Logger: logger, RateLimiter: limiter, StoreMode: "memory"})
}

func doJSON(t *testing.T, s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeViz{}, nil)
	w := doJSON(t, s, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"store":"memory"`)) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestVizEndpoint(t *testing.T) {
	viz := &fakeViz{resp: successResponse()}
	s := newTestServer(t, testConfig(), viz, nil)

	w := doJSON(t, s, http.MethodPost, "/api/viz", vizRequest{Prompt: "  Plot TSLA close  "}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp domain.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != domain.StatusSuccess || resp.RequestID != "req-1" {
		t.Fatalf("resp = %+v", resp)
	}
	if len(viz.renders) != 1 || viz.renders[0].Options.Prompt != "Plot TSLA close" {
		t.Fatalf("renders = %+v", viz.renders)
	}
}

func TestVizRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		path string
		body any
	}{
		{name: "invalid json", path: "/api/viz", body: "{"},
		{name: "empty prompt", path: "/api/viz", body: vizRequest{Prompt: "   "}},
		{name: "unknown autofix", path: "/api/viz/autofix", body: autofixRequest{Prompt: "x", Autofix: &autofixOption{Method: "smooth"}}},
		{name: "replay without id", path: "/api/viz/replay", body: replayRequest{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			viz := &fakeViz{resp: successResponse()}
			s := newTestServer(t, testConfig(), viz, nil)
			w := doJSON(t, s, http.MethodPost, tc.path, tc.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
			}
			if got := decodeError(t, w); got.Code != domain.CodeBadRequest || got.Status != "error" {
				t.Fatalf("error = %+v", got)
			}
			if len(viz.renders)+len(viz.replays) != 0 {
				t.Fatalf("pipeline should not run")
			}
		})
	}
}

func TestAutofixPassesOptions(t *testing.T) {
	viz := &fakeViz{resp: successResponse()}
	s := newTestServer(t, testConfig(), viz, nil)
	body := autofixRequest{
		Prompt:     "Plot TSLA since 2000",
		Autofix:    &autofixOption{Method: "aggregate_monthly"},
		Transforms: []domain.TransformRequest{{Op: domain.OpMovingAverage, Field: "Close", Window: 5}},
	}
	w := doJSON(t, s, http.MethodPost, "/api/viz/autofix", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	opts := viz.renders[0].Options
	if opts.AutofixMethod != domain.RemediationAggregateMonthly || len(opts.Transforms) != 1 {
		t.Fatalf("options = %+v", opts)
	}
}

func TestReplayAndHistory(t *testing.T) {
	rec := domain.RequestRecord{RequestID: "orig", Status: domain.StatusSuccess, Options: domain.RequestOptions{Prompt: "Plot TSLA"}}
	viz := &fakeViz{resp: successResponse(), records: map[string]domain.RequestRecord{"orig": rec}}
	s := newTestServer(t, testConfig(), viz, nil)

	w := doJSON(t, s, http.MethodPost, "/api/viz/replay", replayRequest{RequestID: "orig", ModelOverride: "gemini-2.5-pro", Autofix: &autofixOption{Method: "decimate"}}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("replay status = %d", w.Code)
	}
	got := viz.replays[0]
	if got.Overrides.Model != "gemini-2.5-pro" || got.Overrides.AutofixMethod != domain.RemediationDecimate {
		t.Fatalf("overrides = %+v", got.Overrides)
	}

	w = doJSON(t, s, http.MethodPost, "/api/viz/replay", replayRequest{RequestID: "missing"}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown replay status = %d", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, "/api/viz/history/orig", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}
	var hist historyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if hist.Record.Options.Prompt != "Plot TSLA" || hist.Status != "success" {
		t.Fatalf("history = %+v", hist)
	}

	w = doJSON(t, s, http.MethodGet, "/api/viz/history/missing", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing history status = %d", w.Code)
	}
	if e := decodeError(t, w); e.Code != domain.CodeNotFound || e.RequestID != "missing" {
		t.Fatalf("missing history body = %+v", e)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.MockAuth = false
	cfg.APIKeys = []string{"secret-1"}
	s := newTestServer(t, cfg, &fakeViz{resp: successResponse()}, nil)

	w := doJSON(t, s, http.MethodPost, "/api/viz", vizRequest{Prompt: "Plot TSLA"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key status = %d", w.Code)
	}
	if e := decodeError(t, w); e.Code != domain.CodeUnauthorized {
		t.Fatalf("code = %s", e.Code)
	}
	w = doJSON(t, s, http.MethodPost, "/api/viz", vizRequest{Prompt: "Plot TSLA"}, map[string]string{apiKeyHeader: "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key status = %d", w.Code)
	}
	w = doJSON(t, s, http.MethodPost, "/api/viz", vizRequest{Prompt: "Plot TSLA"}, map[string]string{apiKeyHeader: "secret-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("valid key status = %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodGet, "/health", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("health should not need a key, got %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	now := time.Now()
	limiter := ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{Now: func() time.Time { return now }})
	s := newTestServer(t, cfg, &fakeViz{resp: successResponse()}, limiter)

	headers := map[string]string{apiKeyHeader: "k1"}
	for i := 0; i < 2; i++ {
		w := doJSON(t, s, http.MethodPost, "/api/viz", vizRequest{Prompt: "Plot TSLA"}, headers)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
		if w.Header().Get("RateLimit-Limit") != "2" {
			t.Fatalf("missing RateLimit-Limit header")
		}
	}
	w := doJSON(t, s, http.MethodPost, "/api/viz", vizRequest{Prompt: "Plot TSLA"}, headers)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d", w.Code)
	}
	if e := decodeError(t, w); e.Code != domain.CodeRateLimit {
		t.Fatalf("code = %s", e.Code)
	}
	if w.Header().Get("Retry-After") == "" || w.Header().Get("RateLimit-Remaining") != "0" {
		t.Fatalf("headers = %v", w.Header())
	}

	other := doJSON(t, s, http.MethodPost, "/api/viz", vizRequest{Prompt: "Plot TSLA"}, map[string]string{apiKeyHeader: "k2"})
	if other.Code != http.StatusOK {
		t.Fatalf("other key should have its own window, got %d", other.Code)
	}
}

func TestRateLimiterFailure(t *testing.T) {
	for _, failClosed := range []bool{false, true} {
		cfg := testConfig()
		cfg.RateLimitPerMinute = 5
		cfg.RateLimitFailClosed = failClosed
		s := newTestServer(t, cfg, &fakeViz{resp: successResponse()}, brokenLimiter{})
		w := doJSON(t, s, http.MethodPost, "/api/viz", vizRequest{Prompt: "Plot TSLA"}, nil)
		want := http.StatusOK
		if failClosed {
			want = http.StatusTooManyRequests
		}
		if w.Code != want {
			t.Fatalf("failClosed=%v status = %d, want %d", failClosed, w.Code, want)
		}
	}
}

func TestPipelineErrorStatuses(t *testing.T) {
	cases := []struct {
		code domain.ErrorCode
		want int
	}{
		{domain.CodeTooManyPoints, http.StatusOK},
		{domain.CodeVegaInvalid, http.StatusOK},
		{domain.CodeInternal, http.StatusInternalServerError},
		{domain.CodeNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		viz := &fakeViz{resp: domain.Response{RequestID: "r", Status: domain.StatusError, ErrorCode: tc.code}}
		s := newTestServer(t, testConfig(), viz, nil)
		w := doJSON(t, s, http.MethodPost, "/api/viz", vizRequest{Prompt: "Plot TSLA"}, nil)
		if w.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.code, w.Code, tc.want)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	rec := metrics.NewRecorder()
	rec.ObserveRequest("success", 20*time.Millisecond)
	logger := logrus.New()
	logger.SetOutput(bytes.NewBuffer(nil))
	s := NewServerWithDeps(testConfig(), ServerDeps{Viz: &fakeViz{}, Metrics: rec.Handler(), Logger: logger})

	w := doJSON(t, s, http.MethodGet, "/metrics", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("viz_requests_total")) {
		t.Fatalf("metrics body missing counter: %s", w.Body.String())
	}

	if w := doJSON(t, s, http.MethodGet, "/nope", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("no route status = %d", w.Code)
	}
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("corr-%d", n)
	}
}

func TestErrorsCarryRequestID(t *testing.T) {
	cfg := testConfig()
	cfg.MockAuth = false
	cfg.APIKeys = []string{"secret-1"}
	cfg.RateLimitPerMinute = 1
	now := time.Now()
	limiter := ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{Now: func() time.Time { return now }})
	logger, _ := logtest.NewNullLogger()
	viz := &fakeViz{resp: successResponse()}
	s := NewServerWithDeps(cfg, ServerDeps{Viz: viz, Logger: logger, RateLimiter: limiter, NewID: sequentialIDs()})
	key := map[string]string{apiKeyHeader: "secret-1"}

	cases := []struct {
		name   string
		path   string
		body   any
		header map[string]string
		status int
		code   domain.ErrorCode
	}{
		{name: "unauthorized", path: "/api/viz", body: vizRequest{Prompt: "Plot TSLA"}, status: http.StatusUnauthorized, code: domain.CodeUnauthorized},
		{name: "bad json", path: "/api/viz", body: "{", header: key, status: http.StatusBadRequest, code: domain.CodeBadRequest},
		{name: "rate limited", path: "/api/viz", body: vizRequest{Prompt: "Plot TSLA"}, header: key, status: http.StatusTooManyRequests, code: domain.CodeRateLimit},
		{name: "no route", path: "/api/nope", body: nil, status: http.StatusNotFound, code: domain.CodeNotFound},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, s, http.MethodPost, tc.path, tc.body, tc.header)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.status, w.Body.String())
			}
			e := decodeError(t, w)
			want := fmt.Sprintf("corr-%d", i+1)
			if e.Code != tc.code || e.RequestID != want {
				t.Fatalf("body = %+v, want code %s and request_id %s", e, tc.code, want)
			}
			if got := w.Header().Get(requestIDHeader); got != want {
				t.Fatalf("%s header = %q, want %q", requestIDHeader, got, want)
			}
		})
	}
}

func TestRenderUsesCorrelationID(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	viz := &fakeViz{resp: successResponse(), records: map[string]domain.RequestRecord{"req-1": {RequestID: "req-1"}}}
	s := NewServerWithDeps(testConfig(), ServerDeps{Viz: viz, Logger: logger, NewID: sequentialIDs()})

	w := doJSON(t, s, http.MethodPost, "/api/viz", vizRequest{Prompt: "Plot TSLA"}, nil)
	if w.Code != http.StatusOK || w.Header().Get(requestIDHeader) != "corr-1" {
		t.Fatalf("status = %d header = %q", w.Code, w.Header().Get(requestIDHeader))
	}
	w = doJSON(t, s, http.MethodPost, "/api/viz/replay", replayRequest{RequestID: "req-1"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("replay status = %d", w.Code)
	}
	if len(viz.renders) != 1 || viz.renders[0].RequestID != "corr-1" {
		t.Fatalf("render request = %+v", viz.renders)
	}
	if len(viz.replays) != 1 || viz.replays[0].NewRequestID != "corr-2" || viz.replays[0].RequestID != "req-1" {
		t.Fatalf("replay request = %+v", viz.replays)
	}
}

func TestPanicReturnsInternalWithRequestID(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	s := NewServerWithDeps(testConfig(), ServerDeps{Viz: &fakeViz{panics: true}, Logger: logger, NewID: sequentialIDs()})

	w := doJSON(t, s, http.MethodPost, "/api/viz", vizRequest{Prompt: "Plot TSLA"}, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	e := decodeError(t, w)
	if e.Code != domain.CodeInternal || e.RequestID != "corr-1" {
		t.Fatalf("body = %+v", e)
	}
	if hook.LastEntry() == nil || hook.LastEntry().Data["request_id"] != "corr-1" {
		t.Fatalf("panic was not logged with the correlation id")
	}
}

func TestRetryAfterRoundsUp(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{300 * time.Millisecond, "1"},
		{2500 * time.Millisecond, "3"},
		{-time.Second, "0"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeRateLimitHeaders(c, domain.RateLimitDecision{Allowed: false, Limit: 1, ResetAt: time.Now().Add(tc.in)})
		if got := w.Header().Get("Retry-After"); got != tc.want {
			t.Fatalf("reset in %v: Retry-After = %q, want %q", tc.in, got, tc.want)
		}
	}
}
