package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/ratelimit"
	"TradeGate/internal/security"
	"TradeGate/pkg/logger"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []*models.AdmissionEvent
}

func (r *recordedEvents) Record(e *models.AdmissionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordedEvents) last() *models.AdmissionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

type fakeStrikes struct {
	banned  map[string]bool
	strikes map[string]int
}

func newFakeStrikes() *fakeStrikes {
	return &fakeStrikes{banned: map[string]bool{}, strikes: map[string]int{}}
}

func (f *fakeStrikes) IsBanned(_ context.Context, client string) bool { return f.banned[client] }

func (f *fakeStrikes) RecordStrike(_ context.Context, client string) bool {
	f.strikes[client]++
	return false
}

type nullMetrics struct{}

func (nullMetrics) RecordAdmission(string)        {}
func (nullMetrics) RecordRateLimited(string)      {}
func (nullMetrics) RecordSecurityHit(string)      {}
func (nullMetrics) RecordError(string)            {}
func (nullMetrics) RecordLatency(string, float64) {}

type testEnv struct {
	e      *echo.Echo
	audit  *recordedEvents
	strike *fakeStrikes
}

func newTestEnv(t *testing.T, opts ...AdmissionOption) *testEnv {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	limiter := ratelimit.New(
		ratelimit.WithBurst(5, time.Second),
		ratelimit.WithSustained(100, time.Minute),
	)
	audit := &recordedEvents{}
	strike := newFakeStrikes()

	base := []AdmissionOption{
		WithAudit(audit),
		WithStrikes(strike),
		WithMaxPayload(1024),
	}
	adm := NewAdmission(limiter, security.NewValidator(), nullMetrics{}, log,
		append(base, opts...)...)

	e := echo.New()
	e.Use(adm.Middleware())
	e.POST("/api/trade/place", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/api/limits", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.POST("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	return &testEnv{e: e, audit: audit, strike: strike}
}

func (env *testEnv) post(path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = "203.0.113.10:50000"
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func TestAllowedRequestGetsRateLimitHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post("/api/trade/place", `{"coin":"BTC"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1 minute", rec.Header().Get("X-RateLimit-Window"))
}

func TestReadOnlyAndExemptBypass(t *testing.T) {
	env := newTestEnv(t, WithExemptPaths([]string{"/health"}))

	// Burst the limiter dry.
	for i := 0; i < 10; i++ {
		env.post("/api/trade/place", `{}`, nil)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/limits", nil)
	req.RemoteAddr = "203.0.113.10:50000"
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "read-only requests bypass the limiter")

	rec = env.post("/health", `{}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "exempt paths bypass the limiter")
}

func TestRateLimitDenial(t *testing.T) {
	env := newTestEnv(t)

	var rec *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		rec = env.post("/api/trade/place", `{}`, nil)
	}
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate limit exceeded", body["error"])
	assert.Equal(t, float64(5), body["limit"])
	assert.Equal(t, "1 second", body["window"])
	assert.Equal(t, float64(1), body["retry_after"])

	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	ev := env.audit.last()
	require.NotNil(t, ev)
	assert.Equal(t, models.OutcomeRateLimited, ev.Outcome)
	assert.Equal(t, "203.0.113.10", ev.Client)
	assert.Equal(t, 1, env.strike.strikes["203.0.113.10"])
}

func TestClientKeyResolution(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.RemoteAddr = "203.0.113.10:50000"
	assert.Equal(t, "203.0.113.10", ClientKey(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	assert.Equal(t, "198.51.100.7", ClientKey(req), "first forwarded address wins")
}

func TestOversizedPayloadRejected(t *testing.T) {
	env := newTestEnv(t, WithMaxPayload(64))

	rec := env.post("/api/trade/place", `{"pad":"`+strings.Repeat("x", 200)+`"}`, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "request body too large", body["error"])
	assert.Equal(t, float64(64), body["max_size"])

	assert.Equal(t, models.OutcomePayloadTooLarge, env.audit.last().Outcome)
}

func TestSecurityPatternRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post("/api/trade/place", `{"coin":"BTC' OR 1=1 --"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "coin", body["field"])
	assert.Contains(t, body["reason"], "SQL injection")

	ev := env.audit.last()
	require.NotNil(t, ev)
	assert.Equal(t, models.OutcomeSecurity, ev.Outcome)
	assert.Equal(t, "sql_injection", ev.Category)
}

func TestNestedFieldsScanned(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post("/api/trade/place",
		`{"meta":{"note":"<script>alert(1)</script>"}}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "meta.note", body["field"])
}

func TestSignatureAndTimestampSkipped(t *testing.T) {
	env := newTestEnv(t)

	// Hex signatures would never match, but a hostile-looking value in the
	// signature field must still be left to the format check downstream.
	rec := env.post("/api/trade/place",
		`{"signature":"union select --","coin":"BTC"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnparsableBodyPassesThrough(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post("/api/trade/place", `{not json`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBodyRestoredForHandler(t *testing.T) {
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	adm := NewAdmission(ratelimit.New(), security.NewValidator(), nullMetrics{}, log)

	e := echo.New()
	e.Use(adm.Middleware())
	var seen map[string]string
	e.POST("/echo", func(c echo.Context) error {
		if err := json.NewDecoder(c.Request().Body).Decode(&seen); err != nil {
			return err
		}
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"coin":"BTC"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = "203.0.113.10:50000"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BTC", seen["coin"], "handler must see the original body")
}

func TestBannedClientRejected(t *testing.T) {
	env := newTestEnv(t)
	env.strike.banned["203.0.113.10"] = true

	rec := env.post("/api/trade/place", `{}`, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, models.OutcomeBanned, env.audit.last().Outcome)
}
