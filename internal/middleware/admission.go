// Package middleware contains the request admission pipeline that fronts
// every mutating API route.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/ratelimit"
	"TradeGate/internal/security"
	"TradeGate/pkg/logger"
)

// AuditRecorder receives denial events for the audit trail.
type AuditRecorder interface {
	Record(e *models.AdmissionEvent)
}

// StrikeTracker bans repeat offenders.
type StrikeTracker interface {
	IsBanned(ctx context.Context, client string) bool
	RecordStrike(ctx context.Context, client string) bool
}

// Metrics is the subset of pipeline metrics the middleware records.
type Metrics interface {
	RecordAdmission(outcome string)
	RecordRateLimited(window string)
	RecordSecurityHit(category string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// Admission runs the full admission sequence: client resolution, ban check,
// rate limiting, payload ceiling, field-level security classification.
// Read-only methods and exempt paths bypass all checks.
type Admission struct {
	limiter    *ratelimit.Limiter
	secval     *security.Validator
	strikes    StrikeTracker
	audit      AuditRecorder
	metrics    Metrics
	log        *logger.Logger
	maxPayload int64
	exempt     map[string]struct{}
}

// AdmissionOption configures Admission.
type AdmissionOption func(*Admission)

// WithMaxPayload sets the raw body ceiling in bytes.
func WithMaxPayload(n int64) AdmissionOption {
	return func(a *Admission) {
		if n > 0 {
			a.maxPayload = n
		}
	}
}

// WithExemptPaths sets paths that bypass rate limiting and validation.
func WithExemptPaths(paths []string) AdmissionOption {
	return func(a *Admission) {
		a.exempt = make(map[string]struct{}, len(paths))
		for _, p := range paths {
			a.exempt[p] = struct{}{}
		}
	}
}

// WithStrikes enables repeat-offender banning.
func WithStrikes(t StrikeTracker) AdmissionOption {
	return func(a *Admission) {
		a.strikes = t
	}
}

// WithAudit enables the denial audit trail.
func WithAudit(r AuditRecorder) AdmissionOption {
	return func(a *Admission) {
		a.audit = r
	}
}

// NewAdmission builds the admission middleware.
func NewAdmission(
	limiter *ratelimit.Limiter,
	secval *security.Validator,
	metrics Metrics,
	log *logger.Logger,
	opts ...AdmissionOption,
) *Admission {
	a := &Admission{
		limiter:    limiter,
		secval:     secval,
		metrics:    metrics,
		log:        log,
		maxPayload: 1_000_000,
		exempt: map[string]struct{}{
			"/":        {},
			"/health":  {},
			"/metrics": {},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Middleware returns the echo middleware function.
func (a *Admission) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if !isMutating(req.Method) {
				return next(c)
			}
			if _, ok := a.exempt[req.URL.Path]; ok {
				return next(c)
			}

			start := time.Now()
			client := ClientKey(req)

			if a.strikes != nil && a.strikes.IsBanned(req.Context(), client) {
				a.metrics.RecordAdmission(models.OutcomeBanned)
				a.deny(client, req, &models.AdmissionEvent{
					Outcome: models.OutcomeBanned,
					Detail:  "client temporarily banned",
				}, false)
				return c.JSON(http.StatusForbidden, map[string]interface{}{
					"error": "temporarily banned due to repeated violations",
				})
			}

			decision := a.limiter.Allow(client)
			if !decision.Allowed {
				a.metrics.RecordAdmission(models.OutcomeRateLimited)
				a.metrics.RecordRateLimited(decision.Window)
				a.deny(client, req, &models.AdmissionEvent{
					Outcome:    models.OutcomeRateLimited,
					Window:     decision.Window,
					RetryAfter: decision.RetryAfter,
				}, true)

				h := c.Response().Header()
				h.Set("Retry-After", strconv.Itoa(decision.RetryAfter))
				h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
				h.Set("X-RateLimit-Window", decision.Window)
				h.Set("X-RateLimit-Remaining", "0")
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":       "rate limit exceeded",
					"limit":       decision.Limit,
					"window":      decision.Window,
					"retry_after": decision.RetryAfter,
				})
			}

			// Payload ceiling is enforced on the raw body before parsing.
			body, tooLarge, err := a.readBody(req)
			if err != nil {
				a.metrics.RecordError("body_read")
				return echo.NewHTTPError(http.StatusBadRequest, "could not read request body")
			}
			if tooLarge {
				a.metrics.RecordAdmission(models.OutcomePayloadTooLarge)
				a.deny(client, req, &models.AdmissionEvent{
					Outcome: models.OutcomePayloadTooLarge,
				}, true)
				return c.JSON(http.StatusRequestEntityTooLarge, map[string]interface{}{
					"error":    "request body too large",
					"max_size": a.maxPayload,
				})
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			if field, verdict := a.scanBody(body); verdict != security.VerdictClean {
				a.metrics.RecordAdmission(models.OutcomeSecurity)
				a.metrics.RecordSecurityHit(verdict.Category())
				a.deny(client, req, &models.AdmissionEvent{
					Outcome:  models.OutcomeSecurity,
					Field:    field,
					Category: verdict.Category(),
				}, true)
				return c.JSON(http.StatusBadRequest, map[string]interface{}{
					"error":  "request failed security validation",
					"field":  field,
					"reason": verdict.Reason(),
				})
			}

			a.metrics.RecordAdmission(models.OutcomeAllowed)
			a.metrics.RecordLatency("admission", time.Since(start).Seconds())

			stats := a.limiter.Stats(client)
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(stats.SustainedLimit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(stats.RemainingSustained))
			h.Set("X-RateLimit-Window", stats.SustainedWindow)

			return next(c)
		}
	}
}

// readBody reads at most maxPayload bytes. The boolean reports whether the
// body exceeded the ceiling; no parsing is attempted in that case.
func (a *Admission) readBody(req *http.Request) ([]byte, bool, error) {
	if req.Body == nil {
		return nil, false, nil
	}
	defer req.Body.Close()

	if req.ContentLength > a.maxPayload {
		return nil, true, nil
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, a.maxPayload+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > a.maxPayload {
		return nil, true, nil
	}
	return body, false, nil
}

// scanBody sanitizes and classifies every scalar string field in the parsed
// body, skipping signature and timestamp fields which follow their own
// format checks. An unparsable body passes through untouched.
func (a *Admission) scanBody(body []byte) (string, security.Verdict) {
	if len(body) == 0 {
		return "", security.VerdictClean
	}
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", security.VerdictClean
	}
	return a.scanValue("", parsed)
}

func (a *Admission) scanValue(field string, v interface{}) (string, security.Verdict) {
	switch val := v.(type) {
	case string:
		if verdict := a.secval.Classify(security.Sanitize(val)); verdict != security.VerdictClean {
			return field, verdict
		}
	case map[string]interface{}:
		for k, child := range val {
			if isFormatCheckedField(k) {
				continue
			}
			name := k
			if field != "" {
				name = field + "." + k
			}
			if f, verdict := a.scanValue(name, child); verdict != security.VerdictClean {
				return f, verdict
			}
		}
	case []interface{}:
		for i, child := range val {
			name := fmt.Sprintf("%s[%d]", field, i)
			if f, verdict := a.scanValue(name, child); verdict != security.VerdictClean {
				return f, verdict
			}
		}
	}
	return "", security.VerdictClean
}

func (a *Admission) deny(client string, req *http.Request, e *models.AdmissionEvent, strike bool) {
	e.Time = time.Now()
	e.Client = client
	e.Method = req.Method
	e.Path = req.URL.Path

	if a.audit != nil {
		a.audit.Record(e)
	}
	if strike && a.strikes != nil {
		a.strikes.RecordStrike(req.Context(), client)
	}
	a.log.Warn("request denied",
		logger.String("client", client),
		logger.String("path", e.Path),
		logger.String("outcome", e.Outcome),
		logger.String("field", e.Field),
		logger.String("category", e.Category))
}

// ClientKey resolves the rate-limit identity: the first address in
// X-Forwarded-For when present, else the transport peer address.
func ClientKey(req *http.Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		if addr := strings.TrimSpace(xff); addr != "" {
			return addr
		}
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

func isFormatCheckedField(name string) bool {
	switch strings.ToLower(name) {
	case "signature", "timestamp":
		return true
	default:
		return false
	}
}
