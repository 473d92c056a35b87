package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	admissions   *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
	securityHits *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		admissions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_admissions_total",
				Help: "Admission decisions by outcome",
			},
			[]string{"outcome"},
		),
		rateLimited: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_rate_limited_total",
				Help: "Requests denied by the rate limiter, by window",
			},
			[]string{"window"},
		),
		securityHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_security_hits_total",
				Help: "Field values tripping a threat pattern family",
			},
			[]string{"category"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradegate_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAdmission records an admission decision outcome
// (allowed, rate_limited, payload_too_large, security, banned).
func (r *Recorder) RecordAdmission(outcome string) {
	r.admissions.WithLabelValues(outcome).Inc()
}

// RecordRateLimited records a rate-limit denial for a window ("1s" or "60s").
func (r *Recorder) RecordRateLimited(window string) {
	r.rateLimited.WithLabelValues(window).Inc()
}

// RecordSecurityHit records a pattern classification hit by category.
func (r *Recorder) RecordSecurityHit(category string) {
	r.securityHits.WithLabelValues(category).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
