package models

import "time"

// Admission outcomes recorded in audit events and metrics.
const (
	OutcomeAllowed         = "allowed"
	OutcomeRateLimited     = "rate_limited"
	OutcomeBanned          = "banned"
	OutcomePayloadTooLarge = "payload_too_large"
	OutcomeSecurity        = "security"
)

// AdmissionEvent is one denial decision captured for the audit trail.
type AdmissionEvent struct {
	Time       time.Time `json:"time"`
	Client     string    `json:"client"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Outcome    string    `json:"outcome"`
	Field      string    `json:"field,omitempty"`
	Category   string    `json:"category,omitempty"`
	Window     string    `json:"window,omitempty"`
	RetryAfter int       `json:"retry_after,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}
