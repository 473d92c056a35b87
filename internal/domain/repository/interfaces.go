package repository

import (
	"context"

	"TradeGate/internal/domain/models"
)

// AuditStorage persists admission events for offline analysis.
type AuditStorage interface {
	Store(ctx context.Context, e *models.AdmissionEvent) error
	StoreBatch(ctx context.Context, events []*models.AdmissionEvent) error
	Health(ctx context.Context) error
	Close() error
}

// AuditPublisher ships admission events to a message broker.
type AuditPublisher interface {
	Publish(ctx context.Context, e *models.AdmissionEvent) error
	PublishBatch(ctx context.Context, events []*models.AdmissionEvent) error
	Close() error
}

// Metrics records operational metrics for the admission pipeline.
type Metrics interface {
	RecordAdmission(outcome string)
	RecordRateLimited(window string)
	RecordSecurityHit(category string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
