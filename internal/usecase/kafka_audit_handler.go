package usecase

import (
	"context"
	"encoding/json"
	"time"

	"TradeGate/internal/domain/models"
	domrepo "TradeGate/internal/domain/repository"
	pkgkafka "TradeGate/pkg/kafka"
)

// KafkaAuditHandler consumes admission events from the denial topic and
// writes them to storage. Used when the pipeline publishes to Kafka and a
// separate consumer materializes the audit table.
type KafkaAuditHandler struct {
	topic   string
	storage domrepo.AuditStorage
	metrics domrepo.Metrics
}

func NewKafkaAuditHandler(topic string, storage domrepo.AuditStorage, metrics domrepo.Metrics) *KafkaAuditHandler {
	return &KafkaAuditHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaAuditHandler) Topic() string { return h.topic }

func (h *KafkaAuditHandler) Handle(ctx context.Context, b []byte) error {
	var e models.AdmissionEvent
	if err := json.Unmarshal(b, &e); err != nil {
		h.metrics.RecordError("audit_unmarshal")
		return err
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	start := time.Now()
	if err := h.storage.Store(ctx, &e); err != nil {
		h.metrics.RecordError("audit_store")
		return err
	}
	h.metrics.RecordLatency("audit_insert", time.Since(start).Seconds())
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaAuditHandler)(nil)
