package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/domain/repository"
	pkgkafka "TradeGate/pkg/kafka"
)

// ClickHouseAuditStore implements AuditStorage for ClickHouse.
type ClickHouseAuditStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseAuditStore creates ClickHouse audit storage.
func NewClickHouseAuditStore(db *sql.DB, table string) repository.AuditStorage {
	return &ClickHouseAuditStore{db: db, table: table}
}

const auditColumns = "(ts, client, method, path, outcome, field, category, window, retry_after, detail)"

func (s *ClickHouseAuditStore) Store(ctx context.Context, e *models.AdmissionEvent) error {
	q := fmt.Sprintf("INSERT INTO %s %s VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.table, auditColumns)
	_, err := s.db.ExecContext(ctx, q, auditArgs(e)...)
	return err
}

func (s *ClickHouseAuditStore) StoreBatch(ctx context.Context, events []*models.AdmissionEvent) error {
	if len(events) == 0 {
		return nil
	}
	// Multi-row VALUES insert, chunked to bound statement size.
	const chunkSize = 1000
	for start := 0; start < len(events); start += chunkSize {
		end := start + chunkSize
		if end > len(events) {
			end = len(events)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*10)
		for _, e := range events[start:end] {
			if e == nil {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, auditArgs(e)...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s %s VALUES %s",
			s.table, auditColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseAuditStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseAuditStore) Close() error {
	return nil // pool is managed by pkg/clickhouse
}

func auditArgs(e *models.AdmissionEvent) []interface{} {
	return []interface{}{
		e.Time,
		e.Client,
		e.Method,
		e.Path,
		e.Outcome,
		e.Field,
		e.Category,
		e.Window,
		int32(e.RetryAfter),
		e.Detail,
	}
}

// KafkaAuditPublisher implements AuditPublisher for Kafka. Events are keyed
// by client so one client's denials land on one partition, in order.
type KafkaAuditPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAuditPublisher creates a Kafka audit publisher.
func NewKafkaAuditPublisher(producer *pkgkafka.Producer, topic string) repository.AuditPublisher {
	return &KafkaAuditPublisher{producer: producer, topic: topic}
}

func (p *KafkaAuditPublisher) Publish(ctx context.Context, e *models.AdmissionEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(e.Client), e)
}

func (p *KafkaAuditPublisher) PublishBatch(ctx context.Context, events []*models.AdmissionEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(events))
	for i, e := range events {
		msgs[i] = pkgkafka.Message{Key: []byte(e.Client), Value: e}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaAuditPublisher) Close() error {
	return p.producer.Close()
}
