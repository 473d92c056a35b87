package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	"TradeGate/pkg/logger"
)

// AuditProcessor buffers admission events and flushes them to the configured
// backend in batches. Record never blocks the request path; when the buffer
// is full the event is dropped and counted.
type AuditProcessor struct {
	pub     drepo.AuditPublisher
	store   drepo.AuditStorage
	metrics drepo.Metrics
	log     *logger.Logger
	backend string
	batchSz int
	batchTO time.Duration

	events   chan *models.AdmissionEvent
	stopOnce sync.Once
	done     chan struct{}
}

// NewAuditProcessor creates an AuditProcessor routing to the given backend
// ("kafka" or "clickhouse").
func NewAuditProcessor(
	pub drepo.AuditPublisher,
	store drepo.AuditStorage,
	metrics drepo.Metrics,
	log *logger.Logger,
	backend string,
	batchSz int,
	batchTO time.Duration,
) *AuditProcessor {
	if batchSz <= 0 {
		batchSz = 100
	}
	if batchTO <= 0 {
		batchTO = time.Second
	}
	return &AuditProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		log:     log,
		backend: backend,
		batchSz: batchSz,
		batchTO: batchTO,
		events:  make(chan *models.AdmissionEvent, 4*batchSz),
		done:    make(chan struct{}),
	}
}

// Record enqueues one event for asynchronous delivery.
func (p *AuditProcessor) Record(e *models.AdmissionEvent) {
	if e == nil {
		return
	}
	select {
	case p.events <- e:
	default:
		p.metrics.RecordError("audit_buffer_full")
	}
}

// Run drains the buffer, flushing when a batch is full or the timeout fires.
// Blocks until ctx is cancelled, then performs a final flush.
func (p *AuditProcessor) Run(ctx context.Context) {
	defer close(p.done)

	batch := make([]*models.AdmissionEvent, 0, p.batchSz)
	ticker := time.NewTicker(p.batchTO)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.flush(batch)
			return
		case e := <-p.events:
			batch = append(batch, e)
			if len(batch) >= p.batchSz {
				p.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				p.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

// Wait blocks until Run has returned.
func (p *AuditProcessor) Wait() {
	<-p.done
}

func (p *AuditProcessor) flush(batch []*models.AdmissionEvent) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	err := p.deliver(ctx, batch)
	if err != nil {
		p.metrics.RecordError("audit_flush")
		p.log.Error("audit flush failed",
			logger.String("backend", p.backend),
			logger.Int("events", len(batch)),
			logger.Error(err))
		return
	}
	p.metrics.RecordLatency("audit_flush", time.Since(start).Seconds())
}

func (p *AuditProcessor) deliver(ctx context.Context, batch []*models.AdmissionEvent) error {
	switch p.backend {
	case "kafka":
		return p.pub.PublishBatch(ctx, batch)
	case "clickhouse":
		return p.store.StoreBatch(ctx, batch)
	default:
		return fmt.Errorf("unknown backend: %s", p.backend)
	}
}

// Close releases backend resources.
func (p *AuditProcessor) Close() {
	p.stopOnce.Do(func() {
		if p.pub != nil {
			_ = p.pub.Close()
		}
		if p.store != nil {
			_ = p.store.Close()
		}
	})
}
