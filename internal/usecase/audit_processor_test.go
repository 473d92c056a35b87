package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGate/internal/domain/models"
	"TradeGate/pkg/logger"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]*models.AdmissionEvent
}

func (f *fakePublisher) Publish(_ context.Context, e *models.AdmissionEvent) error {
	return f.PublishBatch(context.Background(), []*models.AdmissionEvent{e})
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []*models.AdmissionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := make([]*models.AdmissionEvent, len(events))
	copy(batch, events)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

type noopMetrics struct{}

func (noopMetrics) RecordAdmission(string)        {}
func (noopMetrics) RecordRateLimited(string)      {}
func (noopMetrics) RecordSecurityHit(string)      {}
func (noopMetrics) RecordError(string)            {}
func (noopMetrics) RecordLatency(string, float64) {}

func newTestProcessor(t *testing.T, pub *fakePublisher, batchSz int, batchTO time.Duration) *AuditProcessor {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return NewAuditProcessor(pub, nil, noopMetrics{}, log, "kafka", batchSz, batchTO)
}

func event(client string) *models.AdmissionEvent {
	return &models.AdmissionEvent{
		Time:    time.Now(),
		Client:  client,
		Method:  "POST",
		Path:    "/api/trade/place",
		Outcome: models.OutcomeRateLimited,
	}
}

func TestFlushOnBatchSize(t *testing.T) {
	pub := &fakePublisher{}
	p := newTestProcessor(t, pub, 3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	for i := 0; i < 3; i++ {
		p.Record(event("1.2.3.4"))
	}

	assert.Eventually(t, func() bool { return pub.total() == 3 },
		time.Second, 10*time.Millisecond)

	cancel()
	p.Wait()
}

func TestFlushOnTimeout(t *testing.T) {
	pub := &fakePublisher{}
	p := newTestProcessor(t, pub, 100, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	p.Record(event("a"))
	p.Record(event("b"))

	assert.Eventually(t, func() bool { return pub.total() == 2 },
		time.Second, 10*time.Millisecond)

	cancel()
	p.Wait()
}

func TestFinalFlushOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	p := newTestProcessor(t, pub, 100, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	p.Record(event("c"))
	// Give Run a moment to move the event into the pending batch.
	assert.Eventually(t, func() bool { return len(p.events) == 0 },
		time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 1, pub.total())
}

func TestRecordNeverBlocks(t *testing.T) {
	pub := &fakePublisher{}
	p := newTestProcessor(t, pub, 2, time.Hour)

	// No Run goroutine: the buffer fills and Record must drop, not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			p.Record(event("d"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked with a full buffer")
	}
}

func TestUnknownBackendCountsError(t *testing.T) {
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	p := NewAuditProcessor(nil, nil, noopMetrics{}, log, "postgres", 1, time.Hour)

	assert.Error(t, p.deliver(context.Background(), []*models.AdmissionEvent{event("e")}))
}
