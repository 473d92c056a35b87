package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for deterministic window tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestBurstLimit(t *testing.T) {
	clock := newFakeClock()
	l := New(
		WithBurst(3, time.Second),
		WithSustained(100, time.Minute),
		WithClock(clock.Now),
	)

	for i := 0; i < 3; i++ {
		d := l.Allow("1.2.3.4")
		require.True(t, d.Allowed, "request %d within burst limit", i+1)
	}

	d := l.Allow("1.2.3.4")
	require.False(t, d.Allowed)
	assert.Equal(t, 3, d.Limit)
	assert.Equal(t, "1 second", d.Window)
	assert.Equal(t, 1, d.RetryAfter)

	// Once the burst window slides past, requests are admitted again.
	clock.Advance(1100 * time.Millisecond)
	assert.True(t, l.Allow("1.2.3.4").Allowed)
}

func TestSustainedLimit(t *testing.T) {
	clock := newFakeClock()
	l := New(
		WithBurst(100, time.Second),
		WithSustained(5, time.Minute),
		WithClock(clock.Now),
	)

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow("c").Allowed)
		clock.Advance(2 * time.Second) // stay clear of the burst window
	}

	d := l.Allow("c")
	require.False(t, d.Allowed)
	assert.Equal(t, 5, d.Limit)
	assert.Equal(t, "1 minute", d.Window)
	// Oldest entry is 10s old: 60 - 10 = 50, plus the 1s safety margin.
	assert.Equal(t, 51, d.RetryAfter)
}

func TestDenialNotRecorded(t *testing.T) {
	clock := newFakeClock()
	l := New(
		WithBurst(2, time.Second),
		WithSustained(10, time.Minute),
		WithClock(clock.Now),
	)

	l.Allow("c")
	l.Allow("c")
	for i := 0; i < 5; i++ {
		require.False(t, l.Allow("c").Allowed)
	}

	s := l.Stats("c")
	assert.Equal(t, 2, s.BurstCount, "denied requests must not extend the burst log")
	assert.Equal(t, 2, s.SustainedCount, "denied requests must not extend the sustained log")
}

func TestRetryAfterDecreases(t *testing.T) {
	clock := newFakeClock()
	l := New(
		WithBurst(100, time.Second),
		WithSustained(3, time.Minute),
		WithClock(clock.Now),
	)

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("c").Allowed)
		clock.Advance(2 * time.Second)
	}

	prev := l.Allow("c").RetryAfter
	require.GreaterOrEqual(t, prev, 1)
	for i := 0; i < 10; i++ {
		clock.Advance(3 * time.Second)
		d := l.Allow("c")
		if d.Allowed {
			return // oldest entry aged out of the window
		}
		assert.Less(t, d.RetryAfter, prev, "retry_after must shrink as the window slides")
		assert.GreaterOrEqual(t, d.RetryAfter, 1)
		prev = d.RetryAfter
	}
}

func TestBurstCheckedBeforeSustained(t *testing.T) {
	clock := newFakeClock()
	l := New(
		WithBurst(2, time.Second),
		WithSustained(2, time.Minute),
		WithClock(clock.Now),
	)

	l.Allow("c")
	l.Allow("c")

	// Both windows are saturated; the burst verdict must be reported.
	d := l.Allow("c")
	require.False(t, d.Allowed)
	assert.Equal(t, "1 second", d.Window)
	assert.Equal(t, 1, d.RetryAfter)
}

func TestClientsIsolated(t *testing.T) {
	clock := newFakeClock()
	l := New(
		WithBurst(1, time.Second),
		WithSustained(10, time.Minute),
		WithClock(clock.Now),
	)

	require.True(t, l.Allow("a").Allowed)
	require.False(t, l.Allow("a").Allowed)
	require.True(t, l.Allow("b").Allowed, "another client must not be affected")
}

func TestStatsDoesNotAdmit(t *testing.T) {
	clock := newFakeClock()
	l := New(
		WithBurst(5, time.Second),
		WithSustained(10, time.Minute),
		WithClock(clock.Now),
	)

	l.Allow("c")
	for i := 0; i < 3; i++ {
		s := l.Stats("c")
		assert.Equal(t, 1, s.BurstCount)
		assert.Equal(t, 4, s.RemainingBurst)
		assert.Equal(t, 9, s.RemainingSustained)
	}
}

func TestSweepEvictsIdleClients(t *testing.T) {
	clock := newFakeClock()
	l := New(
		WithBurst(5, time.Second),
		WithSustained(10, time.Minute),
		WithClock(clock.Now),
	)

	l.Allow("idle")
	clock.Advance(2 * time.Minute)
	l.Allow("active")

	evicted := l.Sweep()
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, l.ClientCount())
}

func TestConcurrentAdmissionNeverOverAdmits(t *testing.T) {
	const burstLimit = 10
	l := New(
		WithBurst(burstLimit, time.Second),
		WithSustained(1000, time.Minute),
	)

	const callers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if l.Allow("shared").Allowed {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	// The whole run finishes well inside one burst window, so no more than
	// burstLimit requests may ever be admitted.
	assert.LessOrEqual(t, admitted, burstLimit)
	assert.Greater(t, admitted, 0)
}
