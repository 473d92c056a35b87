package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Decision is the admission outcome for one request.
type Decision struct {
	Allowed    bool
	Limit      int
	Window     string
	RetryAfter int // seconds; only meaningful on denial
}

// Stats is a read-only snapshot of a client's standing, used for advisory
// response headers.
type Stats struct {
	BurstCount         int
	SustainedCount     int
	BurstLimit         int
	SustainedLimit     int
	RemainingBurst     int
	RemainingSustained int
	SustainedWindow    string
}

// clientLog holds one client's admitted-request timestamps for both windows.
// All fields are guarded by mu; the read-prune-decide-append sequence for an
// admission check happens entirely under it.
type clientLog struct {
	mu        sync.Mutex
	burst     []time.Time
	sustained []time.Time
	lastSeen  time.Time
}

// Limiter admits or rejects requests per client under two simultaneously
// enforced sliding windows: a burst window and a sustained window. Denied
// requests are never recorded, so per-client memory is bounded by the two
// limits at steady state. Idle clients are evicted by the sweeper.
type Limiter struct {
	burstLimit      int
	burstWindow     time.Duration
	sustainedLimit  int
	sustainedWindow time.Duration
	sweepInterval   time.Duration

	now func() time.Time

	mu      sync.Mutex // guards clients map only
	clients map[string]*clientLog
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithBurst sets the burst window limit and width.
func WithBurst(limit int, window time.Duration) Option {
	return func(l *Limiter) {
		l.burstLimit = limit
		l.burstWindow = window
	}
}

// WithSustained sets the sustained window limit and width.
func WithSustained(limit int, window time.Duration) Option {
	return func(l *Limiter) {
		l.sustainedLimit = limit
		l.sustainedWindow = window
	}
}

// WithSweepInterval sets how often idle client logs are evicted.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Limiter) {
		l.sweepInterval = d
	}
}

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter with the default 10 req/1s burst and 60 req/60s
// sustained windows.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		burstLimit:      10,
		burstWindow:     time.Second,
		sustainedLimit:  60,
		sustainedWindow: time.Minute,
		sweepInterval:   5 * time.Minute,
		now:             time.Now,
		clients:         make(map[string]*clientLog),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) log(client string) *clientLog {
	l.mu.Lock()
	cl, ok := l.clients[client]
	if !ok {
		cl = &clientLog{}
		l.clients[client] = cl
	}
	l.mu.Unlock()
	return cl
}

// prune drops entries older than the window width. Idempotent; no admission
// consequence on its own.
func prune(entries []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	i := 0
	for i < len(entries) && !entries[i].After(cutoff) {
		i++
	}
	return entries[i:]
}

// Allow runs the full read-prune-decide-append sequence for one request under
// the client's lock. The burst check is evaluated strictly before the
// sustained check, and a denied request never extends either log.
func (l *Limiter) Allow(client string) Decision {
	cl := l.log(client)

	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := l.now()
	cl.burst = prune(cl.burst, now, l.burstWindow)
	cl.sustained = prune(cl.sustained, now, l.sustainedWindow)
	cl.lastSeen = now

	if len(cl.burst) >= l.burstLimit {
		return Decision{
			Allowed:    false,
			Limit:      l.burstLimit,
			Window:     windowLabel(l.burstWindow),
			RetryAfter: int(l.burstWindow.Seconds()),
		}
	}

	if len(cl.sustained) >= l.sustainedLimit {
		oldest := cl.sustained[0]
		retry := int(l.sustainedWindow.Seconds()-now.Sub(oldest).Seconds()) + 1
		if retry < 1 {
			retry = 1
		}
		return Decision{
			Allowed:    false,
			Limit:      l.sustainedLimit,
			Window:     windowLabel(l.sustainedWindow),
			RetryAfter: retry,
		}
	}

	cl.burst = append(cl.burst, now)
	cl.sustained = append(cl.sustained, now)

	return Decision{
		Allowed: true,
		Limit:   l.sustainedLimit,
		Window:  windowLabel(l.sustainedWindow),
	}
}

// Stats returns the client's standing after pruning. Pruning aside, it does
// not mutate the logs.
func (l *Limiter) Stats(client string) Stats {
	cl := l.log(client)

	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := l.now()
	cl.burst = prune(cl.burst, now, l.burstWindow)
	cl.sustained = prune(cl.sustained, now, l.sustainedWindow)

	s := Stats{
		BurstCount:      len(cl.burst),
		SustainedCount:  len(cl.sustained),
		BurstLimit:      l.burstLimit,
		SustainedLimit:  l.sustainedLimit,
		SustainedWindow: windowLabel(l.sustainedWindow),
	}
	s.RemainingBurst = l.burstLimit - s.BurstCount
	if s.RemainingBurst < 0 {
		s.RemainingBurst = 0
	}
	s.RemainingSustained = l.sustainedLimit - s.SustainedCount
	if s.RemainingSustained < 0 {
		s.RemainingSustained = 0
	}
	return s
}

// Sweep evicts clients that have been idle for longer than the sustained
// window. Their logs are already empty after pruning; this frees the map
// entry itself so long-lived deployments do not accumulate one entry-set per
// address ever seen.
func (l *Limiter) Sweep() int {
	now := l.now()
	evicted := 0

	l.mu.Lock()
	defer l.mu.Unlock()
	for client, cl := range l.clients {
		cl.mu.Lock()
		idle := now.Sub(cl.lastSeen) > l.sustainedWindow
		cl.mu.Unlock()
		if idle {
			delete(l.clients, client)
			evicted++
		}
	}
	return evicted
}

// Run sweeps periodically until ctx is canceled.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// ClientCount reports how many clients currently have a log entry.
func (l *Limiter) ClientCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func windowLabel(d time.Duration) string {
	secs := int(d.Seconds())
	if secs == 1 {
		return "1 second"
	}
	if secs%60 == 0 {
		mins := secs / 60
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
	return fmt.Sprintf("%d seconds", secs)
}
