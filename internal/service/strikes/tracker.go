// Package strikes tracks repeat admission offenders and applies temporary
// bans once a client accumulates enough denials inside the strike window.
package strikes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TradeGate/pkg/cache"
	"TradeGate/pkg/logger"
)

// Tracker counts admission denials per client in a cache backend. When a
// client reaches the threshold within the window it is banned for the
// configured duration. Safe for concurrent use; all state lives in the cache.
type Tracker struct {
	cache       cache.Service
	log         *logger.Logger
	threshold   int64
	window      time.Duration
	banDuration time.Duration
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithThreshold sets how many strikes inside the window trigger a ban.
func WithThreshold(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.threshold = int64(n)
		}
	}
}

// WithWindow sets the strike accumulation window.
func WithWindow(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.window = d
		}
	}
}

// WithBanDuration sets how long a ban lasts.
func WithBanDuration(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.banDuration = d
		}
	}
}

// NewTracker builds a Tracker over the given cache backend.
func NewTracker(c cache.Service, log *logger.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		cache:       c,
		log:         log,
		threshold:   5,
		window:      10 * time.Minute,
		banDuration: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordStrike registers one denial for the client and returns true when the
// client has just crossed the ban threshold. Cache failures degrade to
// counting nothing; admission must not fail because the strike store is down.
func (t *Tracker) RecordStrike(ctx context.Context, client string) bool {
	count, err := t.cache.Increment(ctx, strikeKey(client))
	if err != nil {
		t.log.Warn("strike count failed",
			logger.String("client", client), logger.Error(err))
		return false
	}
	if count == 1 {
		if _, err := t.cache.Expire(ctx, strikeKey(client), t.window); err != nil {
			t.log.Warn("strike expiry failed",
				logger.String("client", client), logger.Error(err))
		}
	}
	if count < t.threshold {
		return false
	}

	if err := t.cache.Set(ctx, banKey(client), "banned", t.banDuration); err != nil {
		t.log.Warn("ban write failed",
			logger.String("client", client), logger.Error(err))
		return false
	}
	t.log.Info("client banned",
		logger.String("client", client),
		logger.Int64("strikes", count),
		logger.Duration("duration", t.banDuration))
	return true
}

// IsBanned reports whether the client is currently banned.
func (t *Tracker) IsBanned(ctx context.Context, client string) bool {
	var v string
	err := t.cache.Get(ctx, banKey(client), &v)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			t.log.Warn("ban lookup failed",
				logger.String("client", client), logger.Error(err))
		}
		return false
	}
	return true
}

// Clear removes strikes and any active ban for the client.
func (t *Tracker) Clear(ctx context.Context, client string) error {
	return t.cache.Delete(ctx, strikeKey(client), banKey(client))
}

func strikeKey(client string) string {
	return fmt.Sprintf("strikes:%s", client)
}

func banKey(client string) string {
	return fmt.Sprintf("ban:%s", client)
}
