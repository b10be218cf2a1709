// Package ratelimit bounds requests per identity per UTC calendar day.
//
// The counter is a read-then-write on the key-value store, which has no
// atomic increment: concurrent requests from one identity that read the
// same count both pass and both write count+1, so the stored count can
// trail the true number of admitted requests by up to (concurrency - 1).
// Availability is preferred over exact quota enforcement.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/creastat/chatcore/kv"
)

const (
	// collectionName is the logical table counters are stored in.
	collectionName = "ratelimit"

	// DefaultDailyCap is the default number of requests per identity per day.
	DefaultDailyCap = 100
	// CounterTTL is the expiry applied on every increment.
	CounterTTL = 24 * time.Hour

	dayLayout = "2006-01-02"
)

// Result is the outcome of a rate-limit check.
type Result struct {
	Allowed   bool
	Remaining int
	// ResetAt is the next UTC midnight, when a new counter starts.
	ResetAt time.Time
}

// Limiter enforces the daily cap.
type Limiter struct {
	counters *kv.Collection
	dailyCap int
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithDailyCap sets the number of requests allowed per identity per day.
func WithDailyCap(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.dailyCap = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a Limiter over store.
func New(store kv.Store, opts ...Option) *Limiter {
	l := &Limiter{
		counters: kv.NewCollection(store, collectionName),
		dailyCap: DefaultDailyCap,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DailyCap returns the configured cap.
func (l *Limiter) DailyCap() int { return l.dailyCap }

// Check admits or rejects one request for identity. An admitted request
// is counted immediately; a rejected one is not written at all.
func (l *Limiter) Check(ctx context.Context, identity string) (Result, error) {
	now := l.now().UTC()
	id := identity + ":" + now.Format(dayLayout)
	reset := NextReset(now)

	raw, found, err := l.counters.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read rate counter: %w", err)
	}
	count := 0
	if found {
		// An unparsable counter restarts from zero rather than locking the caller out.
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			count = n
		}
	}

	if count >= l.dailyCap {
		return Result{Allowed: false, Remaining: 0, ResetAt: reset}, nil
	}

	if err := l.counters.Put(ctx, id, strconv.Itoa(count+1), CounterTTL); err != nil {
		return Result{}, fmt.Errorf("failed to write rate counter: %w", err)
	}
	return Result{Allowed: true, Remaining: l.dailyCap - count - 1, ResetAt: reset}, nil
}

// NextReset returns the UTC midnight following t.
func NextReset(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
