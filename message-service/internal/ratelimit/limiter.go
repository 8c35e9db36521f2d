// Package ratelimit throttles message posting per user.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultIdleTTL       = 10 * time.Minute
	defaultCleanupPeriod = time.Minute
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// Limiter is a per-key token-bucket pool. A key may spend up to events
// tokens at once and regains them evenly over window.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	limit rate.Limit
	burst int

	ttl           time.Duration
	cleanupPeriod time.Duration
	now           func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithIdleTTL sets how long an unused key is kept.
func WithIdleTTL(ttl time.Duration) Option {
	return func(l *Limiter) { l.ttl = ttl }
}

// New creates a limiter allowing events per window for each key.
func New(events int, window time.Duration, opts ...Option) *Limiter {
	if events <= 0 {
		events = 1
	}
	l := &Limiter{
		m:             make(map[string]*limiterEntry),
		limit:         rate.Every(window / time.Duration(events)),
		burst:         events,
		ttl:           defaultIdleTTL,
		cleanupPeriod: defaultCleanupPeriod,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.m[key]; ok {
		e.lastSeen = now
		return e.l
	}
	rl := rate.NewLimiter(l.limit, l.burst)
	l.m[key] = &limiterEntry{l: rl, lastSeen: now}
	return rl
}

// Allow spends one token for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	return l.get(key, now).AllowN(now, 1)
}

// Run evicts idle keys until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *Limiter) cleanup() {
	cutoff := l.now().Add(-l.ttl)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.m {
		if e.lastSeen.Before(cutoff) {
			delete(l.m, k)
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
