// Package ratelimit provides a keyed token-bucket limiter. Each key (a client
// IP for the auth endpoints) gets an independent bucket; buckets idle for
// longer than the eviction window are dropped by a background sweep.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const defaultIdleTTL = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter manages per-key rate limiting.
type KeyedRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	every   time.Duration
	clock   clockwork.Clock

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// Option configures a KeyedRateLimiter.
type Option func(*KeyedRateLimiter)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(k *KeyedRateLimiter) { k.clock = c }
}

// WithIdleTTL sets how long an unused key is kept.
func WithIdleTTL(d time.Duration) Option {
	return func(k *KeyedRateLimiter) { k.idleTTL = d }
}

// WithSweepInterval sets how often idle keys are evicted. Defaults to the idle TTL.
func WithSweepInterval(d time.Duration) Option {
	return func(k *KeyedRateLimiter) { k.every = d }
}

// New creates a limiter allowing rps requests per second with the given burst
// per key, and starts the eviction sweep. Call Stop to end it.
func New(rps float64, burst int, opts ...Option) *KeyedRateLimiter {
	k := &KeyedRateLimiter{
		entries: make(map[string]*entry),
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: defaultIdleTTL,
		clock:   clockwork.NewRealClock(),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.every <= 0 {
		k.every = k.idleTTL
	}

	go k.sweep()
	return k
}

// Allow reports whether a request for key may proceed now.
func (k *KeyedRateLimiter) Allow(key string) bool {
	return k.get(key).AllowN(k.clock.Now(), 1)
}

// Wait blocks until a request for key is allowed or ctx is done.
func (k *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return k.get(key).Wait(ctx)
}

// Len returns the number of tracked keys.
func (k *KeyedRateLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *KeyedRateLimiter) get(key string) *rate.Limiter {
	now := k.clock.Now()

	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Evict removes keys idle for longer than the TTL and returns how many were dropped.
func (k *KeyedRateLimiter) Evict() int {
	cutoff := k.clock.Now().Add(-k.idleTTL)

	k.mu.Lock()
	defer k.mu.Unlock()

	n := 0
	for key, e := range k.entries {
		if e.lastSeen.Before(cutoff) {
			delete(k.entries, key)
			n++
		}
	}
	return n
}

// Stop ends the eviction sweep and waits for it to exit.
func (k *KeyedRateLimiter) Stop() {
	k.stopOnce.Do(func() { close(k.done) })
	<-k.stopped
}

func (k *KeyedRateLimiter) sweep() {
	defer close(k.stopped)

	ticker := k.clock.NewTicker(k.every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			k.Evict()
		case <-k.done:
			return
		}
	}
}
