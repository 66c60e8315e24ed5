// Package ratelimiter provides token bucket limiters keyed by caller.
package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long an unused per-key bucket is kept.
const DefaultIdleTTL = 10 * time.Minute

// RateLimiter keeps one token bucket per key (typically a principal id).
//
// Each key gets requestsPerSecond sustained and burst immediate tokens.
// Buckets for keys that have been idle longer than the idle TTL are
// dropped by Sweep, which Allow and Wait call opportunistically.
//
// Special cases:
//   - requestsPerSecond = 0: unlimited, every call is allowed
//   - burst = 0: defaults to requestsPerSecond
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	buckets   map[string]*bucket
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a keyed limiter.
//
// Example:
//
//	// 2 uploads/s per user, bursts of 10
//	limiter := New(2, 10)
//	if !limiter.Allow(principal.ID) { ... 429 ... }
func New(requestsPerSecond, burst uint) *RateLimiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond == 0 {
		limit = rate.Inf
	}
	if burst == 0 {
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limit:   limit,
		burst:   int(burst),
		buckets: make(map[string]*bucket),
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
	}
}

// Unlimited reports whether the limiter lets everything through.
func (r *RateLimiter) Unlimited() bool {
	return r.limit == rate.Inf
}

// SetIdleTTL changes how long idle buckets are retained.
func (r *RateLimiter) SetIdleTTL(ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idleTTL = ttl
}

func (r *RateLimiter) get(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= r.idleTTL {
		r.sweepLocked(now)
	}

	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Allow consumes one token for key, returning false when the bucket is
// empty. Never blocks.
func (r *RateLimiter) Allow(key string) bool {
	return r.AllowN(key, 1)
}

// AllowN consumes n tokens for key at once. Nothing is consumed when fewer
// than n are available.
func (r *RateLimiter) AllowN(key string, n uint) bool {
	if r.Unlimited() {
		return true
	}
	return r.get(key).AllowN(r.now(), int(n))
}

// Wait blocks until a token for key is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, key string) error {
	if r.Unlimited() {
		return ctx.Err()
	}
	return r.get(key).Wait(ctx)
}

// Tokens returns the tokens currently available to key. A key with no
// bucket yet has a full burst.
func (r *RateLimiter) Tokens(key string) float64 {
	r.mu.Lock()
	b, ok := r.buckets[key]
	r.mu.Unlock()
	if !ok {
		return float64(r.burst)
	}
	return b.limiter.TokensAt(r.now())
}

// Sweep drops buckets idle for longer than the idle TTL and returns how
// many were removed.
func (r *RateLimiter) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(r.now())
}

func (r *RateLimiter) sweepLocked(now time.Time) int {
	r.lastSweep = now
	removed := 0
	for key, b := range r.buckets {
		if now.Sub(b.lastSeen) > r.idleTTL {
			delete(r.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}
