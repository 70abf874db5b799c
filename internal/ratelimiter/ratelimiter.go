package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles events per key (typically a client host) using one
// token bucket per key.
//
// A zero rate disables limiting: Allow always returns true.
//
// Idle buckets are evicted once they have been unused for longer than the
// configured idle duration, so the map does not grow with every host that
// ever connected.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu       sync.Mutex
	buckets  map[string]*bucket
	lastScan time.Time
	now      func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a RateLimiter allowing requestsPerSecond sustained events per key
// with bursts of up to burst events.
//
// Special cases:
//   - requestsPerSecond = 0: no rate limiting
//   - burst = 0: burst defaults to requestsPerSecond
func New(requestsPerSecond, burst uint) *RateLimiter {
	if burst == 0 {
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limit:   rate.Limit(requestsPerSecond),
		burst:   int(burst),
		idle:    10 * time.Minute,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Enabled reports whether the limiter enforces anything.
func (r *RateLimiter) Enabled() bool {
	return r != nil && r.limit > 0
}

// Allow consumes one token from key's bucket and reports whether it was available.
func (r *RateLimiter) Allow(key string) bool {
	if !r.Enabled() {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.evictIdle(now)

	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[key] = b
	}
	b.lastSeen = now

	return b.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}

// evictIdle drops buckets unused for longer than r.idle. Caller holds r.mu.
func (r *RateLimiter) evictIdle(now time.Time) {
	if now.Sub(r.lastScan) < r.idle {
		return
	}
	r.lastScan = now

	for key, b := range r.buckets {
		if now.Sub(b.lastSeen) > r.idle {
			delete(r.buckets, key)
		}
	}
}
