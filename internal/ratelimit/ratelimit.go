// Package ratelimit provides a per-tenant token bucket. Buckets refill
// proportionally to elapsed wall-clock time on each check; there is no
// background timer.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a process-wide, per-tenant token bucket. Construct one in
// main and inject it; each tenant's bucket is independent so updates are
// a read-modify-write on a single map entry under one lock.
type Limiter struct {
	capacity float64
	refill   float64 // tokens per second

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// New creates a limiter with the given bucket capacity and refill rate
// (tokens per second).
func New(capacity int, refillPerSecond float64) *Limiter {
	if capacity <= 0 {
		capacity = 1
	}
	if refillPerSecond <= 0 {
		refillPerSecond = 1
	}
	return &Limiter{
		capacity: float64(capacity),
		refill:   refillPerSecond,
		buckets:  make(map[string]*bucket),
		now:      time.Now,
	}
}

// Allow consumes one token from the tenant's bucket, reporting whether
// the request may proceed. A new tenant starts with a full bucket.
func (l *Limiter) Allow(tenantID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[tenantID]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.buckets[tenantID] = b
	} else {
		elapsed := now.Sub(b.last).Seconds()
		if elapsed > 0 {
			b.tokens += elapsed * l.refill
			if b.tokens > l.capacity {
				b.tokens = l.capacity
			}
			b.last = now
		}
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
