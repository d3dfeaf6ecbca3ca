package ratelimit

import (
	"sync"
	"time"
)

// idleEvictAfter bounds the bucket map: keys carry client IPs, so buckets
// that have not been touched for this long are dropped on the next insert.
const idleEvictAfter = 10 * time.Minute

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a keyed token bucket. Each key gets its own bucket sized on
// first use; refill happens lazily on access.
type Limiter struct {
	mu sync.Mutex
	m  map[string]*bucket
}

func New() *Limiter { return &Limiter{m: make(map[string]*bucket)} }

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		l.evictIdle(now)
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// evictIdle removes buckets idle past the threshold. Caller holds the lock.
func (l *Limiter) evictIdle(now time.Time) {
	for k, b := range l.m {
		if now.Sub(b.last) > idleEvictAfter {
			delete(l.m, k)
		}
	}
}
