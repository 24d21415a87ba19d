// Package ratelimit implements the keyed token-bucket limiter from
// gateway spec §4.3. Each bucket is backed by golang.org/x/time/rate,
// whose Limiter already performs exactly the "lazy refill on access"
// algorithm spec.md describes by hand: a *rate.Limiter tracks tokens
// lazily, is safe for concurrent use, and exposes Tokens() for the
// "remaining" telemetry field the rate_limit layer attaches to every
// decision.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Telemetry is attached to CallContext.Meta["rate_limit"] on every
// checked call, per the rate_limit_layer contract in §4.2.
type Telemetry struct {
	Limit     int `json:"limit"`
	Burst     int `json:"burst"`
	Remaining int `json:"remaining"`
}

// bucketEntry pairs a rate.Limiter with the capacity/limit it was built
// with, since *rate.Limiter itself doesn't remember the original
// limit_per_minute input once converted to a per-second rate.
type bucketEntry struct {
	limiter        *rate.Limiter
	limitPerMinute int
	capacity       int
}

// Limiter is a keyed map of token buckets. The zero value is ready to
// use. Bucket entries are never evicted (SPEC_FULL.md Open Question 3);
// long-running hosts with unbounded key cardinality should wrap Limiter
// with their own TTL/LRU layer, which this package deliberately does not
// provide.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucketEntry
}

// NewLimiter constructs an empty Limiter.
func NewLimiter() *Limiter {
	return &Limiter{buckets: make(map[string]*bucketEntry)}
}

// Allow consumes one token from the bucket identified by key, creating a
// full bucket on first sight of that key. capacity is
// max(1, burst if burst>0 else limitPerMinute); refill rate is
// max(0.1, limitPerMinute/60) tokens/sec, exactly per spec §4.3.
func (l *Limiter) Allow(key string, limitPerMinute, burst int) (bool, Telemetry) {
	entry := l.entryFor(key, limitPerMinute, burst)

	ok := entry.limiter.AllowN(time.Now(), 1)
	remaining := int(entry.limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}

	return ok, Telemetry{
		Limit:     limitPerMinute,
		Burst:     entry.capacity,
		Remaining: remaining,
	}
}

// entryFor returns the existing bucket for key, or creates one. Reads of
// an already-created bucket take only l.mu's read lock, so concurrent
// callers hitting distinct (or already-created) keys don't serialize on
// each other; *rate.Limiter then serializes its own per-bucket updates
// internally, which is the "contention is unavoidable and semantically
// required" case spec §5 calls out for same-key concurrent callers.
func (l *Limiter) entryFor(key string, limitPerMinute, burst int) *bucketEntry {
	l.mu.RLock()
	e, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.buckets[key]; ok {
		return e
	}
	if l.buckets == nil {
		l.buckets = make(map[string]*bucketEntry)
	}

	capacity := burst
	if capacity <= 0 {
		capacity = limitPerMinute
	}
	if capacity < 1 {
		capacity = 1
	}

	refillPerSec := float64(limitPerMinute) / 60.0
	if refillPerSec < 0.1 {
		refillPerSec = 0.1
	}

	e = &bucketEntry{
		limiter:        rate.NewLimiter(rate.Limit(refillPerSec), capacity),
		limitPerMinute: limitPerMinute,
		capacity:       capacity,
	}
	l.buckets[key] = e
	return e
}
