package ratelimit

import (
	"sync"
	"time"
)

// Config stores TokenBucketLimiter settings.
type Config struct {
	Rate       float64       // tokens per second per key
	Burst      int           // bucket capacity
	TTL        time.Duration // drop buckets idle longer than this (0 keeps them)
	MaxBuckets int           // cap on distinct keys (0 is unlimited)
}

// TokenBucketLimiter keeps one token bucket per caller key. A new key
// starts with a full bucket; once MaxBuckets keys exist, unknown keys
// are rejected outright.
type TokenBucketLimiter struct {
	conf        Config
	clock       Clock
	mu          sync.RWMutex
	buckets     map[string]*bucket
	lastCleanup time.Time
}

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	refilled time.Time
	lastSeen time.Time
}

// NewTokenBucketLimiter creates a limiter with the given config and clock.
// A nil clock falls back to wall time.
func NewTokenBucketLimiter(clock Clock, conf Config) *TokenBucketLimiter {
	if clock == nil {
		clock = RealClock{}
	}
	if conf.Rate <= 0 {
		conf.Rate = 1
	}
	if conf.Burst <= 0 {
		conf.Burst = 1
	}
	if conf.MaxBuckets < 0 {
		conf.MaxBuckets = 0
	}
	return &TokenBucketLimiter{
		conf:    conf,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether key may proceed right now.
func (l *TokenBucketLimiter) Allow(key string) bool {
	now := l.clock.Now()
	l.maybeCleanup(now)

	b := l.bucketFor(key, now)
	if b == nil {
		return false
	}
	return b.take(now, l.conf.Rate, float64(l.conf.Burst))
}

func (l *TokenBucketLimiter) bucketFor(key string, now time.Time) *bucket {
	l.mu.RLock()
	b := l.buckets[key]
	l.mu.RUnlock()
	if b != nil {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if b = l.buckets[key]; b != nil {
		return b
	}
	if l.conf.MaxBuckets > 0 && len(l.buckets) >= l.conf.MaxBuckets {
		return nil
	}

	b = &bucket{
		tokens:   float64(l.conf.Burst),
		refilled: now,
		lastSeen: now,
	}
	l.buckets[key] = b
	return b
}

func (b *bucket) take(now time.Time, rate, burst float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if dt := now.Sub(b.refilled); dt > 0 {
		b.tokens += dt.Seconds() * rate
		if b.tokens > burst {
			b.tokens = burst
		}
		b.refilled = now
	}
	b.lastSeen = now

	if b.tokens < 1.0 {
		return false
	}
	b.tokens -= 1.0
	return true
}

// maybeCleanup drops idle buckets. Runs at most once per cleanup interval
// so a hot path never scans the whole map on every request.
func (l *TokenBucketLimiter) maybeCleanup(now time.Time) {
	if l.conf.TTL <= 0 {
		return
	}

	interval := time.Minute
	if half := l.conf.TTL / 2; half > interval {
		interval = half
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.lastCleanup.IsZero() && now.Sub(l.lastCleanup) < interval {
		return
	}
	l.lastCleanup = now

	for k, b := range l.buckets {
		b.mu.Lock()
		seen := b.lastSeen
		b.mu.Unlock()

		if now.Sub(seen) > l.conf.TTL {
			delete(l.buckets, k)
		}
	}
}
