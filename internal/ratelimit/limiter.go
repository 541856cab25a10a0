// Package ratelimit throttles mutations per client. Each key gets a fixed
// window: limit requests, then nothing until the window has passed.
package ratelimit

import (
	"sync"
	"time"

	"grimm.is/wanboard/internal/clock"
)

// Limiter manages rate limiting for multiple keys.
type Limiter struct {
	limit  int
	window time.Duration
	clock  clock.Clock

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   int
	lastFill time.Time
}

// NewLimiter allows limit requests per key in every window.
func NewLimiter(limit int, window time.Duration, clk clock.Clock) *Limiter {
	if clk == nil {
		clk = &clock.RealClock{}
	}
	return &Limiter{
		limit:   limit,
		window:  window,
		clock:   clk,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes a token for key. When it returns false, retryAfter is the time
// left until the window refills.
func (l *Limiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	b, exists := l.buckets[key]
	if !exists || now.Sub(b.lastFill) >= l.window {
		b = &bucket{tokens: l.limit, lastFill: now}
		l.buckets[key] = b
	}

	if b.tokens <= 0 {
		return false, b.lastFill.Add(l.window).Sub(now)
	}
	b.tokens--
	return true, 0
}

// Reset clears the window for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// CleanupExpired drops buckets whose window ended more than maxAge ago.
func (l *Limiter) CleanupExpired(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastFill) > l.window+maxAge {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
