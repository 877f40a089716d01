// Package ratelimit implements the process-local attempt counter guarding
// authentication endpoints from brute force.
//
// Counters live in a lock-striped in-memory map keyed by client
// identifier. The first attempt in a window sets a reset deadline;
// attempts past the maximum are rejected until the deadline passes. This
// is deliberately a single-process structure; multi-instance deployments
// need a shared atomically-incrementable counter store instead.
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

const stripeCount = 32

type window struct {
	count   int
	resetAt time.Time
}

type stripe struct {
	mu      sync.Mutex
	windows map[string]*window
}

// Limiter counts attempts per client key within a fixed window.
type Limiter struct {
	stripes [stripeCount]*stripe
	now     func() time.Time
}

// NewLimiter creates a Limiter.
func NewLimiter() *Limiter {
	l := &Limiter{now: time.Now}
	for i := range l.stripes {
		l.stripes[i] = &stripe{windows: make(map[string]*window)}
	}
	return l
}

// WithClock overrides the limiter clock for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) stripeFor(key string) *stripe {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.stripes[h.Sum32()%stripeCount]
}

// Allow records an attempt for key and reports whether it is within the
// limit. When rejected, retryAfter is the time remaining until the window
// resets.
func (l *Limiter) Allow(key string, maxAttempts int, windowSize time.Duration) (allowed bool, retryAfter time.Duration) {
	now := l.now()
	s := l.stripeFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		s.windows[key] = &window{count: 1, resetAt: now.Add(windowSize)}
		return true, 0
	}

	if w.count >= maxAttempts {
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, 0
}

// Reset clears the window for a key. Used after a successful
// authentication so legitimate users do not inherit attacker windows.
func (l *Limiter) Reset(key string) {
	s := l.stripeFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
}

// Sweep drops expired windows. Called periodically to bound memory.
func (l *Limiter) Sweep() {
	now := l.now()
	for _, s := range l.stripes {
		s.mu.Lock()
		for key, w := range s.windows {
			if !now.Before(w.resetAt) {
				delete(s.windows, key)
			}
		}
		s.mu.Unlock()
	}
}
