// Package ratelimit implements the per-kind warning limiter named in
// spec.md §7 ("Log at warn (rate-limited 1/s or 1/5s)"): at most one event
// per kind per fixed window. It holds no logger; internal/xlog's Warnf asks
// it before logging, so every component keeps using internal/xlog's
// structured fields.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter suppresses repeated warnings for the same kind key within a window.
type Limiter struct {
	window time.Duration
	mu     sync.Mutex
	last   map[string]time.Time
}

// New returns a Limiter that allows at most one event per kind per window.
func New(window time.Duration) *Limiter {
	return &Limiter{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// Allow reports whether an event of the given kind may fire now, and records
// that it did. Kinds are independent: exhausting one allocator's pool never
// suppresses warnings for another (spec.md SUPPLEMENTED FEATURES, §3).
func (l *Limiter) Allow(kind string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.last[kind]; ok && now.Sub(t) < l.window {
		return false
	}
	l.last[kind] = now
	return true
}
