package memory

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a fixed-window counter per client. A window starts with the
// first request and is reset lazily by the first request after it expires.
type RateLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]*fixedWindow
}

type fixedWindow struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return NewRateLimiterWithClock(limit, window, time.Now)
}

// NewRateLimiterWithClock is used by tests to move time forward.
func NewRateLimiterWithClock(limit int, window time.Duration, clock func() time.Time) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]*fixedWindow),
	}
}

func (l *RateLimiter) Allow(_ context.Context, clientID string) (bool, time.Duration, error) {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[clientID]
	if !ok || !now.Before(w.resetAt) {
		w = &fixedWindow{resetAt: now.Add(l.window)}
		l.windows[clientID] = w
		l.sweepLocked(now)
	}
	if w.count >= l.limit {
		return false, w.resetAt.Sub(now), nil
	}
	w.count++
	return true, 0, nil
}

// sweepLocked drops expired windows once the map grows.
func (l *RateLimiter) sweepLocked(now time.Time) {
	if len(l.windows) < 1024 {
		return
	}
	for id, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, id)
		}
	}
}
