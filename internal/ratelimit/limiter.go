// Package ratelimit implements the Dispatcher's global outbound limiter:
// at most 10 requests per rolling 1-second window, with an explicit
// 100ms minimum spacing between any two consecutive requests, enforced
// even below the window cap (spec.md §4.8). State is owned exclusively
// by the Dispatcher (spec.md §5) — one Limiter per process.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates outbound ERP requests.
type Limiter struct {
	bucket     *rate.Limiter
	minSpacing time.Duration

	mu   sync.Mutex
	last time.Time
}

// New builds a Limiter: a token bucket refilling at requestsPerSecond
// with a burst equal to the same figure (so a full window of
// back-to-back requests is exactly the spec's 10/s cap), plus the
// explicit minimum-spacing gate.
func New(requestsPerSecond int, minSpacing time.Duration) *Limiter {
	return &Limiter{
		bucket:     rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		minSpacing: minSpacing,
	}
}

// Wait blocks until both the rolling-window budget and the minimum
// spacing requirement permit the next request.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	sinceLast := time.Since(l.last)
	var sleepFor time.Duration
	if sinceLast < l.minSpacing {
		sleepFor = l.minSpacing - sinceLast
	}
	l.last = time.Now().Add(sleepFor)
	l.mu.Unlock()

	if sleepFor <= 0 {
		return nil
	}

	timer := time.NewTimer(sleepFor)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
