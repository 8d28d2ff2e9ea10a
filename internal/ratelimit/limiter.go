// Package ratelimit bounds how many short links one identity may create in a
// sliding window. Counting happens in the durable store, so every instance
// sharing the store sees the same numbers.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const (
	DefaultMax    = 10
	DefaultWindow = time.Hour
)

// CreationCounter counts the short links created by an identity since a point in time.
type CreationCounter interface {
	CountCreatedSince(ctx context.Context, creatorIP string, since time.Time) (int64, error)
}

// Limiter enforces a maximum number of creations per identity and window.
type Limiter struct {
	counter CreationCounter
	max     int64
	window  time.Duration
}

// New returns a Limiter. Non-positive limit or window fall back to the defaults.
func New(counter CreationCounter, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}

	return &Limiter{
		counter: counter,
		max:     int64(limit),
		window:  window,
	}
}

// Count returns the number of creations by identity with createdAt >= windowStart.
func (l *Limiter) Count(ctx context.Context, identity string, windowStart time.Time) (int64, error) {
	const op = "ratelimit.Limiter.Count"

	n, err := l.counter.CountCreatedSince(ctx, identity, windowStart)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to count recent creations: %w", op, err)
	}

	return n, nil
}

// Check returns entity.ErrRateLimitExceeded when identity has reached the
// maximum inside the window ending at now. The window slides with every call.
func (l *Limiter) Check(ctx context.Context, identity string, now time.Time) error {
	const op = "ratelimit.Limiter.Check"

	n, err := l.Count(ctx, identity, now.Add(-l.window))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n >= l.max {
		return fmt.Errorf("%s: %d creations in the last %s: %w", op, n, l.window, entity.ErrRateLimitExceeded)
	}

	return nil
}
