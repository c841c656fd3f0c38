// Package ratelimit counts requests in a sliding window and rejects callers
// that exceed a limit. Wizard routes that accept back-office references are
// limited per client IP so references cannot be guessed.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is set in whole seconds when Allowed is false.
	RetryAfter int
}

// Store counts requests per key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
	Reset(ctx context.Context, key string) error
}

// Policy is a limit over a window for one class of route.
type Policy struct {
	Class  string
	Limit  int
	Window time.Duration
}

func retryAfter(now, resetAt time.Time) int {
	secs := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
