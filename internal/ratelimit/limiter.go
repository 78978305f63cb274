// Package ratelimit throttles API clients with a sliding window, kept in
// Redis when available and in process memory otherwise.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"convocoach/internal/logging"
)

// Limit is the number of requests allowed per window. Burst requests are
// admitted above Requests but never reported as remaining.
type Limit struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// Validate checks the limit
func (l Limit) Validate() error {
	if l.Requests <= 0 {
		return errors.New("rate limit requests must be positive")
	}
	if l.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if l.Burst < 0 {
		return errors.New("rate limit burst cannot be negative")
	}
	return nil
}

// Decision is the outcome of one check
type Decision struct {
	Allowed    bool
	Count      int
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Limiter admits or rejects a request for a client key
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// decide applies the limit to the number of requests already in the window
func decide(l Limit, inWindow int, oldest, now time.Time) Decision {
	d := Decision{Limit: l.Requests, Count: inWindow}
	if inWindow < l.Requests+l.Burst {
		d.Allowed = true
		d.Count++
	}
	if d.Remaining = l.Requests - d.Count; d.Remaining < 0 {
		d.Remaining = 0
	}

	if oldest.IsZero() {
		oldest = now
	}
	d.ResetAt = oldest.Add(l.Window)
	if !d.Allowed {
		if d.RetryAfter = d.ResetAt.Sub(now); d.RetryAfter < 0 {
			d.RetryAfter = 0
		}
	}
	return d
}

// Fallback consults primary and switches to secondary for any call the
// primary cannot answer
type Fallback struct {
	primary   Limiter
	secondary Limiter
	logger    logging.Logger
}

// NewFallback creates a limiter that degrades from primary to secondary
func NewFallback(primary, secondary Limiter, logger logging.Logger) *Fallback {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Fallback{primary: primary, secondary: secondary, logger: logger.WithComponent("ratelimit")}
}

// Allow implements Limiter
func (f *Fallback) Allow(ctx context.Context, key string) (Decision, error) {
	d, err := f.primary.Allow(ctx, key)
	if err == nil {
		return d, nil
	}
	f.logger.WarnContext(ctx, "rate limiter unavailable, using local window", "error", err)
	return f.secondary.Allow(ctx, key)
}
