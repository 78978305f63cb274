// Package retry re-runs operations that failed transiently, backing off
// exponentially between attempts. Only errors the service classifies as
// retryable are retried.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"convocoach/internal/errors"
)

// Policy describes how often and how patiently to retry
type Policy struct {
	// MaxAttempts counts the first call; 0 retries until the context ends
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter randomizes each delay by up to this fraction (0-1)
	Jitter float64
	// RetryIf decides whether a failure is worth another attempt.
	// Defaults to errors.IsRetryable.
	RetryIf func(error) bool
	// OnRetry is called before sleeping with the attempt that just failed
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns three attempts starting at 100ms
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		Jitter:       0.1,
	}
}

// Operation is one attempt
type Operation func(ctx context.Context) error

// Result reports how a retried operation ended
type Result struct {
	Attempts int
	Err      error
}

// Retrier runs operations under a Policy
type Retrier struct {
	policy Policy
}

// New creates a retrier, filling unset policy fields from DefaultPolicy
func New(p Policy) *Retrier {
	def := DefaultPolicy()
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	switch {
	case p.Jitter < 0:
		p.Jitter = 0
	case p.Jitter > 1:
		p.Jitter = 1
	}
	if p.RetryIf == nil {
		p.RetryIf = errors.IsRetryable
	}
	return &Retrier{policy: p}
}

// Do runs op until it succeeds, fails permanently, runs out of attempts or
// ctx ends. A cancelled context stops before the next attempt and returns
// the context's error.
func (r *Retrier) Do(ctx context.Context, op Operation) Result {
	var res Result
	attempt := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		res.Attempts++
		err := op(ctx)
		if err != nil && !r.policy.RetryIf(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(res.Attempts, err, delay)
		}
	}

	res.Err = backoff.RetryNotify(attempt, r.schedule(ctx), notify)
	return res
}

func (r *Retrier) schedule(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.policy.InitialDelay
	eb.MaxInterval = r.policy.MaxDelay
	eb.Multiplier = r.policy.Multiplier
	eb.RandomizationFactor = r.policy.Jitter
	eb.MaxElapsedTime = 0
	eb.Reset()

	var b backoff.BackOff = eb
	if r.policy.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}
