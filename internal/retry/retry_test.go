package retry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convocoach/internal/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func transient(msg string) error {
	return errors.NewEnhancedError(stderrors.New(msg), errors.ComponentDatabase, "query", errors.ErrorCategoryRetryable)
}

func TestRetrier_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	res := New(fastPolicy(5)).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transient("connection reset")
		}
		return nil
	})

	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, calls)
}

func TestRetrier_DefaultsToServiceClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{"plain error is permanent", stderrors.New("boom"), 1},
		{"permanent database error", errors.NewEnhancedError(stderrors.New("syntax error"), errors.ComponentDatabase, "query", errors.ErrorCategoryPermanent), 1},
		{"timeout is retried", errors.NewEnhancedError(context.DeadlineExceeded, errors.ComponentDatabase, "query", errors.ErrorCategoryTimeout), 3},
		{"transient is retried", transient("database is locked"), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			res := New(fastPolicy(3)).Do(context.Background(), func(ctx context.Context) error {
				calls++
				return tt.err
			})

			assert.ErrorIs(t, res.Err, tt.err)
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantCalls, res.Attempts)
		})
	}
}

func TestRetrier_CustomPredicate(t *testing.T) {
	p := fastPolicy(4)
	p.RetryIf = func(error) bool { return true }

	calls := 0
	res := New(p).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return stderrors.New("x")
	})
	assert.Error(t, res.Err)
	assert.Equal(t, 4, calls)
}

func TestRetrier_OnRetry(t *testing.T) {
	p := fastPolicy(3)
	var attempts []int
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
		assert.Error(t, err)
		assert.LessOrEqual(t, delay, 2*time.Millisecond)
	}

	res := New(p).Do(context.Background(), func(ctx context.Context) error {
		return transient("connection refused")
	})
	assert.Error(t, res.Err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestRetrier_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	res := New(fastPolicy(3)).Do(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, calls)
	assert.Zero(t, res.Attempts)
}

func TestRetrier_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := fastPolicy(0)
	p.InitialDelay = time.Hour
	p.MaxDelay = time.Hour

	res := New(p).Do(ctx, func(ctx context.Context) error {
		cancel()
		return transient("connection reset")
	})

	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, res.Attempts)
}

func TestNew_NormalizesPolicy(t *testing.T) {
	r := New(Policy{Multiplier: 0.5, Jitter: 3, MaxDelay: time.Nanosecond})
	assert.Equal(t, DefaultPolicy().InitialDelay, r.policy.InitialDelay)
	assert.Equal(t, r.policy.InitialDelay, r.policy.MaxDelay)
	assert.Equal(t, 1.0, r.policy.Multiplier)
	assert.Equal(t, 1.0, r.policy.Jitter)
	assert.NotNil(t, r.policy.RetryIf)
}
