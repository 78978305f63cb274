package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTest = errors.New("test error")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(clock *fakeClock, changes *[]string) *CircuitBreaker {
	return New(&Config{
		Name:             "cache",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Second,
		Now:              clock.Now,
		OnStateChange: func(name string, from, to State) {
			if changes != nil {
				*changes = append(*changes, fmt.Sprintf("%s:%s->%s", name, from, to))
			}
		},
	})
}

func fail(ctx context.Context) error    { return errTest }
func succeed(ctx context.Context) error { return nil }

func TestCircuitBreaker_ClosedState(t *testing.T) {
	cb := newTestBreaker(&fakeClock{now: time.Now()}, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, cb.Execute(ctx, succeed))
	}
	assert.Equal(t, StateClosed, cb.GetStats().State)

	// Failures below the threshold, then a success resets the count
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, succeed))
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)

	assert.Equal(t, StateClosed, cb.GetStats().State)
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	var changes []string
	cb := newTestBreaker(clock, &changes)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errTest)
	}
	assert.Equal(t, StateOpen, cb.GetStats().State)
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)

	clock.Advance(1500 * time.Millisecond)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.GetStats().State)

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.GetStats().State)

	assert.Equal(t, []string{
		"cache:closed->open",
		"cache:open->half-open",
		"cache:half-open->closed",
	}, changes)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, fail)
	}
	clock.Advance(2 * time.Second)

	assert.ErrorIs(t, cb.Execute(ctx, fail), errTest)
	assert.Equal(t, StateOpen, cb.GetStats().State)
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)
}

func TestCircuitBreaker_CancellationIsNotAFailure(t *testing.T) {
	cb := newTestBreaker(&fakeClock{now: time.Now()}, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error {
			return fmt.Errorf("get: %w", context.Canceled)
		})
	}
	assert.Equal(t, StateClosed, cb.GetStats().State)
}

func TestCircuitBreaker_Fallback(t *testing.T) {
	cb := newTestBreaker(&fakeClock{now: time.Now()}, nil)
	ctx := context.Background()

	var seen []error
	fallback := func(ctx context.Context, err error) error {
		seen = append(seen, err)
		return nil
	}

	for i := 0; i < 4; i++ {
		require.NoError(t, cb.ExecuteWithFallback(ctx, fail, fallback))
	}

	require.Len(t, seen, 4)
	assert.ErrorIs(t, seen[0], errTest)
	assert.ErrorIs(t, seen[3], ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenLimitsConcurrency(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, fail)
	}
	clock.Advance(2 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrTooManyConcurrentRequests)
	close(release)
	require.NoError(t, <-done)
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := newTestBreaker(&fakeClock{now: time.Now()}, nil)
	ctx := context.Background()

	_ = cb.Execute(ctx, succeed)
	_ = cb.Execute(ctx, fail)

	stats := cb.GetStats()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.TotalFailures)
	assert.Equal(t, int64(1), stats.TotalSuccesses)
	assert.InDelta(t, 0.5, stats.FailureRate, 1e-9)
	assert.Equal(t, 1, stats.ConsecutiveErrors)
	assert.False(t, stats.LastFailureTime.IsZero())
}

func TestCircuitBreaker_RaceConditions(t *testing.T) {
	cb := newTestBreaker(&fakeClock{now: time.Now()}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = cb.Execute(ctx, succeed)
			} else {
				_ = cb.Execute(ctx, fail)
			}
			_ = cb.GetStats()
		}(i)
	}
	wg.Wait()
}
