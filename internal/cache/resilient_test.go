package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convocoach/internal/circuitbreaker"
	cerrors "convocoach/internal/errors"
	"convocoach/internal/monitoring"
)

// failingCache fails every call while down is set
type failingCache struct {
	inner Cache
	down  bool
	calls int
}

func (f *failingCache) Get(ctx context.Context, key string) (string, bool, error) {
	f.calls++
	if f.down {
		return "", false, errors.New("dial tcp 127.0.0.1:6379: connection refused")
	}
	return f.inner.Get(ctx, key)
}

func (f *failingCache) SetEX(ctx context.Context, key string, ttl time.Duration, value string) error {
	f.calls++
	if f.down {
		return errors.New("dial tcp 127.0.0.1:6379: connection refused")
	}
	return f.inner.SetEX(ctx, key, ttl, value)
}

func TestResilient_PassesThroughAndCounts(t *testing.T) {
	metrics := monitoring.NewMetrics(nil)
	backend := &failingCache{inner: NewMemoryCache(MemoryConfig{})}
	c := NewResilient(backend, ResilientConfig{Name: "memory", FailureThreshold: 3, ResetTimeout: time.Minute}, metrics, nil)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetEX(ctx, "k", time.Minute, "v"))
	value, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", value)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("memory", monitoring.CacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("memory", monitoring.CacheMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheWrites.WithLabelValues("memory", "ok")))
}

func TestResilient_OpensAfterFailures(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	metrics := monitoring.NewMetrics(nil)
	backend := &failingCache{inner: NewMemoryCache(MemoryConfig{}), down: true}
	c := NewResilient(backend, ResilientConfig{
		Name:             "redis",
		FailureThreshold: 2,
		ResetTimeout:     30 * time.Second,
		Now:              clock.Now,
	}, metrics, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := c.Get(ctx, "k")
		require.Error(t, err)
		ee, ok := cerrors.As[*cerrors.EnhancedError](err)
		require.True(t, ok)
		assert.Equal(t, cerrors.ComponentCache, ee.Context.Component)
	}
	assert.Equal(t, circuitbreaker.StateOpen, c.Stats().State)
	assert.Equal(t, float64(circuitbreaker.StateOpen), testutil.ToFloat64(metrics.BreakerState.WithLabelValues("redis")))

	// open circuit fails fast without touching the backend
	_, _, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, 2, backend.calls)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("redis", monitoring.CacheError)))

	// backend recovers; the half-open probe closes the circuit
	backend.down = false
	clock.Advance(31 * time.Second)
	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, circuitbreaker.StateClosed, c.Stats().State)
}

func TestResilient_CloseClosesBackend(t *testing.T) {
	mem := NewMemoryCache(MemoryConfig{})
	c := NewResilient(mem, ResilientConfig{FailureThreshold: 1}, nil, nil)
	require.NoError(t, c.Close())

	_, _, err := mem.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
}
