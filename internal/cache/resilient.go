package cache

import (
	"context"
	"time"

	"convocoach/internal/circuitbreaker"
	"convocoach/internal/errors"
	"convocoach/internal/logging"
	"convocoach/internal/monitoring"
)

// ResilientConfig configures the breaker around a backend
type ResilientConfig struct {
	// Name labels metrics and logs, usually the backend name
	Name             string
	FailureThreshold int
	ResetTimeout     time.Duration
	// Now is the breaker clock, overridable in tests
	Now func() time.Time
}

// Resilient guards a Cache with a circuit breaker. While the breaker is
// open calls fail fast with circuitbreaker.ErrCircuitOpen instead of
// waiting on a dead backend.
type Resilient struct {
	next    Cache
	name    string
	breaker *circuitbreaker.CircuitBreaker
	metrics *monitoring.Metrics
	logger  logging.Logger
}

// NewResilient wraps next. metrics and logger may be nil.
func NewResilient(next Cache, cfg ResilientConfig, metrics *monitoring.Metrics, logger logging.Logger) *Resilient {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	if cfg.Name == "" {
		cfg.Name = "cache"
	}

	r := &Resilient{
		next:    next,
		name:    cfg.Name,
		metrics: metrics,
		logger:  logger.WithComponent("cache"),
	}
	r.breaker = circuitbreaker.New(&circuitbreaker.Config{
		Name:                  cfg.Name,
		FailureThreshold:      cfg.FailureThreshold,
		SuccessThreshold:      1,
		Timeout:               cfg.ResetTimeout,
		MaxConcurrentRequests: 1,
		Now:                   cfg.Now,
		OnStateChange:         r.onStateChange,
	})
	metrics.SetBreakerState(cfg.Name, int(circuitbreaker.StateClosed))
	return r
}

func (r *Resilient) onStateChange(name string, from, to circuitbreaker.State) {
	r.metrics.SetBreakerState(name, int(to))
	r.logger.Warn("cache circuit breaker changed state", "cache", name, "from", from.String(), "to", to.String())
}

// Get reads through the breaker
func (r *Resilient) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		value, found, err = r.next.Get(ctx, key)
		return err
	})
	switch {
	case err != nil:
		r.metrics.RecordCacheRequest(r.name, monitoring.CacheError)
		return "", false, errors.WrapCacheError(err, "get")
	case found:
		r.metrics.RecordCacheRequest(r.name, monitoring.CacheHit)
	default:
		r.metrics.RecordCacheRequest(r.name, monitoring.CacheMiss)
	}
	return value, found, nil
}

// SetEX writes through the breaker
func (r *Resilient) SetEX(ctx context.Context, key string, ttl time.Duration, value string) error {
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.next.SetEX(ctx, key, ttl, value)
	})
	r.metrics.RecordCacheWrite(r.name, err)
	if err != nil {
		return errors.WrapCacheError(err, "set")
	}
	return nil
}

// Stats reports the breaker counters for the health endpoint
func (r *Resilient) Stats() circuitbreaker.Stats {
	return r.breaker.GetStats()
}

// Close closes the wrapped backend when it holds resources
func (r *Resilient) Close() error {
	if c, ok := r.next.(Closer); ok {
		return c.Close()
	}
	return nil
}
