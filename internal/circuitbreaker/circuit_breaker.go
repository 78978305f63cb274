// Package circuitbreaker guards calls to an unreliable backend, failing fast
// while the backend is known to be down.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker configuration
type Config struct {
	// Name identifies the guarded backend in logs and metrics
	Name string
	// FailureThreshold is the number of consecutive failures before opening the circuit
	FailureThreshold int
	// SuccessThreshold is the number of successes in half-open state before closing
	SuccessThreshold int
	// Timeout is the duration the circuit stays open before switching to half-open
	Timeout time.Duration
	// MaxConcurrentRequests in half-open state
	MaxConcurrentRequests int
	// IsFailure decides whether an error counts against the backend. Defaults
	// to every error except caller cancellation.
	IsFailure func(error) bool
	// OnStateChange is called when the circuit state changes
	OnStateChange func(name string, from, to State)
	// Now is the clock, overridable in tests
	Now func() time.Time
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold:      5,
		SuccessThreshold:      2,
		Timeout:               30 * time.Second,
		MaxConcurrentRequests: 1,
	}
}

// Errors
var (
	ErrCircuitOpen               = errors.New("circuit breaker is open")
	ErrTooManyConcurrentRequests = errors.New("too many concurrent requests in half-open state")
)

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	config Config

	mu               sync.Mutex
	state            State
	openedAt         time.Time
	failures         int
	successes        int
	halfOpenInFlight int
	stats            Stats
}

// Stats holds circuit breaker statistics
type Stats struct {
	State             State
	TotalRequests     int64
	TotalFailures     int64
	TotalSuccesses    int64
	TotalRejections   int64
	FailureRate       float64
	LastFailureTime   time.Time
	ConsecutiveErrors int
}

// New creates a new circuit breaker
func New(config *Config) *CircuitBreaker {
	cfg := *DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.MaxConcurrentRequests <= 0 {
		cfg.MaxConcurrentRequests = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = defaultIsFailure
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{config: cfg}
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Execute runs the given function with circuit breaker protection
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	return cb.ExecuteWithFallback(ctx, fn, nil)
}

// ExecuteWithFallback runs the function with circuit breaker protection and fallback
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(context.Context, error) error) error {
	halfOpen, err := cb.acquire()
	if err != nil {
		if fallback != nil {
			return fallback(ctx, err)
		}
		return err
	}

	err = fn(ctx)
	cb.record(err, halfOpen)

	if err != nil && fallback != nil {
		return fallback(ctx, err)
	}
	return err
}

// acquire admits a request, reporting whether it runs as a half-open probe
func (cb *CircuitBreaker) acquire() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.config.Now().Sub(cb.openedAt) >= cb.config.Timeout {
		cb.transitionLocked(StateHalfOpen)
	}

	switch cb.state {
	case StateOpen:
		cb.stats.TotalRejections++
		return false, ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.config.MaxConcurrentRequests {
			cb.stats.TotalRejections++
			return false, ErrTooManyConcurrentRequests
		}
		cb.halfOpenInFlight++
		cb.stats.TotalRequests++
		return true, nil
	default:
		cb.stats.TotalRequests++
		return false, nil
	}
}

func (cb *CircuitBreaker) record(err error, halfOpen bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if halfOpen && cb.halfOpenInFlight > 0 {
		cb.halfOpenInFlight--
	}

	if err != nil && cb.config.IsFailure(err) {
		cb.stats.TotalFailures++
		cb.stats.LastFailureTime = cb.config.Now()
		cb.failures++
		switch cb.state {
		case StateClosed:
			if cb.failures >= cb.config.FailureThreshold {
				cb.transitionLocked(StateOpen)
			}
		case StateHalfOpen:
			cb.transitionLocked(StateOpen)
		}
		return
	}

	cb.stats.TotalSuccesses++
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transitionLocked(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to

	switch to {
	case StateClosed:
		cb.failures = 0
		cb.successes = 0
	case StateOpen:
		cb.openedAt = cb.config.Now()
		cb.successes = 0
	case StateHalfOpen:
		cb.successes = 0
		cb.halfOpenInFlight = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// Name returns the configured breaker name
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// GetStats returns current statistics
func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := cb.stats
	s.State = cb.state
	s.ConsecutiveErrors = cb.failures
	if s.TotalRequests > 0 {
		s.FailureRate = float64(s.TotalFailures) / float64(s.TotalRequests)
	}
	return s
}
