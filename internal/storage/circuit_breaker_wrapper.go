package storage

import (
	"context"
	stderrors "errors"
	"time"

	"convocoach/internal/circuitbreaker"
	"convocoach/internal/errors"
	"convocoach/internal/logging"
	"convocoach/internal/monitoring"
	"convocoach/pkg/types"
)

// breakerName labels the storage breaker in metrics and logs
const breakerName = "storage"

// CircuitBreakerStore wraps a Store with circuit breaker protection. While
// the circuit is open calls fail fast with a SERVICE_UNAVAILABLE error
// instead of queueing on a dead database.
type CircuitBreakerStore struct {
	store   Store
	cb      *circuitbreaker.CircuitBreaker
	metrics *monitoring.Metrics
	logger  logging.Logger
}

// NewCircuitBreakerStore creates a new circuit breaker wrapped store. A nil
// config uses five failures and a 30 second open period.
func NewCircuitBreakerStore(store Store, config *circuitbreaker.Config, metrics *monitoring.Metrics, logger logging.Logger) *CircuitBreakerStore {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	if config == nil {
		config = &circuitbreaker.Config{
			FailureThreshold:      5,
			SuccessThreshold:      2,
			Timeout:               30 * time.Second,
			MaxConcurrentRequests: 3,
		}
	}

	s := &CircuitBreakerStore{store: store, metrics: metrics, logger: logger.WithComponent("storage")}
	cfg := *config
	cfg.Name = breakerName
	cfg.OnStateChange = s.onStateChange
	if cfg.IsFailure == nil {
		cfg.IsFailure = isStorageOutage
	}
	s.cb = circuitbreaker.New(&cfg)
	metrics.SetBreakerState(breakerName, int(circuitbreaker.StateClosed))
	return s
}

// isStorageOutage counts only transient and timeout failures; a rejected
// record or a constraint violation says nothing about database health
func isStorageOutage(err error) bool {
	return errors.IsRetryable(err)
}

func (s *CircuitBreakerStore) onStateChange(name string, from, to circuitbreaker.State) {
	s.metrics.SetBreakerState(name, int(to))
	s.logger.Warn("storage circuit breaker changed state", "from", from.String(), "to", to.String())
}

// Stats reports the breaker counters for the health endpoint
func (s *CircuitBreakerStore) Stats() circuitbreaker.Stats {
	return s.cb.GetStats()
}

func (s *CircuitBreakerStore) execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	err := s.cb.Execute(ctx, fn)
	if stderrors.Is(err, circuitbreaker.ErrCircuitOpen) || stderrors.Is(err, circuitbreaker.ErrTooManyConcurrentRequests) {
		return errors.NewStandardError(errors.ErrorCodeServiceUnavailable,
			"Storage is temporarily unavailable", map[string]interface{}{"operation": operation})
	}
	return err
}

// guardedRead runs a read through the breaker and returns its value
func guardedRead[T any](ctx context.Context, s *CircuitBreakerStore, operation string, read func(ctx context.Context) (T, error)) (T, error) {
	var value T
	err := s.execute(ctx, operation, func(ctx context.Context) error {
		var err error
		value, err = read(ctx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

// AnalysisResults reads analysis results through the breaker
func (s *CircuitBreakerStore) AnalysisResults(ctx context.Context, userID string, tr types.TimeRange) ([]*types.AnalysisResult, error) {
	return guardedRead(ctx, s, "analysis_results", func(ctx context.Context) ([]*types.AnalysisResult, error) {
		return s.store.AnalysisResults(ctx, userID, tr)
	})
}

// LatestAnalysisResult reads the newest analysis result through the breaker
func (s *CircuitBreakerStore) LatestAnalysisResult(ctx context.Context, userID string) (*types.AnalysisResult, error) {
	return guardedRead(ctx, s, "latest_analysis_result", func(ctx context.Context) (*types.AnalysisResult, error) {
		return s.store.LatestAnalysisResult(ctx, userID)
	})
}

// PracticeSessions reads practice sessions through the breaker
func (s *CircuitBreakerStore) PracticeSessions(ctx context.Context, userID string, tr types.TimeRange) ([]*types.PracticeSession, error) {
	return guardedRead(ctx, s, "practice_sessions", func(ctx context.Context) ([]*types.PracticeSession, error) {
		return s.store.PracticeSessions(ctx, userID, tr)
	})
}

// ConversationLogs reads conversation logs through the breaker
func (s *CircuitBreakerStore) ConversationLogs(ctx context.Context, sessionID string) ([]*types.ConversationLog, error) {
	return guardedRead(ctx, s, "conversation_logs", func(ctx context.Context) ([]*types.ConversationLog, error) {
		return s.store.ConversationLogs(ctx, sessionID)
	})
}

// PopulationAnalysisResults reads every user's results through the breaker
func (s *CircuitBreakerStore) PopulationAnalysisResults(ctx context.Context, tr types.TimeRange) ([]*types.AnalysisResult, error) {
	return guardedRead(ctx, s, "population_analysis_results", func(ctx context.Context) ([]*types.AnalysisResult, error) {
		return s.store.PopulationAnalysisResults(ctx, tr)
	})
}

// SaveAnalysisResult writes through the breaker
func (s *CircuitBreakerStore) SaveAnalysisResult(ctx context.Context, result *types.AnalysisResult) error {
	return s.execute(ctx, "save_analysis_result", func(ctx context.Context) error {
		return s.store.SaveAnalysisResult(ctx, result)
	})
}

// SavePracticeSession writes through the breaker
func (s *CircuitBreakerStore) SavePracticeSession(ctx context.Context, session *types.PracticeSession) error {
	return s.execute(ctx, "save_practice_session", func(ctx context.Context) error {
		return s.store.SavePracticeSession(ctx, session)
	})
}

// SaveConversationLog writes through the breaker
func (s *CircuitBreakerStore) SaveConversationLog(ctx context.Context, log *types.ConversationLog) error {
	return s.execute(ctx, "save_conversation_log", func(ctx context.Context) error {
		return s.store.SaveConversationLog(ctx, log)
	})
}

// HealthCheck bypasses the breaker so probes observe the database directly
func (s *CircuitBreakerStore) HealthCheck(ctx context.Context) error {
	return s.store.HealthCheck(ctx)
}

// Close closes the wrapped store
func (s *CircuitBreakerStore) Close() error {
	return s.store.Close()
}
