package storage

import (
	"context"
	"fmt"
	"time"

	"convocoach/internal/logging"
	"convocoach/internal/monitoring"
	"convocoach/internal/retry"
	"convocoach/pkg/types"
)

// RetryableStore wraps a Store with retry logic on reads. Writes are not
// retried because the inserts are not idempotent.
type RetryableStore struct {
	store   Store
	policy  retry.Policy
	metrics *monitoring.Metrics
	logger  logging.Logger
}

// NewRetryableStore creates a new retryable store. Each retry is counted in
// metrics and logged at warn level.
func NewRetryableStore(store Store, policy retry.Policy, metrics *monitoring.Metrics, logger logging.Logger) *RetryableStore {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &RetryableStore{
		store:   store,
		policy:  policy,
		metrics: metrics,
		logger:  logger.WithComponent("storage"),
	}
}

// DefaultRetryPolicy returns the retry policy for storage reads. Only
// transient and timeout failures are retried.
func DefaultRetryPolicy(maxAttempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts:  maxAttempts,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// retryRead runs a read with retries and returns its value
func retryRead[T any](ctx context.Context, r *RetryableStore, operation string, read func(ctx context.Context) (T, error)) (T, error) {
	policy := r.policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		r.metrics.RecordStorageRetry(operation)
		r.logger.WarnContext(ctx, "retrying storage read", "operation", operation,
			"attempt", attempt, "delay", delay.String(), "error", err)
	}

	var value T
	result := retry.New(policy).Do(ctx, func(ctx context.Context) error {
		var err error
		value, err = read(ctx)
		return err
	})
	if result.Err != nil {
		var zero T
		return zero, fmt.Errorf("%s failed after %d attempts: %w", operation, result.Attempts, result.Err)
	}
	return value, nil
}

// AnalysisResults reads analysis results with retries
func (r *RetryableStore) AnalysisResults(ctx context.Context, userID string, tr types.TimeRange) ([]*types.AnalysisResult, error) {
	return retryRead(ctx, r, "analysis_results", func(ctx context.Context) ([]*types.AnalysisResult, error) {
		return r.store.AnalysisResults(ctx, userID, tr)
	})
}

// LatestAnalysisResult reads the newest analysis result with retries
func (r *RetryableStore) LatestAnalysisResult(ctx context.Context, userID string) (*types.AnalysisResult, error) {
	return retryRead(ctx, r, "latest_analysis_result", func(ctx context.Context) (*types.AnalysisResult, error) {
		return r.store.LatestAnalysisResult(ctx, userID)
	})
}

// PracticeSessions reads practice sessions with retries
func (r *RetryableStore) PracticeSessions(ctx context.Context, userID string, tr types.TimeRange) ([]*types.PracticeSession, error) {
	return retryRead(ctx, r, "practice_sessions", func(ctx context.Context) ([]*types.PracticeSession, error) {
		return r.store.PracticeSessions(ctx, userID, tr)
	})
}

// ConversationLogs reads conversation logs with retries
func (r *RetryableStore) ConversationLogs(ctx context.Context, sessionID string) ([]*types.ConversationLog, error) {
	return retryRead(ctx, r, "conversation_logs", func(ctx context.Context) ([]*types.ConversationLog, error) {
		return r.store.ConversationLogs(ctx, sessionID)
	})
}

// PopulationAnalysisResults reads the population query with retries
func (r *RetryableStore) PopulationAnalysisResults(ctx context.Context, tr types.TimeRange) ([]*types.AnalysisResult, error) {
	return retryRead(ctx, r, "population_analysis_results", func(ctx context.Context) ([]*types.AnalysisResult, error) {
		return r.store.PopulationAnalysisResults(ctx, tr)
	})
}

// SaveAnalysisResult passes through to the wrapped store
func (r *RetryableStore) SaveAnalysisResult(ctx context.Context, result *types.AnalysisResult) error {
	return r.store.SaveAnalysisResult(ctx, result)
}

// SavePracticeSession passes through to the wrapped store
func (r *RetryableStore) SavePracticeSession(ctx context.Context, session *types.PracticeSession) error {
	return r.store.SavePracticeSession(ctx, session)
}

// SaveConversationLog passes through to the wrapped store
func (r *RetryableStore) SaveConversationLog(ctx context.Context, log *types.ConversationLog) error {
	return r.store.SaveConversationLog(ctx, log)
}

// HealthCheck checks the wrapped store without retrying
func (r *RetryableStore) HealthCheck(ctx context.Context) error {
	return r.store.HealthCheck(ctx)
}

// Close closes the wrapped store
func (r *RetryableStore) Close() error {
	return r.store.Close()
}
