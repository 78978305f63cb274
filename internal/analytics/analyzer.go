package analytics

import (
	"context"
	"time"

	"convocoach/internal/logging"
	"convocoach/internal/monitoring"
	"convocoach/internal/storage"
)

// Settings tunes analyzer behaviour that is not fixed by the algorithms
type Settings struct {
	// CorrelationSkipIncomplete drops records missing any catalog skill
	// instead of counting the missing score as zero
	CorrelationSkipIncomplete bool
	// ScenarioPoolSize is the number of scenarios named scenario1..scenarioN
	ScenarioPoolSize int
	// OverviewTTL is how long a cached overview is served
	OverviewTTL time.Duration
	// SlowOperation is the duration above which an operation is logged as slow
	SlowOperation time.Duration
}

// DefaultSettings returns the production defaults
func DefaultSettings() Settings {
	return Settings{
		ScenarioPoolSize: 35,
		OverviewTTL:      time.Hour,
		SlowOperation:    500 * time.Millisecond,
	}
}

// Default analysis windows in days
const (
	DefaultSkillDays       = 30
	DefaultProgressionDays = 30
	DefaultTrendDays       = 90
	DefaultPredictionDays  = 30
)

func orDefault(days, def int) int {
	if days <= 0 {
		return def
	}
	return days
}

// Option configures an analyzer
type Option func(*base)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics records operation durations and soft errors
func WithMetrics(m *monitoring.Metrics) Option {
	return func(b *base) { b.metrics = m }
}

// WithSettings overrides the defaults
func WithSettings(s Settings) Option {
	return func(b *base) {
		defaults := DefaultSettings()
		if s.ScenarioPoolSize <= 0 {
			s.ScenarioPoolSize = defaults.ScenarioPoolSize
		}
		if s.OverviewTTL <= 0 {
			s.OverviewTTL = defaults.OverviewTTL
		}
		b.settings = s
	}
}

// base carries the dependencies shared by every analyzer
type base struct {
	repo     storage.Repository
	now      func() time.Time
	logger   logging.Logger
	metrics  *monitoring.Metrics
	settings Settings
}

func newBase(repo storage.Repository, component string, opts []Option) base {
	b := base{
		repo:     repo,
		now:      time.Now,
		logger:   logging.NewNoOpLogger(),
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.WithComponent(component)
	return b
}

// track times an operation; call the returned func when it finishes
func (b *base) track(ctx context.Context, operation string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		b.metrics.ObserveOperation(operation, d)
		logging.LogSlowOperation(ctx, b.logger, operation, d, b.settings.SlowOperation)
	}
}

// settle records a soft error outcome and passes the result through
func settle[T any](ctx context.Context, b *base, operation string, r Result[T]) Result[T] {
	if r.Err != nil {
		b.metrics.RecordSoftError(operation, string(r.Err.Kind))
		b.logger.DebugContext(ctx, "analysis returned no report",
			"operation", operation,
			"reason", string(r.Err.Kind),
			"message", r.Err.Message,
		)
	}
	return r
}
