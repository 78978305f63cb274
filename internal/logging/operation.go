package logging

import (
	"context"
	"time"
)

// LogOperation logs the completion or failure of an operation with its duration
func LogOperation(ctx context.Context, logger Logger, operation string, fn func() error) error {
	startTime := time.Now()

	err := fn()
	duration := time.Since(startTime)

	if err != nil {
		logger.ErrorContext(ctx, "Operation failed",
			"operation", operation,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return err
	}

	logger.DebugContext(ctx, "Operation completed",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

// LogSlowOperation logs operations that exceed expected duration
func LogSlowOperation(ctx context.Context, logger Logger, operation string, duration, expected time.Duration) {
	if expected <= 0 || duration <= expected {
		return
	}
	logger.WarnContext(ctx, "Slow operation detected",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
		"expected_ms", expected.Milliseconds(),
		"slowdown_factor", float64(duration)/float64(expected),
	)
}
