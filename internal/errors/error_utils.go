package errors

import (
	"context"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"convocoach/internal/logging"
)

// ErrorCategory classifies errors for handling strategies
type ErrorCategory string

const (
	ErrorCategoryRetryable  ErrorCategory = "retryable"
	ErrorCategoryPermanent  ErrorCategory = "permanent"
	ErrorCategoryTimeout    ErrorCategory = "timeout"
	ErrorCategoryValidation ErrorCategory = "validation"
)

// Components reported on wrapped upstream errors
const (
	ComponentDatabase = "database"
	ComponentCache    = "cache"
)

// ErrorContext provides additional context for debugging
type ErrorContext struct {
	Operation  string                 `json:"operation"`
	Component  string                 `json:"component"`
	TraceID    string                 `json:"trace_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	StackTrace string                 `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Category   ErrorCategory          `json:"category"`
	Retryable  bool                   `json:"retryable"`
}

// EnhancedError wraps upstream errors with the component and operation that failed
type EnhancedError struct {
	Err     error        `json:"error"`
	Context ErrorContext `json:"context"`
}

func (e *EnhancedError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Context.Component, e.Context.Operation, e.Err.Error())
}

func (e *EnhancedError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if error can be retried
func (e *EnhancedError) IsRetryable() bool {
	return e.Context.Retryable
}

// NewEnhancedError creates a new enhanced error with context
func NewEnhancedError(err error, component, operation string, category ErrorCategory) *EnhancedError {
	return &EnhancedError{
		Err: err,
		Context: ErrorContext{
			Operation:  operation,
			Component:  component,
			Category:   category,
			Retryable:  category == ErrorCategoryRetryable || category == ErrorCategoryTimeout,
			Timestamp:  time.Now(),
			StackTrace: getStackTrace(),
		},
	}
}

// WithContext adds the request trace ID to the error
func (e *EnhancedError) WithContext(ctx context.Context) *EnhancedError {
	if traceID := logging.GetTraceID(ctx); traceID != "" {
		e.Context.TraceID = traceID
	}
	return e
}

// WithMetadata adds metadata to error
func (e *EnhancedError) WithMetadata(key string, value interface{}) *EnhancedError {
	if e.Context.Metadata == nil {
		e.Context.Metadata = make(map[string]interface{})
	}
	e.Context.Metadata[key] = value
	return e
}

// WrapDatabaseErrorContext wraps a persistence error and tags it with the
// request's trace ID
func WrapDatabaseErrorContext(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	return NewEnhancedError(err, ComponentDatabase, operation, classify(err)).WithContext(ctx)
}

// WrapCacheError wraps cache backend errors
func WrapCacheError(err error, operation string) error {
	if err == nil {
		return nil
	}
	return NewEnhancedError(err, ComponentCache, operation, classify(err))
}

// WrapValidationError wraps validation errors
func WrapValidationError(err error, field string) error {
	if err == nil {
		return nil
	}

	enhanced := NewEnhancedError(err, "validation", "field_validation", ErrorCategoryValidation)
	enhanced.WithMetadata("field", field)
	return enhanced
}

// IsRetryable reports whether any EnhancedError in the chain is retryable
func IsRetryable(err error) bool {
	if ee, ok := As[*EnhancedError](err); ok {
		return ee.IsRetryable()
	}
	return false
}

// As is a generic errors.As
func As[T error](err error) (T, bool) {
	var target T
	ok := stderrors.As(err, &target)
	return target, ok
}

func classify(err error) ErrorCategory {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryTimeout
	case stderrors.Is(err, context.Canceled):
		return ErrorCategoryPermanent
	case isTemporaryError(err):
		return ErrorCategoryRetryable
	default:
		return ErrorCategoryPermanent
	}
}

// getStackTrace captures current stack trace
func getStackTrace() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

func isTemporaryError(err error) bool {
	if stderrors.Is(err, driver.ErrBadConn) {
		return true
	}

	msg := strings.ToLower(err.Error())
	temporaryPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"timeout",
		"temporary failure",
		"service unavailable",
		"database is locked",
		"too many connections",
		"i/o timeout",
	}

	for _, pattern := range temporaryPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
