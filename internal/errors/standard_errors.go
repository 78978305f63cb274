// Package errors provides standardized error handling for the analytics service
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents semantic error codes for consistent error handling
type ErrorCode string

const (
	// Validation errors
	ErrorCodeValidationError ErrorCode = "VALIDATION_ERROR"

	// Resource and routing errors
	ErrorCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrorCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"

	// Client throttling
	ErrorCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// System and processing errors
	ErrorCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout            ErrorCode = "TIMEOUT"
	ErrorCodeDatabaseError      ErrorCode = "DATABASE_ERROR"
	ErrorCodeCacheError         ErrorCode = "CACHE_ERROR"
)

// StandardError represents the unified error structure returned at the HTTP boundary
type StandardError struct {
	ErrorInfo ErrorDetails `json:"error"`
}

// Error implements the Go error interface
func (e *StandardError) Error() string {
	return e.ErrorInfo.Message
}

// ErrorDetails contains the detailed error information
type ErrorDetails struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
}

// ValidationDetail provides specific validation error information
type ValidationDetail struct {
	Field  string      `json:"field"`
	Reason string      `json:"reason"`
	Value  interface{} `json:"value,omitempty"`
}

// NewStandardError creates a new standardized error
func NewStandardError(code ErrorCode, message string, details interface{}) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// NewValidationError creates a validation error with field details
func NewValidationError(field, reason string, value interface{}) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeValidationError,
			Message: fmt.Sprintf("Validation failed for field '%s': %s", field, reason),
			Details: ValidationDetail{
				Field:  field,
				Reason: reason,
				Value:  value,
			},
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, originalError error) *StandardError {
	details := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if originalError != nil {
		details["original_error"] = originalError.Error()
	}

	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeInternalError,
			Message: message,
			Details: details,
		},
	}
}

// FromError converts an arbitrary error into a StandardError. Enhanced
// errors keep their component so database and cache failures stay
// distinguishable at the boundary.
func FromError(err error) *StandardError {
	if err == nil {
		return nil
	}
	if se, ok := As[*StandardError](err); ok {
		return se
	}
	if ee, ok := As[*EnhancedError](err); ok {
		code := ErrorCodeInternalError
		switch {
		case ee.Context.Category == ErrorCategoryTimeout:
			code = ErrorCodeTimeout
		case ee.Context.Component == ComponentDatabase:
			code = ErrorCodeDatabaseError
		case ee.Context.Component == ComponentCache:
			code = ErrorCodeCacheError
		}
		return NewStandardError(code, "Upstream failure during "+ee.Context.Operation, map[string]interface{}{
			"component": ee.Context.Component,
			"retryable": ee.Context.Retryable,
		}).WithTraceID(ee.Context.TraceID)
	}
	return NewInternalError("Internal server error occurred", err)
}

// WithTraceID adds a trace ID to the error for debugging
func (e *StandardError) WithTraceID(traceID string) *StandardError {
	e.ErrorInfo.TraceID = traceID
	return e
}

// ToHTTPStatus maps StandardError to appropriate HTTP status code
func (e *StandardError) ToHTTPStatus() int {
	switch e.ErrorInfo.Code {
	case ErrorCodeValidationError:
		return http.StatusBadRequest
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrorCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrorCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrorCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrorCodeInternalError, ErrorCodeDatabaseError, ErrorCodeCacheError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// IsSystemError reports failures of the service or its backends, as opposed
// to a bad request
func IsSystemError(err *StandardError) bool {
	return err.ErrorInfo.Code == ErrorCodeInternalError ||
		err.ErrorInfo.Code == ErrorCodeServiceUnavailable ||
		err.ErrorInfo.Code == ErrorCodeTimeout ||
		err.ErrorInfo.Code == ErrorCodeDatabaseError ||
		err.ErrorInfo.Code == ErrorCodeCacheError
}
