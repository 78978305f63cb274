// Package middleware holds the HTTP middleware of the analytics API.
package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"convocoach/internal/logging"
)

// RequestIDHeader carries the trace ID in both directions
const RequestIDHeader = "X-Request-ID"

// SlowRequestThreshold is the duration above which a request is logged at warn level
const SlowRequestThreshold = time.Second

// Logging assigns every request a trace ID and logs its outcome
type Logging struct {
	logger logging.Logger
}

// NewLogging creates the request logging middleware
func NewLogging(logger logging.Logger) *Logging {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Logging{logger: logger.WithComponent("http")}
}

// Handler returns the middleware
func (m *Logging) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(requestID); err != nil {
				requestID = uuid.New().String()
			}
			r = r.WithContext(logging.WithTraceID(r.Context(), requestID))
			w.Header().Set(RequestIDHeader, requestID)

			rec := NewStatusRecorder(w)
			next.ServeHTTP(rec, r)

			if quietPath(r.URL.Path) {
				return
			}
			duration := time.Since(start)
			fields := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.Status(),
				"duration_ms", duration.Milliseconds(),
				"remote", r.RemoteAddr,
			}
			switch {
			case rec.Status() >= http.StatusInternalServerError:
				m.logger.ErrorContext(r.Context(), "request failed", fields...)
			case rec.Status() >= http.StatusBadRequest:
				m.logger.WarnContext(r.Context(), "request rejected", fields...)
			case duration > SlowRequestThreshold:
				m.logger.WarnContext(r.Context(), "slow request", fields...)
			default:
				m.logger.InfoContext(r.Context(), "request completed", fields...)
			}
		})
	}
}

// quietPath reports probe endpoints that are never logged
func quietPath(path string) bool {
	return path == "/health" || path == "/metrics" || path == "/ping"
}

// StatusRecorder captures the status code written by a handler
type StatusRecorder struct {
	http.ResponseWriter
	status int
}

// NewStatusRecorder wraps w; the status defaults to 200
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	if rec, ok := w.(*StatusRecorder); ok {
		return rec
	}
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader captures the status code
func (r *StatusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Status returns the captured status code
func (r *StatusRecorder) Status() int {
	return r.status
}

// Unwrap exposes the underlying writer to http.ResponseController
func (r *StatusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
