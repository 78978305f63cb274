// Package response writes the JSON envelope shared by every API endpoint.
//
// Successful reports are {"success": true, "data": ...}. An analysis that
// ran but had nothing to report is {"success": false, "error": ...} with
// status 200; transport and upstream failures use the StandardError codes
// and their HTTP status.
package response

import (
	"encoding/json"
	"net/http"
	"time"

	"convocoach/internal/errors"
	"convocoach/internal/logging"
)

// Envelope is the body of every API response
type Envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     interface{} `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

func write(w http.ResponseWriter, r *http.Request, status int, env Envelope) {
	env.Timestamp = time.Now().UTC().Format(time.RFC3339)
	if r != nil {
		env.RequestID = logging.GetTraceID(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		// headers are already sent; nothing else can be reported
		logging.Error("failed to encode response", "error", err)
	}
}

// WriteSuccess writes a 200 response carrying data
func WriteSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	write(w, r, http.StatusOK, Envelope{Success: true, Data: data})
}

// WriteSoftError writes a 200 response for an analysis without a report
func WriteSoftError(w http.ResponseWriter, r *http.Request, soft interface{}) {
	write(w, r, http.StatusOK, Envelope{Success: false, Error: soft})
}

// WriteStatus writes data with an explicit status, for health checks
func WriteStatus(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	write(w, r, status, Envelope{Success: status < http.StatusBadRequest, Data: data})
}

// WriteError writes a StandardError with its mapped HTTP status
func WriteError(w http.ResponseWriter, r *http.Request, err *errors.StandardError) {
	if r != nil && err.ErrorInfo.TraceID == "" {
		err.ErrorInfo.TraceID = logging.GetTraceID(r.Context())
	}
	if err.ErrorInfo.TraceID != "" {
		w.Header().Set("X-Trace-ID", err.ErrorInfo.TraceID)
	}
	write(w, r, err.ToHTTPStatus(), Envelope{Success: false, Error: err.ErrorInfo})
}

// WriteBadRequest writes a 400 for an invalid request parameter
func WriteBadRequest(w http.ResponseWriter, r *http.Request, field, reason string, value interface{}) {
	WriteError(w, r, errors.NewValidationError(field, reason, value))
}

// WriteNotFound writes a 404
func WriteNotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, errors.NewStandardError(errors.ErrorCodeNotFound, "Resource not found", nil))
}

// WriteMethodNotAllowed writes a 405
func WriteMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	err := errors.NewStandardError(errors.ErrorCodeMethodNotAllowed, "Method not allowed", map[string]string{"method": r.Method})
	WriteError(w, r, err)
}
