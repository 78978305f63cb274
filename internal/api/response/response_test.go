package response

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convocoach/internal/errors"
	"convocoach/internal/logging"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteError_UsesRequestTraceID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/trends?days=x", http.NoBody)
	r = r.WithContext(logging.WithTraceID(r.Context(), "trace-1"))
	w := httptest.NewRecorder()

	WriteBadRequest(w, r, "days", "must be a positive integer", "x")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "trace-1", w.Header().Get("X-Trace-ID"))

	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "trace-1", body["request_id"])
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", errBody["code"])
	assert.Equal(t, "trace-1", errBody["trace_id"])
}

func TestWriteError_KeepsUpstreamTraceID(t *testing.T) {
	ctx := logging.WithTraceID(context.Background(), "trace-db")
	se := errors.FromError(errors.WrapDatabaseErrorContext(ctx, context.DeadlineExceeded, "analysis_results"))

	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	r = r.WithContext(logging.WithTraceID(r.Context(), "trace-request"))
	w := httptest.NewRecorder()
	WriteError(w, r, se)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "trace-db", w.Header().Get("X-Trace-ID"))
}

func TestWriteSoftError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSoftError(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody), map[string]string{"reason": "insufficient_data"})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["timestamp"])
}
