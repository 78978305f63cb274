package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convocoach/internal/analytics"
	"convocoach/internal/api/handlers"
	"convocoach/internal/logging"
	"convocoach/internal/monitoring"
	"convocoach/internal/ratelimit"
	"convocoach/internal/storage"
	"convocoach/pkg/types"
)

func newTestRouter(t *testing.T) (*Router, *monitoring.Metrics) {
	t.Helper()
	store := storage.NewMemoryStore()
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveAnalysisResult(context.Background(), &types.AnalysisResult{
		ID: "ar1", UserID: "u1", CreatedAt: now.Add(-time.Hour),
		Scores: map[string]float64{analytics.SkillEmpathy: 72},
	}))

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	router := NewRouter(Options{
		Dashboard:      analytics.NewDashboard(store, nil, analytics.WithClock(func() time.Time { return now })),
		Limits:         handlers.DefaultLimits(),
		Health:         handlers.NewHealthHandler("test", handlers.Probe{Name: "storage", Critical: true, Check: store.HealthCheck}),
		Metrics:        metrics,
		Gatherer:       reg,
		AllowedOrigins: []string{"https://app.example.com"},
	})
	return router, metrics
}

func serve(router *Router, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.Handler().ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t)
	w := serve(router, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestRouter_Ping(t *testing.T) {
	router, _ := newTestRouter(t)
	w := serve(router, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AnalyticsRoute(t *testing.T) {
	router, metrics := newTestRouter(t)
	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/overview", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	var env struct {
		Success   bool               `json:"success"`
		Data      analytics.Overview `json:"data"`
		RequestID string             `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "u1", env.Data.UserID)
	assert.Equal(t, 72.0, env.Data.SkillSummary.CurrentScores[analytics.SkillEmpathy])

	_, err := uuid.Parse(env.RequestID)
	assert.NoError(t, err)
	assert.Equal(t, env.RequestID, w.Header().Get("X-Request-ID"))

	count := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/api/v1/users/{userID}/overview", http.MethodGet, "200"))
	assert.Equal(t, 1.0, count)
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	router, _ := newTestRouter(t)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/nope", http.NoBody))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")

	w = serve(router, httptest.NewRequest(http.MethodPost, "/api/v1/users/u1/overview", strings.NewReader("{}")))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), "METHOD_NOT_ALLOWED")
}

func TestRouter_Metrics(t *testing.T) {
	router, _ := newTestRouter(t)
	serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/momentum", http.NoBody))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "convocoach_http_requests_total")
	assert.Contains(t, w.Body.String(), `route="/api/v1/users/{userID}/momentum"`)
	assert.NotContains(t, w.Body.String(), `route="/api/v1/users/u1/momentum"`)
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/u1/overview", http.NoBody)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := serve(router, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-RateLimit-Remaining")

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/users/u1/overview", http.NoBody)
	req.Header.Set("Origin", "https://evil.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w = serve(router, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_LogsRequests(t *testing.T) {
	logger, logs := logging.NewObservedLogger()
	router := NewRouter(Options{Logger: logger})

	serve(router, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	serve(router, httptest.NewRequest(http.MethodGet, "/missing", http.NoBody))

	assert.Equal(t, 0, logs.FilterMessage("request completed").Len())
	rejected := logs.FilterMessage("request rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, "/missing", rejected[0].ContextMap()["path"])
	assert.NotEmpty(t, rejected[0].ContextMap()["trace_id"])
}

func TestRouter_RateLimit(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	limiter := ratelimit.NewSlidingWindow(ratelimit.Limit{Requests: 2, Window: time.Minute}, 0, nil)
	router := NewRouter(Options{
		Dashboard:   analytics.NewDashboard(storage.NewMemoryStore(), nil),
		Metrics:     metrics,
		RateLimiter: limiter,
		TrustProxy:  true,
	})

	request := func(ip, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		req.Header.Set("X-Real-IP", ip)
		return serve(router, req)
	}

	assert.Equal(t, http.StatusOK, request("203.0.113.7", "/api/v1/users/u1/momentum").Code)
	w := request("203.0.113.7", "/api/v1/users/u1/momentum")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = request("203.0.113.7", "/api/v1/users/u1/plateaus")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")

	assert.Equal(t, http.StatusOK, request("198.51.100.1", "/api/v1/users/u1/momentum").Code)
	assert.Equal(t, http.StatusOK, request("203.0.113.7", "/health").Code, "probes are not limited")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RateLimit.WithLabelValues(monitoring.RateLimitRejected)))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RateLimit.WithLabelValues(monitoring.RateLimitAllowed)))
}

func TestRouter_DefaultsDayLimits(t *testing.T) {
	router := NewRouter(Options{Dashboard: analytics.NewDashboard(storage.NewMemoryStore(), nil)})
	assert.Equal(t, handlers.DefaultLimits(), router.opts.Limits)

	router = NewRouter(Options{Limits: handlers.Limits{Trend: handlers.Window{Default: 7, Max: 14}}})
	assert.Equal(t, 14, router.opts.Limits.Trend.Max)
}
