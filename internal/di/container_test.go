package di

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convocoach/internal/api/handlers"
	"convocoach/internal/cache"
	"convocoach/internal/config"
	"convocoach/internal/logging"
	"convocoach/internal/ratelimit"
	"convocoach/internal/storage"
	"convocoach/pkg/types"
)

var testNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "convocoach.db")
	cfg.Cache.Backend = cache.BackendMemory
	return cfg
}

func newTestContainer(t *testing.T, cfg *config.Config, opts ...Option) *Container {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewNoOpLogger()), WithClock(func() time.Time { return testNow })}, opts...)
	c, err := NewContainer(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewContainer(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(cfg *config.Config)
		wantCache interface{}
		wantProbe []string
	}{
		{
			name:      "sqlite with memory cache",
			mutate:    func(*config.Config) {},
			wantCache: &cache.Resilient{},
			wantProbe: []string{"cache", "storage"},
		},
		{
			name:      "cache disabled",
			mutate:    func(cfg *config.Config) { cfg.Cache.Backend = cache.BackendNone },
			wantCache: cache.Noop{},
			wantProbe: []string{"storage"},
		},
		{
			name: "unreachable redis degrades",
			mutate: func(cfg *config.Config) {
				cfg.Cache.Backend = cache.BackendRedis
				cfg.Redis.Addr = "127.0.0.1:1"
				cfg.Redis.DialTimeout = 100 * time.Millisecond
			},
			wantCache: &cache.Resilient{},
			wantProbe: []string{"cache", "storage"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			c := newTestContainer(t, cfg)

			assert.IsType(t, &storage.CircuitBreakerStore{}, c.Store)
			assert.IsType(t, tt.wantCache, c.Cache)
			assert.Equal(t, tt.wantProbe, c.Health.ProbeNames())
			assert.NotNil(t, c.Dashboard)
			assert.NotNil(t, c.Router)
			assert.NotNil(t, c.Metrics)
		})
	}
}

func TestNewContainer_RateLimiter(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
		want   interface{}
	}{
		{"disabled", func(cfg *config.Config) { cfg.RateLimit.Enabled = false }, nil},
		{"memory", func(*config.Config) {}, &ratelimit.SlidingWindow{}},
		{"redis with local fallback", func(cfg *config.Config) {
			cfg.RateLimit.Backend = "redis"
			cfg.Redis.Addr = "127.0.0.1:1"
		}, &ratelimit.Fallback{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			c := newTestContainer(t, cfg)
			if tt.want == nil {
				assert.Nil(t, c.Limiter)
				return
			}
			assert.IsType(t, tt.want, c.Limiter)
		})
	}
}

func TestNewContainer_WithoutStorageBreaker(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.BreakerFailureThreshold = 0
	c := newTestContainer(t, cfg)
	assert.IsType(t, &storage.RetryableStore{}, c.Store)
}

func TestNewContainer_HealthReportsBreakers(t *testing.T) {
	c := newTestContainer(t, testConfig(t))

	w := httptest.NewRecorder()
	c.Router.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data handlers.HealthStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	for _, name := range []string{"storage", "cache"} {
		check, ok := body.Data.Checks[name]
		require.True(t, ok, name)
		assert.Equal(t, handlers.StatusHealthy, check.Status, name)
		require.NotNil(t, check.Breaker, name)
		assert.Equal(t, "closed", check.Breaker.State, name)
	}
}

func TestNewContainer_UnsupportedDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "mysql"

	_, err := NewContainer(context.Background(), cfg, WithLogger(logging.NewNoOpLogger()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize storage")
}

func TestContainer_Limits(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analytics.TrendDays = 60
	cfg.Analytics.MaxTrendDays = 200
	cfg.Analytics.MaxSkillDays = 120
	c := newTestContainer(t, cfg)

	limits := c.Limits()
	assert.Equal(t, handlers.Window{Default: 60, Max: 200}, limits.Trend)
	assert.Equal(t, handlers.Window{Default: 30, Max: 120}, limits.Skill)
	assert.Equal(t, handlers.Window{Default: 30, Max: 180}, limits.Progression)
	assert.Equal(t, handlers.Window{Default: 30, Max: 90}, limits.Prediction)
}

func TestContainer_ServesOverview(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.SaveAnalysisResult(context.Background(), &types.AnalysisResult{
		ID: "ar1", UserID: "u1", CreatedAt: testNow.Add(-time.Hour),
		Scores: map[string]float64{"empathy": 81},
	}))
	c := newTestContainer(t, testConfig(t), WithStore(store), WithVersion("1.2.3"))

	w := httptest.NewRecorder()
	c.Router.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/overview", http.NoBody))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"empathy":81`)

	w = httptest.NewRecorder()
	c.Router.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"1.2.3"`)

	w = httptest.NewRecorder()
	c.Router.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	assert.Contains(t, w.Body.String(), "go_goroutines")
	assert.Contains(t, w.Body.String(), "convocoach_cache_requests_total")
}

func TestContainer_Close(t *testing.T) {
	c, err := NewContainer(context.Background(), testConfig(t), WithLogger(logging.NewNoOpLogger()))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.Error(t, c.Store.HealthCheck(context.Background()))
}
