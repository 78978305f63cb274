// Package di wires the service's dependencies from configuration
package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"convocoach/internal/analytics"
	"convocoach/internal/api"
	"convocoach/internal/api/handlers"
	"convocoach/internal/cache"
	"convocoach/internal/circuitbreaker"
	"convocoach/internal/config"
	"convocoach/internal/logging"
	"convocoach/internal/monitoring"
	"convocoach/internal/ratelimit"
	"convocoach/internal/storage"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    logging.Logger
	Registry  *prometheus.Registry
	Metrics   *monitoring.Metrics
	Store     storage.Store
	Cache     cache.Cache
	Dashboard *analytics.Dashboard
	Limiter   ratelimit.Limiter
	Health    *handlers.HealthHandler
	Router    *api.Router

	version string
	now     func() time.Time
	redis   *cache.RedisCache
	probes  []handlers.Probe
	closers []func() error
}

// Option customizes container construction
type Option func(*Container)

// WithLogger replaces the logger built from the logging section
func WithLogger(logger logging.Logger) Option {
	return func(c *Container) { c.Logger = logger }
}

// WithStore uses an existing store instead of opening the configured database
func WithStore(store storage.Store) Option {
	return func(c *Container) { c.Store = store }
}

// WithVersion sets the version reported by the health endpoint
func WithVersion(version string) Option {
	return func(c *Container) { c.version = version }
}

// WithClock fixes the analyzers' notion of now
func WithClock(now func() time.Time) Option {
	return func(c *Container) { c.now = now }
}

// NewContainer creates a new dependency injection container. Storage
// failures are fatal; an unreachable Redis only degrades the service.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	c := &Container{Config: cfg, version: "dev"}
	for _, opt := range opts {
		opt(c)
	}

	c.initializeObservability()

	// Initialize in dependency order
	if err := c.initializeStorage(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.initializeCache(ctx)
	c.initializeRateLimit()
	c.initializeAnalytics()
	c.initializeAPI()

	return c, nil
}

func (c *Container) initializeObservability() {
	if c.Logger == nil {
		c.Logger = logging.NewLoggerWithFormat(logging.ParseLogLevel(c.Config.Logging.Level), c.Config.Logging.Format)
	}
	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = monitoring.NewMetrics(c.Registry)
}

// initializeStorage opens the configured database and wraps it with retries
// and, unless disabled, a circuit breaker
func (c *Container) initializeStorage(ctx context.Context) error {
	if c.Store != nil {
		c.probes = append(c.probes, handlers.Probe{Name: "storage", Critical: true, Check: c.Store.HealthCheck})
		return nil
	}

	db := c.Config.Database
	lifetime := time.Duration(db.ConnMaxLifetime) * time.Minute

	var base storage.Store
	switch db.Driver {
	case "postgres":
		store, err := storage.NewPostgresStore(ctx, storage.PostgresConfig{
			DSN:             db.DSN,
			MaxOpenConns:    db.MaxOpenConns,
			MaxIdleConns:    db.MaxIdleConns,
			ConnMaxLifetime: lifetime,
			AutoMigrate:     db.AutoMigrate,
		})
		if err != nil {
			return err
		}
		base = store
	case "sqlite3":
		store, err := storage.NewSQLiteStore(ctx, storage.SQLiteConfig{
			Path:            db.DSN,
			MaxOpenConns:    db.MaxOpenConns,
			MaxIdleConns:    db.MaxIdleConns,
			ConnMaxLifetime: lifetime,
			AutoMigrate:     db.AutoMigrate,
		})
		if err != nil {
			return err
		}
		base = store
	default:
		return fmt.Errorf("unsupported database driver: %s", db.Driver)
	}

	c.Store = storage.NewRetryableStore(base, storage.DefaultRetryPolicy(db.RetryAttempts), c.Metrics, c.Logger)
	probe := handlers.Probe{Name: "storage", Critical: true}
	if db.BreakerFailureThreshold > 0 {
		guarded := storage.NewCircuitBreakerStore(c.Store, &circuitbreaker.Config{
			FailureThreshold:      db.BreakerFailureThreshold,
			SuccessThreshold:      2,
			Timeout:               time.Duration(db.BreakerResetSeconds) * time.Second,
			MaxConcurrentRequests: 3,
		}, c.Metrics, c.Logger)
		probe.Breaker = guarded.Stats
		c.Store = guarded
	}
	probe.Check = c.Store.HealthCheck
	c.closers = append(c.closers, c.Store.Close)
	c.probes = append(c.probes, probe)
	c.Logger.Info("storage initialized", "driver", db.Driver, "retry_attempts", db.RetryAttempts)
	return nil
}

// initializeCache builds the overview cache behind a circuit breaker
func (c *Container) initializeCache(ctx context.Context) {
	cc := c.Config.Cache

	var backend cache.Cache
	probe := handlers.Probe{Name: "cache", Check: func(context.Context) error { return nil }}
	switch cc.Backend {
	case cache.BackendRedis:
		redisCfg := c.redisConfig()
		rc, err := cache.NewRedisCache(ctx, redisCfg)
		if err != nil {
			c.Logger.Warn("redis unavailable at startup, overviews are computed directly until it recovers",
				"addr", redisCfg.Addr, "error", err)
			rc, err = cache.NewUnverifiedRedisCache(redisCfg)
			if err != nil {
				c.Logger.Error("redis cache disabled", "error", err)
				c.Cache = cache.Noop{}
				return
			}
		}
		c.redis = rc
		probe.Check = rc.Ping
		backend = rc
	case cache.BackendMemory:
		backend = cache.NewMemoryCache(cache.MemoryConfig{MaxEntries: cc.MemoryMaxEntries})
	default:
		c.Cache = cache.Noop{}
		return
	}

	resilient := cache.NewResilient(backend, cache.ResilientConfig{
		Name:             cc.Backend,
		FailureThreshold: cc.FailureThreshold,
		ResetTimeout:     time.Duration(cc.ResetTimeout) * time.Second,
	}, c.Metrics, c.Logger)
	probe.Breaker = resilient.Stats
	c.probes = append(c.probes, probe)
	c.closers = append(c.closers, resilient.Close)
	c.Cache = resilient
	c.Logger.Info("cache initialized", "backend", cc.Backend, "ttl", c.Config.CacheTTL().String())
}

func (c *Container) redisConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:         c.Config.Redis.Addr,
		Password:     c.Config.Redis.Password,
		DB:           c.Config.Redis.DB,
		PoolSize:     c.Config.Redis.PoolSize,
		DialTimeout:  c.Config.Redis.DialTimeout,
		ReadTimeout:  c.Config.Redis.ReadTimeout,
		WriteTimeout: c.Config.Redis.WriteTimeout,
		KeyPrefix:    c.Config.Cache.KeyPrefix,
	}
}

// initializeRateLimit builds the per-client limiter. The Redis window is
// shared across instances and falls back to a local window on errors.
func (c *Container) initializeRateLimit() {
	rl := c.Config.RateLimit
	if !rl.Enabled {
		return
	}
	limit := ratelimit.Limit{Requests: rl.RequestsPerMinute, Window: time.Minute, Burst: rl.Burst}
	local := ratelimit.NewSlidingWindow(limit, time.Minute, nil)
	c.closers = append(c.closers, local.Close)
	c.Limiter = local

	if rl.Backend != "redis" {
		return
	}
	if c.redis == nil {
		rc, err := cache.NewUnverifiedRedisCache(c.redisConfig())
		if err != nil {
			c.Logger.Error("redis rate limiter disabled, using local window", "error", err)
			return
		}
		c.redis = rc
		c.closers = append(c.closers, rc.Close)
	}
	c.Limiter = ratelimit.NewFallback(
		ratelimit.NewRedisLimiter(c.redis.Client(), limit, c.Config.Cache.KeyPrefix), local, c.Logger)
}

func (c *Container) initializeAnalytics() {
	a := c.Config.Analytics
	opts := []analytics.Option{
		analytics.WithLogger(c.Logger),
		analytics.WithMetrics(c.Metrics),
		analytics.WithSettings(analytics.Settings{
			CorrelationSkipIncomplete: a.CorrelationSkipIncomplete,
			ScenarioPoolSize:          a.ScenarioPoolSize,
			OverviewTTL:               c.Config.CacheTTL(),
			SlowOperation:             time.Duration(a.SlowOperationMillis) * time.Millisecond,
		}),
	}
	if c.now != nil {
		opts = append(opts, analytics.WithClock(c.now))
	}
	c.Dashboard = analytics.NewDashboard(c.Store, c.Cache, opts...)
}

func (c *Container) initializeAPI() {
	c.Health = handlers.NewHealthHandler(c.version, c.probes...)
	c.Router = api.NewRouter(api.Options{
		Dashboard:      c.Dashboard,
		Limits:         c.Limits(),
		Health:         c.Health,
		Metrics:        c.Metrics,
		Gatherer:       c.Registry,
		Logger:         c.Logger,
		AllowedOrigins: c.Config.Server.AllowedOrigins,
		RateLimiter:    c.Limiter,
		TrustProxy:     c.Config.Server.TrustProxyHeaders,
		RequestTimeout: c.Config.RequestTimeout(),
		MaxBodyBytes:   c.Config.Server.MaxBodyBytes,
	})
}

// Limits maps the analytics section to the API's day windows
func (c *Container) Limits() handlers.Limits {
	a := c.Config.Analytics
	return handlers.Limits{
		Progression: handlers.Window{Default: a.ProgressionDays, Max: a.MaxProgressionDays},
		Skill:       handlers.Window{Default: a.SkillDays, Max: a.MaxSkillDays},
		Trend:       handlers.Window{Default: a.TrendDays, Max: a.MaxTrendDays},
		Prediction:  handlers.Window{Default: a.PredictionDays, Max: a.MaxPredictionDays},
	}
}

// Close releases the cache and the database in reverse creation order
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
