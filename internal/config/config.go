package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable the service reads
const EnvPrefix = "CONVOCOACH_"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server" mapstructure:"server"`
	Database  DatabaseConfig  `json:"database" mapstructure:"database"`
	Redis     RedisConfig     `json:"redis" mapstructure:"redis"`
	Cache     CacheConfig     `json:"cache" mapstructure:"cache"`
	Analytics AnalyticsConfig `json:"analytics" mapstructure:"analytics"`
	RateLimit RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port         int    `json:"port" mapstructure:"port"`
	Host         string `json:"host" mapstructure:"host"`
	ReadTimeout  int    `json:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`
	WriteTimeout int    `json:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`
	MaxBodyBytes int64  `json:"max_body_bytes" mapstructure:"max_body_bytes"`
	// RequestTimeout bounds a single analytics request, in seconds
	RequestTimeout int      `json:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`
	// TrustProxyHeaders takes client addresses from X-Forwarded-For and X-Real-IP
	TrustProxyHeaders bool `json:"trust_proxy_headers" mapstructure:"trust_proxy_headers"`
}

// DatabaseConfig represents the relational store holding analysis results
type DatabaseConfig struct {
	Driver          string `json:"driver" mapstructure:"driver"`
	DSN             string `json:"-" mapstructure:"dsn"` // Never serialize credentials
	MaxOpenConns    int    `json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int    `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime_minutes" mapstructure:"conn_max_lifetime_minutes"`
	RetryAttempts   int    `json:"retry_attempts" mapstructure:"retry_attempts"`
	AutoMigrate     bool   `json:"auto_migrate" mapstructure:"auto_migrate"`
	// BreakerFailureThreshold opens the storage circuit after this many
	// consecutive failed queries; 0 disables the breaker
	BreakerFailureThreshold int `json:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerResetSeconds     int `json:"breaker_reset_seconds" mapstructure:"breaker_reset_seconds"`
}

// RedisConfig represents the Redis connection used by the cache
type RedisConfig struct {
	Addr         string        `json:"addr" mapstructure:"addr"`
	Password     string        `json:"-" mapstructure:"password"`
	DB           int           `json:"db" mapstructure:"db"`
	PoolSize     int           `json:"pool_size" mapstructure:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
}

// CacheConfig represents the overview cache
type CacheConfig struct {
	Backend          string `json:"backend" mapstructure:"backend"`
	TTLSeconds       int    `json:"ttl_seconds" mapstructure:"ttl_seconds"`
	KeyPrefix        string `json:"key_prefix" mapstructure:"key_prefix"`
	FailureThreshold int    `json:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeout     int    `json:"reset_timeout_seconds" mapstructure:"reset_timeout_seconds"`
	MemoryMaxEntries int    `json:"memory_max_entries" mapstructure:"memory_max_entries"`
}

// AnalyticsConfig represents window defaults, caps and policies for the analyzers
type AnalyticsConfig struct {
	ProgressionDays           int  `json:"progression_days" mapstructure:"progression_days"`
	MaxProgressionDays        int  `json:"max_progression_days" mapstructure:"max_progression_days"`
	SkillDays                 int  `json:"skill_days" mapstructure:"skill_days"`
	MaxSkillDays              int  `json:"max_skill_days" mapstructure:"max_skill_days"`
	TrendDays                 int  `json:"trend_days" mapstructure:"trend_days"`
	MaxTrendDays              int  `json:"max_trend_days" mapstructure:"max_trend_days"`
	PredictionDays            int  `json:"prediction_days" mapstructure:"prediction_days"`
	MaxPredictionDays         int  `json:"max_prediction_days" mapstructure:"max_prediction_days"`
	CorrelationSkipIncomplete bool `json:"correlation_skip_incomplete" mapstructure:"correlation_skip_incomplete"`
	ScenarioPoolSize          int  `json:"scenario_pool_size" mapstructure:"scenario_pool_size"`
	SlowOperationMillis       int  `json:"slow_operation_ms" mapstructure:"slow_operation_ms"`
}

// RateLimitConfig represents per-client throttling of the analytics API
type RateLimitConfig struct {
	Enabled           bool   `json:"enabled" mapstructure:"enabled"`
	Backend           string `json:"backend" mapstructure:"backend"`
	RequestsPerMinute int    `json:"requests_per_minute" mapstructure:"requests_per_minute"`
	Burst             int    `json:"burst" mapstructure:"burst"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "localhost",
			ReadTimeout:    30,
			WriteTimeout:   30,
			MaxBodyBytes:   1 << 20,
			RequestTimeout: 15,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite3",
			DSN:             "./data/convocoach.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30,
			RetryAttempts:   3,
			AutoMigrate:     true,

			BreakerFailureThreshold: 5,
			BreakerResetSeconds:     30,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Cache: CacheConfig{
			Backend:          "redis",
			TTLSeconds:       3600,
			KeyPrefix:        "",
			FailureThreshold: 5,
			ResetTimeout:     30,
			MemoryMaxEntries: 10000,
		},
		Analytics: AnalyticsConfig{
			ProgressionDays:     30,
			MaxProgressionDays:  180,
			SkillDays:           30,
			MaxSkillDays:        365,
			TrendDays:           90,
			MaxTrendDays:        365,
			PredictionDays:      30,
			MaxPredictionDays:   90,
			ScenarioPoolSize:    35,
			SlowOperationMillis: 500,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			Backend:           "memory",
			RequestsPerMinute: 120,
			Burst:             20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Don't fail if .env doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := DefaultConfig()

	if path := os.Getenv(EnvPrefix + "CONFIG_FILE"); path != "" {
		if err := LoadFile(config, path); err != nil {
			return nil, err
		}
	}

	// Override with environment variables
	loadFromEnv(config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(config *Config) {
	loadServerConfig(config)
	loadDatabaseConfig(config)
	loadRedisConfig(config)
	loadCacheConfig(config)
	loadAnalyticsConfig(config)
	loadRateLimitConfig(config)
	loadLoggingConfig(config)
}

func getenv(key string) string {
	return os.Getenv(EnvPrefix + key)
}

func setInt(key string, target *int) {
	if v := getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

func setBool(key string, target *bool) {
	if v := getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func setString(key string, target *string) {
	if v := getenv(key); v != "" {
		*target = v
	}
}

// setList reads a comma-separated list, dropping empty items
func setList(key string, target *[]string) {
	v := getenv(key)
	if v == "" {
		return
	}
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*target = items
}

func setDuration(key string, target *time.Duration) {
	if v := getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

// loadServerConfig loads server configuration from environment
func loadServerConfig(config *Config) {
	setInt("PORT", &config.Server.Port)
	setString("HOST", &config.Server.Host)
	setInt("READ_TIMEOUT_SECONDS", &config.Server.ReadTimeout)
	setInt("WRITE_TIMEOUT_SECONDS", &config.Server.WriteTimeout)
	setInt("REQUEST_TIMEOUT_SECONDS", &config.Server.RequestTimeout)
	if v := getenv("MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Server.MaxBodyBytes = n
		}
	}
	setList("CORS_ALLOWED_ORIGINS", &config.Server.AllowedOrigins)
	setBool("TRUST_PROXY_HEADERS", &config.Server.TrustProxyHeaders)
}

// loadDatabaseConfig loads database configuration from environment. The
// unprefixed DATABASE_URL is honoured as a fallback for hosted deployments.
func loadDatabaseConfig(config *Config) {
	setString("DB_DRIVER", &config.Database.Driver)
	if dsn := getenv("DB_DSN"); dsn != "" {
		config.Database.DSN = dsn
	} else if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		config.Database.DSN = dsn
		config.Database.Driver = "postgres"
	}
	setInt("DB_MAX_OPEN_CONNS", &config.Database.MaxOpenConns)
	setInt("DB_MAX_IDLE_CONNS", &config.Database.MaxIdleConns)
	setInt("DB_CONN_MAX_LIFETIME_MINUTES", &config.Database.ConnMaxLifetime)
	setInt("DB_RETRY_ATTEMPTS", &config.Database.RetryAttempts)
	setBool("DB_AUTO_MIGRATE", &config.Database.AutoMigrate)
	setInt("DB_BREAKER_FAILURE_THRESHOLD", &config.Database.BreakerFailureThreshold)
	setInt("DB_BREAKER_RESET_SECONDS", &config.Database.BreakerResetSeconds)
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig(config *Config) {
	if addr := getenv("REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	} else if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
	setString("REDIS_PASSWORD", &config.Redis.Password)
	setInt("REDIS_DB", &config.Redis.DB)
	setInt("REDIS_POOL_SIZE", &config.Redis.PoolSize)
	setDuration("REDIS_DIAL_TIMEOUT", &config.Redis.DialTimeout)
	setDuration("REDIS_READ_TIMEOUT", &config.Redis.ReadTimeout)
	setDuration("REDIS_WRITE_TIMEOUT", &config.Redis.WriteTimeout)
}

// loadCacheConfig loads cache configuration from environment
func loadCacheConfig(config *Config) {
	setString("CACHE_BACKEND", &config.Cache.Backend)
	setInt("CACHE_TTL_SECONDS", &config.Cache.TTLSeconds)
	setString("CACHE_KEY_PREFIX", &config.Cache.KeyPrefix)
	setInt("CACHE_FAILURE_THRESHOLD", &config.Cache.FailureThreshold)
	setInt("CACHE_RESET_TIMEOUT_SECONDS", &config.Cache.ResetTimeout)
	setInt("CACHE_MEMORY_MAX_ENTRIES", &config.Cache.MemoryMaxEntries)
}

// loadAnalyticsConfig loads analytics window and policy settings from environment
func loadAnalyticsConfig(config *Config) {
	setInt("ANALYTICS_PROGRESSION_DAYS", &config.Analytics.ProgressionDays)
	setInt("ANALYTICS_MAX_PROGRESSION_DAYS", &config.Analytics.MaxProgressionDays)
	setInt("ANALYTICS_SKILL_DAYS", &config.Analytics.SkillDays)
	setInt("ANALYTICS_MAX_SKILL_DAYS", &config.Analytics.MaxSkillDays)
	setInt("ANALYTICS_TREND_DAYS", &config.Analytics.TrendDays)
	setInt("ANALYTICS_MAX_TREND_DAYS", &config.Analytics.MaxTrendDays)
	setInt("ANALYTICS_PREDICTION_DAYS", &config.Analytics.PredictionDays)
	setInt("ANALYTICS_MAX_PREDICTION_DAYS", &config.Analytics.MaxPredictionDays)
	setBool("ANALYTICS_CORRELATION_SKIP_INCOMPLETE", &config.Analytics.CorrelationSkipIncomplete)
	setInt("ANALYTICS_SCENARIO_POOL_SIZE", &config.Analytics.ScenarioPoolSize)
	setInt("ANALYTICS_SLOW_OPERATION_MS", &config.Analytics.SlowOperationMillis)
}

// loadRateLimitConfig loads rate limiting settings from environment
func loadRateLimitConfig(config *Config) {
	setBool("RATE_LIMIT_ENABLED", &config.RateLimit.Enabled)
	setString("RATE_LIMIT_BACKEND", &config.RateLimit.Backend)
	setInt("RATE_LIMIT_REQUESTS_PER_MINUTE", &config.RateLimit.RequestsPerMinute)
	setInt("RATE_LIMIT_BURST", &config.RateLimit.Burst)
}

// loadLoggingConfig loads logging configuration from environment
func loadLoggingConfig(config *Config) {
	setString("LOG_LEVEL", &config.Logging.Level)
	setString("LOG_FORMAT", &config.Logging.Format)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	// Validate database config
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	if c.Database.RetryAttempts < 0 {
		return fmt.Errorf("database retry attempts cannot be negative")
	}
	if c.Database.BreakerFailureThreshold < 0 {
		return fmt.Errorf("database breaker failure threshold cannot be negative")
	}
	if c.Database.BreakerFailureThreshold > 0 && c.Database.BreakerResetSeconds <= 0 {
		return fmt.Errorf("database breaker reset seconds must be positive")
	}

	// Validate cache config
	switch c.Cache.Backend {
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address cannot be empty when the redis cache is enabled")
		}
	case "memory", "none":
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	// Validate analytics config
	a := c.Analytics
	windows := []struct {
		name       string
		value, max int
	}{
		{"progression", a.ProgressionDays, a.MaxProgressionDays},
		{"skill", a.SkillDays, a.MaxSkillDays},
		{"trend", a.TrendDays, a.MaxTrendDays},
		{"prediction", a.PredictionDays, a.MaxPredictionDays},
	}
	for _, w := range windows {
		if w.value <= 0 {
			return fmt.Errorf("%s days must be positive", w.name)
		}
		if w.value > w.max {
			return fmt.Errorf("%s days %d exceeds maximum %d", w.name, w.value, w.max)
		}
	}
	if a.ScenarioPoolSize <= 0 {
		return fmt.Errorf("scenario pool size must be positive")
	}

	// Validate rate limit config
	if rl := c.RateLimit; rl.Enabled {
		switch rl.Backend {
		case "memory":
		case "redis":
			if c.Redis.Addr == "" {
				return fmt.Errorf("redis address cannot be empty when the redis rate limiter is enabled")
			}
		default:
			return fmt.Errorf("unsupported rate limit backend: %s", rl.Backend)
		}
		if rl.RequestsPerMinute <= 0 {
			return fmt.Errorf("rate limit requests per minute must be positive")
		}
		if rl.Burst < 0 {
			return fmt.Errorf("rate limit burst cannot be negative")
		}
	}

	return nil
}

// CacheTTL returns the overview cache lifetime
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// RequestTimeout returns the per-request deadline of the analytics API
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// Address returns the host:port the HTTP server listens on
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
