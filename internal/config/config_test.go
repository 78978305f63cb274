package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Server defaults
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 30, cfg.Server.ReadTimeout)
	assert.Equal(t, 30, cfg.Server.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
	assert.Empty(t, cfg.Server.AllowedOrigins)

	// Database defaults
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Database.RetryAttempts)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 5, cfg.Database.BreakerFailureThreshold)

	// Cache defaults
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 3600, cfg.Cache.TTLSeconds)
	assert.Equal(t, time.Hour, cfg.CacheTTL())
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)

	// Analytics defaults
	assert.Equal(t, 30, cfg.Analytics.ProgressionDays)
	assert.Equal(t, 180, cfg.Analytics.MaxProgressionDays)
	assert.Equal(t, 90, cfg.Analytics.TrendDays)
	assert.Equal(t, 365, cfg.Analytics.MaxTrendDays)
	assert.Equal(t, 30, cfg.Analytics.SkillDays)
	assert.Equal(t, 365, cfg.Analytics.MaxSkillDays)
	assert.Equal(t, 30, cfg.Analytics.PredictionDays)
	assert.Equal(t, 90, cfg.Analytics.MaxPredictionDays)
	assert.False(t, cfg.Analytics.CorrelationSkipIncomplete)
	assert.Equal(t, 35, cfg.Analytics.ScenarioPoolSize)

	// Rate limit defaults
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, 120, cfg.RateLimit.RequestsPerMinute)

	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "breaker without reset period",
			mutate:  func(cfg *Config) { cfg.Database.BreakerResetSeconds = 0 },
			wantErr: true,
			errMsg:  "breaker reset seconds must be positive",
		},
		{
			name: "disabled breaker ignores reset period",
			mutate: func(cfg *Config) {
				cfg.Database.BreakerFailureThreshold = 0
				cfg.Database.BreakerResetSeconds = 0
			},
		},
		{
			name:    "unknown rate limit backend",
			mutate:  func(cfg *Config) { cfg.RateLimit.Backend = "memcached" },
			wantErr: true,
			errMsg:  "unsupported rate limit backend",
		},
		{
			name:    "zero rate limit",
			mutate:  func(cfg *Config) { cfg.RateLimit.RequestsPerMinute = 0 },
			wantErr: true,
			errMsg:  "requests per minute must be positive",
		},
		{
			name: "disabled rate limit is not validated",
			mutate: func(cfg *Config) {
				cfg.RateLimit.Enabled = false
				cfg.RateLimit.Backend = ""
			},
		},
		{
			name:    "zero request timeout",
			mutate:  func(cfg *Config) { cfg.Server.RequestTimeout = 0 },
			wantErr: true,
			errMsg:  "request timeout must be positive",
		},
		{
			name:    "invalid server port - too low",
			mutate:  func(cfg *Config) { cfg.Server.Port = 0 },
			wantErr: true,
			errMsg:  "invalid server port",
		},
		{
			name:    "invalid server port - too high",
			mutate:  func(cfg *Config) { cfg.Server.Port = 70000 },
			wantErr: true,
			errMsg:  "invalid server port",
		},
		{
			name:    "empty server host",
			mutate:  func(cfg *Config) { cfg.Server.Host = "" },
			wantErr: true,
			errMsg:  "server host cannot be empty",
		},
		{
			name:    "unknown driver",
			mutate:  func(cfg *Config) { cfg.Database.Driver = "mysql" },
			wantErr: true,
			errMsg:  "unsupported database driver",
		},
		{
			name:    "empty dsn",
			mutate:  func(cfg *Config) { cfg.Database.DSN = "" },
			wantErr: true,
			errMsg:  "database DSN cannot be empty",
		},
		{
			name:    "redis backend without address",
			mutate:  func(cfg *Config) { cfg.Redis.Addr = "" },
			wantErr: true,
			errMsg:  "redis address cannot be empty",
		},
		{
			name: "memory backend without redis address",
			mutate: func(cfg *Config) {
				cfg.Cache.Backend = "memory"
				cfg.Redis.Addr = ""
			},
		},
		{
			name:    "unknown cache backend",
			mutate:  func(cfg *Config) { cfg.Cache.Backend = "memcached" },
			wantErr: true,
			errMsg:  "unsupported cache backend",
		},
		{
			name:    "non-positive ttl",
			mutate:  func(cfg *Config) { cfg.Cache.TTLSeconds = 0 },
			wantErr: true,
			errMsg:  "cache TTL must be positive",
		},
		{
			name:    "trend window above cap",
			mutate:  func(cfg *Config) { cfg.Analytics.TrendDays = 400 },
			wantErr: true,
			errMsg:  "trend days 400 exceeds maximum 365",
		},
		{
			name: "skill window checked against its own cap",
			mutate: func(cfg *Config) {
				cfg.Analytics.MaxSkillDays = 60
				cfg.Analytics.SkillDays = 90
			},
			wantErr: true,
			errMsg:  "skill days 90 exceeds maximum 60",
		},
		{
			name:    "zero prediction window",
			mutate:  func(cfg *Config) { cfg.Analytics.PredictionDays = 0 },
			wantErr: true,
			errMsg:  "prediction days must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_WithEnvVars(t *testing.T) {
	t.Setenv("CONVOCOACH_PORT", "9090")
	t.Setenv("CONVOCOACH_DB_DRIVER", "postgres")
	t.Setenv("CONVOCOACH_DB_DSN", "postgres://coach@localhost/coach?sslmode=disable")
	t.Setenv("CONVOCOACH_CACHE_BACKEND", "memory")
	t.Setenv("CONVOCOACH_CACHE_TTL_SECONDS", "120")
	t.Setenv("CONVOCOACH_REDIS_READ_TIMEOUT", "750ms")
	t.Setenv("CONVOCOACH_ANALYTICS_CORRELATION_SKIP_INCOMPLETE", "true")
	t.Setenv("CONVOCOACH_ANALYTICS_MAX_SKILL_DAYS", "120")
	t.Setenv("CONVOCOACH_LOG_LEVEL", "debug")
	t.Setenv("CONVOCOACH_CORS_ALLOWED_ORIGINS", "https://app.example.com, ,*.coach.example")
	t.Setenv("CONVOCOACH_MAX_BODY_BYTES", "2048")
	t.Setenv("CONVOCOACH_RATE_LIMIT_BURST", "0")
	t.Setenv("CONVOCOACH_TRUST_PROXY_HEADERS", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 750*time.Millisecond, cfg.Redis.ReadTimeout)
	assert.True(t, cfg.Analytics.CorrelationSkipIncomplete)
	assert.Equal(t, 120, cfg.Analytics.MaxSkillDays)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"https://app.example.com", "*.coach.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(2048), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 0, cfg.RateLimit.Burst)
	assert.True(t, cfg.Server.TrustProxyHeaders)
}

func TestLoadConfig_WithInvalidEnvVars(t *testing.T) {
	t.Setenv("CONVOCOACH_PORT", "invalid")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port) // Should keep default
}

func TestLoadConfig_DatabaseURLFallback(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/app")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@db:5432/app", cfg.Database.DSN)
}

func TestLoadConfig_InvalidConfig(t *testing.T) {
	t.Setenv("CONVOCOACH_CACHE_BACKEND", "memcached")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "convocoach.yaml")
	content := `
server:
  port: "7070"
  allowed_origins:
    - https://app.example.com
redis:
  addr: cache:6379
  dial_timeout: 2s
analytics:
  trend_days: 120
  correlation_skip_incomplete: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONVOCOACH_CONFIG_FILE", path)
	t.Setenv("CONVOCOACH_HOST", "0.0.0.0")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, 3*time.Second, cfg.Redis.ReadTimeout)
	assert.Equal(t, 120, cfg.Analytics.TrendDays)
	assert.True(t, cfg.Analytics.CorrelationSkipIncomplete)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoadYAML_OriginsAsString(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, LoadYAML(cfg, []byte("server:\n  allowed_origins: \"https://a.example,https://b.example\"\n")))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoadYAML_UnknownKey(t *testing.T) {
	err := LoadYAML(DefaultConfig(), []byte("server:\n  prot: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode config")
}

func TestLoadFile_Missing(t *testing.T) {
	err := LoadFile(DefaultConfig(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfig_Address(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:8080", cfg.Address())
}
