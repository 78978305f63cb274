package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS analysis_results (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	session_id TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	scores JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS idx_analysis_results_user_created ON analysis_results(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_analysis_results_created ON analysis_results(created_at);

CREATE TABLE IF NOT EXISTS practice_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	scenario_id TEXT,
	session_type TEXT NOT NULL CHECK (session_type IN ('scenario', 'free_talk', 'watch')),
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_practice_sessions_user_started ON practice_sessions(user_id, started_at);

CREATE TABLE IF NOT EXISTS conversation_logs (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	speaker TEXT NOT NULL CHECK (speaker IN ('user', 'ai')),
	message TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_logs_session ON conversation_logs(session_id, timestamp);
`

// PostgresConfig configures the PostgreSQL backend
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// NewPostgresStore connects to PostgreSQL and verifies the connection
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*SQLStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLStore{
		db: db,
		dialect: dialect{
			name:        "postgres",
			schema:      postgresSchema,
			numbered:    true,
			scoresParam: "?::jsonb",
		},
	}

	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}
	return store, nil
}
