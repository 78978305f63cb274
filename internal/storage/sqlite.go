package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS analysis_results (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	session_id TEXT,
	created_at DATETIME NOT NULL,
	scores TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_analysis_results_user_created ON analysis_results(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_analysis_results_created ON analysis_results(created_at);

CREATE TABLE IF NOT EXISTS practice_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	scenario_id TEXT,
	session_type TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	ended_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_practice_sessions_user_started ON practice_sessions(user_id, started_at);

CREATE TABLE IF NOT EXISTS conversation_logs (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	speaker TEXT NOT NULL,
	message TEXT NOT NULL,
	timestamp DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_logs_session ON conversation_logs(session_id, timestamp);
`

// SQLiteConfig configures the SQLite backend
type SQLiteConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// NewSQLiteStore opens a SQLite database in WAL mode
func NewSQLiteStore(ctx context.Context, cfg SQLiteConfig) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_sync=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	store := &SQLStore{
		db: db,
		dialect: dialect{
			name:        "sqlite3",
			schema:      sqliteSchema,
			scoresParam: "?",
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
