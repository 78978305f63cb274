package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"convocoach/internal/errors"
	"convocoach/pkg/types"
)

// dialect captures what differs between the SQL backends
type dialect struct {
	name        string
	schema      string
	numbered    bool // $1-style placeholders instead of ?
	scoresParam string
}

// SQLStore implements Store on database/sql
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// DB exposes the underlying handle for maintenance tasks
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Migrate creates the tables and indexes if they do not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(s.dialect.schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.WrapDatabaseErrorContext(ctx, err, "migrate")
		}
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that number their parameters
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// rangeClause appends time bounds on column for the non-zero ends of tr
func rangeClause(column string, tr types.TimeRange, args []interface{}) (string, []interface{}) {
	var clause string
	if !tr.From.IsZero() {
		clause += " AND " + column + " >= ?"
		args = append(args, tr.From.UTC())
	}
	if !tr.To.IsZero() {
		clause += " AND " + column + " <= ?"
		args = append(args, tr.To.UTC())
	}
	return clause, args
}

const analysisColumns = "id, user_id, session_id, created_at, scores"

// AnalysisResults returns a user's analysis results within the range
func (s *SQLStore) AnalysisResults(ctx context.Context, userID string, tr types.TimeRange) ([]*types.AnalysisResult, error) {
	clause, args := rangeClause("created_at", tr, []interface{}{userID})
	query := "SELECT " + analysisColumns + " FROM analysis_results WHERE user_id = ?" + clause + " ORDER BY created_at ASC, id ASC"
	return s.queryAnalysisResults(ctx, "analysis_results", query, args...)
}

// LatestAnalysisResult returns a user's newest analysis result
func (s *SQLStore) LatestAnalysisResult(ctx context.Context, userID string) (*types.AnalysisResult, error) {
	query := "SELECT " + analysisColumns + " FROM analysis_results WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1"
	results, err := s.queryAnalysisResults(ctx, "latest_analysis_result", query, userID)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}

// PopulationAnalysisResults returns every user's analysis results within the range
func (s *SQLStore) PopulationAnalysisResults(ctx context.Context, tr types.TimeRange) ([]*types.AnalysisResult, error) {
	clause, args := rangeClause("created_at", tr, nil)
	query := "SELECT " + analysisColumns + " FROM analysis_results WHERE 1=1" + clause + " ORDER BY created_at ASC, id ASC"
	return s.queryAnalysisResults(ctx, "population_analysis_results", query, args...)
}

func (s *SQLStore) queryAnalysisResults(ctx context.Context, operation, query string, args ...interface{}) ([]*types.AnalysisResult, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errors.WrapDatabaseErrorContext(ctx, err, operation)
	}
	defer func() { _ = rows.Close() }()

	var results []*types.AnalysisResult
	for rows.Next() {
		var (
			ar        types.AnalysisResult
			sessionID sql.NullString
			scores    []byte
		)
		if err := rows.Scan(&ar.ID, &ar.UserID, &sessionID, &ar.CreatedAt, &scores); err != nil {
			return nil, errors.WrapDatabaseErrorContext(ctx, err, operation)
		}
		ar.SessionID = sessionID.String
		if len(scores) > 0 {
			if err := json.Unmarshal(scores, &ar.Scores); err != nil {
				return nil, errors.WrapDatabaseErrorContext(ctx, fmt.Errorf("decode scores for %s: %w", ar.ID, err), operation)
			}
		}
		results = append(results, &ar)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapDatabaseErrorContext(ctx, err, operation)
	}
	return results, nil
}

// PracticeSessions returns a user's practice sessions started within the range
func (s *SQLStore) PracticeSessions(ctx context.Context, userID string, tr types.TimeRange) ([]*types.PracticeSession, error) {
	clause, args := rangeClause("started_at", tr, []interface{}{userID})
	query := "SELECT id, user_id, scenario_id, session_type, started_at, ended_at FROM practice_sessions WHERE user_id = ?" +
		clause + " ORDER BY started_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errors.WrapDatabaseErrorContext(ctx, err, "practice_sessions")
	}
	defer func() { _ = rows.Close() }()

	var sessions []*types.PracticeSession
	for rows.Next() {
		var (
			ps         types.PracticeSession
			scenarioID sql.NullString
			endedAt    sql.NullTime
		)
		if err := rows.Scan(&ps.ID, &ps.UserID, &scenarioID, &ps.SessionType, &ps.StartedAt, &endedAt); err != nil {
			return nil, errors.WrapDatabaseErrorContext(ctx, err, "practice_sessions")
		}
		if scenarioID.Valid {
			id := scenarioID.String
			ps.ScenarioID = &id
		}
		if endedAt.Valid {
			t := endedAt.Time
			ps.EndedAt = &t
		}
		sessions = append(sessions, &ps)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapDatabaseErrorContext(ctx, err, "practice_sessions")
	}
	return sessions, nil
}

// ConversationLogs returns the messages exchanged in one session
func (s *SQLStore) ConversationLogs(ctx context.Context, sessionID string) ([]*types.ConversationLog, error) {
	query := "SELECT id, session_id, speaker, message, timestamp FROM conversation_logs WHERE session_id = ? ORDER BY timestamp ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), sessionID)
	if err != nil {
		return nil, errors.WrapDatabaseErrorContext(ctx, err, "conversation_logs")
	}
	defer func() { _ = rows.Close() }()

	var logs []*types.ConversationLog
	for rows.Next() {
		var cl types.ConversationLog
		if err := rows.Scan(&cl.ID, &cl.SessionID, &cl.Speaker, &cl.Message, &cl.Timestamp); err != nil {
			return nil, errors.WrapDatabaseErrorContext(ctx, err, "conversation_logs")
		}
		logs = append(logs, &cl)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapDatabaseErrorContext(ctx, err, "conversation_logs")
	}
	return logs, nil
}

// SaveAnalysisResult inserts an analysis result
func (s *SQLStore) SaveAnalysisResult(ctx context.Context, result *types.AnalysisResult) error {
	if err := result.Validate(); err != nil {
		return errors.WrapValidationError(err, "analysis_result")
	}
	scores, err := json.Marshal(result.Scores)
	if err != nil {
		return fmt.Errorf("failed to encode scores: %w", err)
	}

	query := "INSERT INTO analysis_results (id, user_id, session_id, created_at, scores) VALUES (?, ?, ?, ?, " + s.dialect.scoresParam + ")"
	_, err = s.db.ExecContext(ctx, s.rebind(query),
		result.ID, result.UserID, nullString(result.SessionID), result.CreatedAt.UTC(), string(scores))
	return errors.WrapDatabaseErrorContext(ctx, err, "save_analysis_result")
}

// SavePracticeSession inserts a practice session
func (s *SQLStore) SavePracticeSession(ctx context.Context, session *types.PracticeSession) error {
	if err := session.Validate(); err != nil {
		return errors.WrapValidationError(err, "practice_session")
	}

	var scenarioID interface{}
	if session.ScenarioID != nil {
		scenarioID = *session.ScenarioID
	}
	var endedAt interface{}
	if session.EndedAt != nil {
		endedAt = session.EndedAt.UTC()
	}

	query := "INSERT INTO practice_sessions (id, user_id, scenario_id, session_type, started_at, ended_at) VALUES (?, ?, ?, ?, ?, ?)"
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		session.ID, session.UserID, scenarioID, string(session.SessionType), session.StartedAt.UTC(), endedAt)
	return errors.WrapDatabaseErrorContext(ctx, err, "save_practice_session")
}

// SaveConversationLog inserts a conversation log line
func (s *SQLStore) SaveConversationLog(ctx context.Context, log *types.ConversationLog) error {
	if err := log.Validate(); err != nil {
		return errors.WrapValidationError(err, "conversation_log")
	}

	query := "INSERT INTO conversation_logs (id, session_id, speaker, message, timestamp) VALUES (?, ?, ?, ?, ?)"
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		log.ID, log.SessionID, string(log.Speaker), log.Message, log.Timestamp.UTC())
	return errors.WrapDatabaseErrorContext(ctx, err, "save_conversation_log")
}

// HealthCheck pings the database
func (s *SQLStore) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return errors.WrapDatabaseErrorContext(ctx, s.db.PingContext(pingCtx), "ping")
}

// Close closes the database handle
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
