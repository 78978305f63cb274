// Package storage provides read access to the analysis results, practice
// sessions and conversation logs written by the conversation service.
package storage

import (
	"context"

	"convocoach/pkg/types"
)

// Repository defines the queries the analytics core runs against the
// relational store. Result slices are ordered by time ascending.
type Repository interface {
	// AnalysisResults returns a user's analysis results within the range
	AnalysisResults(ctx context.Context, userID string, tr types.TimeRange) ([]*types.AnalysisResult, error)

	// LatestAnalysisResult returns a user's newest analysis result, or nil when there is none
	LatestAnalysisResult(ctx context.Context, userID string) (*types.AnalysisResult, error)

	// PracticeSessions returns a user's practice sessions started within the range
	PracticeSessions(ctx context.Context, userID string, tr types.TimeRange) ([]*types.PracticeSession, error)

	// ConversationLogs returns the messages exchanged in one session
	ConversationLogs(ctx context.Context, sessionID string) ([]*types.ConversationLog, error)

	// PopulationAnalysisResults returns every user's analysis results within the range
	PopulationAnalysisResults(ctx context.Context, tr types.TimeRange) ([]*types.AnalysisResult, error)
}

// Writer stores records. The analytics core never writes; the seeder and
// tests do.
type Writer interface {
	SaveAnalysisResult(ctx context.Context, result *types.AnalysisResult) error
	SavePracticeSession(ctx context.Context, session *types.PracticeSession) error
	SaveConversationLog(ctx context.Context, log *types.ConversationLog) error
}

// Store is a full persistence backend
type Store interface {
	Repository
	Writer

	// HealthCheck verifies the backend is reachable
	HealthCheck(ctx context.Context) error

	// Close the connection
	Close() error
}
