// Package types provides the core records shared by the analytics service:
// analysis results, practice sessions and conversation logs written by the
// roleplay conversation service.
package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MinScore and MaxScore bound every skill score.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// SessionType represents how a practice session was started
type SessionType string

const (
	// SessionTypeScenario is a guided roleplay on a catalog scenario
	SessionTypeScenario SessionType = "scenario"
	// SessionTypeFreeTalk is an open conversation without a scenario
	SessionTypeFreeTalk SessionType = "free_talk"
	// SessionTypeWatch is a passive session watching two AI personas
	SessionTypeWatch SessionType = "watch"
)

// Valid checks if the session type is valid
func (st SessionType) Valid() bool {
	switch st {
	case SessionTypeScenario, SessionTypeFreeTalk, SessionTypeWatch:
		return true
	default:
		return false
	}
}

// Speaker identifies the author of a conversation log line
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerAI   Speaker = "ai"
)

// Valid checks if the speaker is valid
func (s Speaker) Valid() bool {
	return s == SpeakerUser || s == SpeakerAI
}

// AnalysisResult is one AI evaluation of a conversation. Scores maps a skill
// name to a value in [0, 100]; a skill absent from the map has no data.
type AnalysisResult struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	SessionID string             `json:"session_id"`
	CreatedAt time.Time          `json:"created_at"`
	Scores    map[string]float64 `json:"scores"`
}

// NewAnalysisResult creates an analysis result with a generated ID
func NewAnalysisResult(userID, sessionID string, scores map[string]float64) (*AnalysisResult, error) {
	ar := &AnalysisResult{
		ID:        uuid.New().String(),
		UserID:    userID,
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
		Scores:    scores,
	}
	if err := ar.Validate(); err != nil {
		return nil, err
	}
	return ar, nil
}

// Validate checks if the analysis result is valid
func (ar *AnalysisResult) Validate() error {
	if ar.ID == "" {
		return errors.New("ID cannot be empty")
	}
	if ar.UserID == "" {
		return errors.New("user ID cannot be empty")
	}
	if ar.CreatedAt.IsZero() {
		return errors.New("created at cannot be zero")
	}
	for skill, score := range ar.Scores {
		if score < MinScore || score > MaxScore {
			return fmt.Errorf("score for %s must be between 0 and 100, got %.2f", skill, score)
		}
	}
	return nil
}

// Score returns the score recorded for a skill and whether it is present
func (ar *AnalysisResult) Score(skill string) (float64, bool) {
	if ar.Scores == nil {
		return 0, false
	}
	v, ok := ar.Scores[skill]
	return v, ok
}

// PracticeSession is a single roleplay or free-talk session
type PracticeSession struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	ScenarioID  *string     `json:"scenario_id,omitempty"`
	SessionType SessionType `json:"session_type"`
	StartedAt   time.Time   `json:"started_at"`
	EndedAt     *time.Time  `json:"ended_at,omitempty"`
}

// Validate checks if the practice session is valid
func (ps *PracticeSession) Validate() error {
	if ps.ID == "" {
		return errors.New("ID cannot be empty")
	}
	if ps.UserID == "" {
		return errors.New("user ID cannot be empty")
	}
	if !ps.SessionType.Valid() {
		return fmt.Errorf("invalid session type: %s", ps.SessionType)
	}
	if ps.SessionType == SessionTypeScenario && (ps.ScenarioID == nil || *ps.ScenarioID == "") {
		return errors.New("scenario sessions require a scenario ID")
	}
	if ps.StartedAt.IsZero() {
		return errors.New("started at cannot be zero")
	}
	if ps.EndedAt != nil && ps.EndedAt.Before(ps.StartedAt) {
		return errors.New("ended at cannot be before started at")
	}
	return nil
}

// Duration returns the session length, zero while the session is still open
func (ps *PracticeSession) Duration() time.Duration {
	if ps.EndedAt == nil {
		return 0
	}
	return ps.EndedAt.Sub(ps.StartedAt)
}

// ConversationLog is one message exchanged during a practice session
type ConversationLog struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Speaker   Speaker   `json:"speaker"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks if the conversation log is valid
func (cl *ConversationLog) Validate() error {
	if cl.SessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if !cl.Speaker.Valid() {
		return fmt.Errorf("invalid speaker: %s", cl.Speaker)
	}
	if cl.Timestamp.IsZero() {
		return errors.New("timestamp cannot be zero")
	}
	return nil
}

// TimeRange bounds a query. A zero From means the whole history and a zero
// To means up to now. Both bounds are inclusive.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Since returns a range covering the given number of days up to now
func Since(now time.Time, days int) TimeRange {
	return TimeRange{From: now.AddDate(0, 0, -days), To: now}
}

// Contains reports whether t falls within the range
func (tr TimeRange) Contains(t time.Time) bool {
	if !tr.From.IsZero() && t.Before(tr.From) {
		return false
	}
	if !tr.To.IsZero() && t.After(tr.To) {
		return false
	}
	return true
}
