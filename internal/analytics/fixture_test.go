package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"convocoach/internal/storage"
	"convocoach/pkg/types"
)

// testNow is a Sunday
var testNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func daysAgo(days float64) time.Time {
	return testNow.Add(-time.Duration(days * float64(24*time.Hour)))
}

func testOptions(extra ...Option) []Option {
	return append([]Option{WithClock(func() time.Time { return testNow })}, extra...)
}

type fixture struct {
	t     *testing.T
	store *storage.MemoryStore
	seq   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, store: storage.NewMemoryStore()}
}

func (f *fixture) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%03d", prefix, f.seq)
}

func (f *fixture) result(userID string, at time.Time, scores map[string]float64) *types.AnalysisResult {
	return f.linkedResult(userID, "", at, scores)
}

func (f *fixture) linkedResult(userID, sessionID string, at time.Time, scores map[string]float64) *types.AnalysisResult {
	f.t.Helper()
	ar := &types.AnalysisResult{ID: f.nextID("ar"), UserID: userID, SessionID: sessionID, CreatedAt: at, Scores: scores}
	require.NoError(f.t, f.store.SaveAnalysisResult(context.Background(), ar))
	return ar
}

// series saves one record per score for a single skill
func (f *fixture) series(userID, skill string, scores []float64, dates []time.Time) {
	f.t.Helper()
	require.Len(f.t, dates, len(scores))
	for i, s := range scores {
		f.result(userID, dates[i], map[string]float64{skill: s})
	}
}

func (f *fixture) session(userID string, sessionType types.SessionType, scenario string, start time.Time, length time.Duration) *types.PracticeSession {
	f.t.Helper()
	s := &types.PracticeSession{ID: f.nextID("ps"), UserID: userID, SessionType: sessionType, StartedAt: start}
	if scenario != "" {
		s.ScenarioID = &scenario
	}
	if length > 0 {
		end := start.Add(length)
		s.EndedAt = &end
	}
	require.NoError(f.t, f.store.SavePracticeSession(context.Background(), s))
	return s
}

func (f *fixture) log(sessionID string, speaker types.Speaker, message string, at time.Time) {
	f.t.Helper()
	require.NoError(f.t, f.store.SaveConversationLog(context.Background(), &types.ConversationLog{
		ID: f.nextID("cl"), SessionID: sessionID, Speaker: speaker, Message: message, Timestamp: at,
	}))
}

// consecutiveDays returns n dates one day apart ending lastDaysAgo days before testNow
func consecutiveDays(n int, lastDaysAgo float64) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = daysAgo(lastDaysAgo + float64(n-1-i))
	}
	return out
}
