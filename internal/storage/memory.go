package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"convocoach/pkg/types"
)

// MemoryStore is an in-process Store used by tests and the demo seeder
type MemoryStore struct {
	mu       sync.RWMutex
	results  []*types.AnalysisResult
	sessions []*types.PracticeSession
	logs     map[string][]*types.ConversationLog
	closed   bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		logs: make(map[string][]*types.ConversationLog),
	}
}

var errStoreClosed = errors.New("memory store is closed")

// AnalysisResults returns a user's analysis results within the range
func (m *MemoryStore) AnalysisResults(ctx context.Context, userID string, tr types.TimeRange) ([]*types.AnalysisResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errStoreClosed
	}

	var out []*types.AnalysisResult
	for _, ar := range m.results {
		if ar.UserID == userID && tr.Contains(ar.CreatedAt) {
			out = append(out, cloneResult(ar))
		}
	}
	return out, nil
}

// LatestAnalysisResult returns a user's newest analysis result
func (m *MemoryStore) LatestAnalysisResult(ctx context.Context, userID string) (*types.AnalysisResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errStoreClosed
	}

	for i := len(m.results) - 1; i >= 0; i-- {
		if m.results[i].UserID == userID {
			return cloneResult(m.results[i]), nil
		}
	}
	return nil, nil
}

// PopulationAnalysisResults returns every user's analysis results within the range
func (m *MemoryStore) PopulationAnalysisResults(ctx context.Context, tr types.TimeRange) ([]*types.AnalysisResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errStoreClosed
	}

	var out []*types.AnalysisResult
	for _, ar := range m.results {
		if tr.Contains(ar.CreatedAt) {
			out = append(out, cloneResult(ar))
		}
	}
	return out, nil
}

// PracticeSessions returns a user's practice sessions started within the range
func (m *MemoryStore) PracticeSessions(ctx context.Context, userID string, tr types.TimeRange) ([]*types.PracticeSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errStoreClosed
	}

	var out []*types.PracticeSession
	for _, ps := range m.sessions {
		if ps.UserID == userID && tr.Contains(ps.StartedAt) {
			cp := *ps
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ConversationLogs returns the messages exchanged in one session
func (m *MemoryStore) ConversationLogs(ctx context.Context, sessionID string) ([]*types.ConversationLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errStoreClosed
	}

	logs := m.logs[sessionID]
	out := make([]*types.ConversationLog, 0, len(logs))
	for _, cl := range logs {
		cp := *cl
		out = append(out, &cp)
	}
	return out, nil
}

// SaveAnalysisResult stores an analysis result keeping time order
func (m *MemoryStore) SaveAnalysisResult(ctx context.Context, result *types.AnalysisResult) error {
	if err := result.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results = append(m.results, cloneResult(result))
	sort.SliceStable(m.results, func(i, j int) bool {
		return m.results[i].CreatedAt.Before(m.results[j].CreatedAt)
	})
	return nil
}

// SavePracticeSession stores a practice session keeping time order
func (m *MemoryStore) SavePracticeSession(ctx context.Context, session *types.PracticeSession) error {
	if err := session.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *session
	m.sessions = append(m.sessions, &cp)
	sort.SliceStable(m.sessions, func(i, j int) bool {
		return m.sessions[i].StartedAt.Before(m.sessions[j].StartedAt)
	})
	return nil
}

// SaveConversationLog stores a conversation log line keeping time order
func (m *MemoryStore) SaveConversationLog(ctx context.Context, log *types.ConversationLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *log
	logs := append(m.logs[log.SessionID], &cp)
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.Before(logs[j].Timestamp)
	})
	m.logs[log.SessionID] = logs
	return nil
}

// HealthCheck reports whether the store is open
func (m *MemoryStore) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errStoreClosed
	}
	return nil
}

// Close marks the store closed
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func cloneResult(ar *types.AnalysisResult) *types.AnalysisResult {
	cp := *ar
	if ar.Scores != nil {
		cp.Scores = make(map[string]float64, len(ar.Scores))
		for k, v := range ar.Scores {
			cp.Scores[k] = v
		}
	}
	return &cp
}
