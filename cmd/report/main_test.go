package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convocoach/internal/analytics"
	"convocoach/internal/storage"
	"convocoach/pkg/types"
)

var testNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func init() {
	color.NoColor = true
}

func seededDashboard(t *testing.T) *analytics.Dashboard {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	scores := []float64{60, 63, 66, 69, 72, 75, 78, 81, 84, 87}
	for i, score := range scores {
		at := testNow.AddDate(0, 0, -10+i)
		scenario := "scenario1"
		end := at.Add(20 * time.Minute)
		require.NoError(t, store.SavePracticeSession(ctx, &types.PracticeSession{
			ID: "s" + string(rune('a'+i)), UserID: "u1", ScenarioID: &scenario,
			SessionType: types.SessionTypeScenario, StartedAt: at, EndedAt: &end,
		}))
		require.NoError(t, store.SaveAnalysisResult(ctx, &types.AnalysisResult{
			ID: "r" + string(rune('a'+i)), UserID: "u1", SessionID: "s" + string(rune('a'+i)), CreatedAt: end,
			Scores: map[string]float64{analytics.SkillEmpathy: score, analytics.SkillClarity: score - 20},
		}))
	}
	return analytics.NewDashboard(store, nil, analytics.WithClock(func() time.Time { return testNow }))
}

func TestReport(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, newPrinter(&out).report(context.Background(), seededDashboard(t), "u1", 30))

	text := out.String()
	assert.Contains(t, text, "Overview for u1")
	assert.Contains(t, text, "Sessions:")
	assert.Contains(t, text, "Top Skills:")
	assert.Contains(t, text, "Skill Comparison")
	assert.Contains(t, text, "Momentum")
	assert.Contains(t, text, "Plateaus")
	assert.Contains(t, text, "No plateaus detected")
}

func TestReport_UnknownUser(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, newPrinter(&out).report(context.Background(), seededDashboard(t), "nobody", 30))

	text := out.String()
	assert.Contains(t, text, "No assessed skills yet")
	assert.Contains(t, text, "Insufficient Data:")
}

func TestHumanize(t *testing.T) {
	p := newPrinter(&bytes.Buffer{})
	tests := map[string]string{
		"needs_improvement":  "Needs Improvement",
		"excellent_momentum": "Excellent Momentum",
		"free_talk":          "Free Talk",
		"empathy":            "Empathy",
	}
	for in, want := range tests {
		assert.Equal(t, want, p.humanize(in), in)
	}
}
