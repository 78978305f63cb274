package analytics

import (
	"sort"
	"time"

	"convocoach/internal/stats"
	"convocoach/pkg/types"
)

// ScorePoint is one sample of a skill time series
type ScorePoint struct {
	Date  time.Time `json:"date"`
	Score float64   `json:"score"`
}

// skillSeries extracts one skill's samples in record order. Records
// without the skill are skipped, never read as zero.
func skillSeries(results []*types.AnalysisResult, skill string) []ScorePoint {
	var points []ScorePoint
	for _, ar := range results {
		if score, ok := ar.Score(skill); ok {
			points = append(points, ScorePoint{Date: ar.CreatedAt, Score: score})
		}
	}
	return points
}

func scoresOf(points []ScorePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Score
	}
	return out
}

// elapsedDays returns the days since the first sample for each point
func elapsedDays(points []ScorePoint) []float64 {
	out := make([]float64, len(points))
	if len(points) == 0 {
		return out
	}
	first := points[0].Date
	for i, p := range points {
		out[i] = p.Date.Sub(first).Hours() / 24
	}
	return out
}

// recordMean averages the catalog skills present in one record
func recordMean(ar *types.AnalysisResult) (float64, bool) {
	var values []float64
	for _, name := range SkillNames() {
		if score, ok := ar.Score(name); ok {
			values = append(values, score)
		}
	}
	if len(values) == 0 {
		return 0, false
	}
	return stats.Mean(values), true
}

// recordMeans returns the per-record means of the records that have any catalog skill
func recordMeans(results []*types.AnalysisResult) []float64 {
	var out []float64
	for _, ar := range results {
		if m, ok := recordMean(ar); ok {
			out = append(out, m)
		}
	}
	return out
}

// SkillScore pairs a skill with a score
type SkillScore struct {
	Skill       string  `json:"skill"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

// rankScores orders scores descending, ties in catalog order
func rankScores(scores map[string]float64) []SkillScore {
	out := make([]SkillScore, 0, len(scores))
	for name, score := range scores {
		out = append(out, SkillScore{Skill: name, DisplayName: displayName(name), Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return skillLess(out[i].Skill, out[j].Skill)
	})
	return out
}

// topN returns the first n ranked scores
func topN(ranked []SkillScore, n int) []SkillScore {
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return append([]SkillScore{}, ranked...)
}

// bottomN returns the n lowest scores, lowest first
func bottomN(ranked []SkillScore, n int) []SkillScore {
	out := make([]SkillScore, 0, n)
	for i := len(ranked) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, ranked[i])
	}
	return out
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
