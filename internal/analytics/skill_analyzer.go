package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"convocoach/internal/stats"
	"convocoach/internal/storage"
	"convocoach/pkg/types"
)

// Milestone types
const (
	MilestoneHighestScore           = "highest_score"
	MilestoneSignificantImprovement = "significant_improvement"
	MilestoneThresholdReached       = "threshold_reached"
)

// Variation levels of a skill's coefficient of variation
const (
	VariationLow    = "low"
	VariationMedium = "medium"
	VariationHigh   = "high"
)

// Direction reported when a series is too short to fit
const DirectionInsufficientData = "insufficient_data"

const (
	maxMilestones         = 5
	maxSuggestions        = 3
	maxRecommendations    = 3
	significantJump       = 10.0
	regularPracticeGap    = 3.0
	strongCorrelation     = 0.7
	minCorrelationRecords = 5
	skillMovingAverage    = 3
)

var milestoneThresholds = []float64{60, 70, 80, 90}

// SkillAnalyzer produces single-skill and cross-skill reports for one user
type SkillAnalyzer struct {
	base
}

// NewSkillAnalyzer creates a skill analyzer reading from repo
func NewSkillAnalyzer(repo storage.Repository, opts ...Option) *SkillAnalyzer {
	return &SkillAnalyzer{base: newBase(repo, "skill_analyzer", opts)}
}

// SkillProgressReport is the deep analysis of one skill
type SkillProgressReport struct {
	Skill            Skill            `json:"skill"`
	PeriodDays       int              `json:"period_days"`
	DataPoints       int              `json:"data_points"`
	Statistics       stats.Summary    `json:"statistics"`
	Trend            SkillTrend       `json:"trend"`
	Consistency      Consistency      `json:"consistency"`
	Milestones       []Milestone      `json:"milestones"`
	PracticePatterns PracticePatterns `json:"practice_patterns"`
	Suggestions      []string         `json:"improvement_suggestions"`
}

// SkillTrend describes the direction of a skill series
type SkillTrend struct {
	Direction     string    `json:"direction"`
	Slope         float64   `json:"slope"`
	Intercept     float64   `json:"intercept"`
	Correlation   float64   `json:"correlation"`
	MovingAverage []float64 `json:"moving_average"`
	RecentChange  float64   `json:"recent_change"`
}

// Consistency describes how steady the scores and practice gaps are
type Consistency struct {
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
	VariationLevel         string  `json:"variation_level"`
	AverageGapDays         float64 `json:"average_gap_days"`
	RegularPractice        bool    `json:"regular_practice"`
}

// Milestone marks a notable point in a skill series
type Milestone struct {
	Type        string    `json:"type"`
	Date        time.Time `json:"date"`
	Score       float64   `json:"score"`
	Threshold   float64   `json:"threshold,omitempty"`
	Improvement float64   `json:"improvement,omitempty"`
	Description string    `json:"description"`
}

// PracticePatterns summarises when the user practices
type PracticePatterns struct {
	SessionCount   int            `json:"session_count"`
	ByWeekday      map[string]int `json:"by_weekday"`
	ByHour         map[int]int    `json:"by_hour"`
	MostActiveDay  string         `json:"most_active_day,omitempty"`
	MostActiveHour *int           `json:"most_active_hour,omitempty"`
}

// AnalyzeSkillProgress analyses one skill over the trailing days
func (a *SkillAnalyzer) AnalyzeSkillProgress(ctx context.Context, userID, skillName string, days int) (Result[*SkillProgressReport], error) {
	const op = "analyze_skill_progress"
	defer a.track(ctx, op)()
	days = orDefault(days, DefaultSkillDays)

	skill, ok := LookupSkill(skillName)
	if !ok {
		return settle(ctx, &a.base, op, UnknownSkill[*SkillProgressReport](skillName)), nil
	}

	window := types.Since(a.now(), days)
	results, err := a.repo.AnalysisResults(ctx, userID, window)
	if err != nil {
		return Result[*SkillProgressReport]{}, fmt.Errorf("failed to load analysis results: %w", err)
	}

	points := skillSeries(results, skill.Name)
	if len(points) == 0 {
		return settle(ctx, &a.base, op, InsufficientData[*SkillProgressReport](
			"no %s scores in the last %d days", skill.Name, days)), nil
	}

	sessions, err := a.repo.PracticeSessions(ctx, userID, window)
	if err != nil {
		return Result[*SkillProgressReport]{}, fmt.Errorf("failed to load practice sessions: %w", err)
	}

	scores := scoresOf(points)
	summary, _ := stats.Describe(scores)
	consistency := analyzeConsistency(points)

	return Ok(&SkillProgressReport{
		Skill:            skill,
		PeriodDays:       days,
		DataPoints:       len(points),
		Statistics:       summary,
		Trend:            analyzeSkillTrend(scores),
		Consistency:      consistency,
		Milestones:       DetectMilestones(points),
		PracticePatterns: analyzePracticePatterns(sessions),
		Suggestions:      improvementSuggestions(skill, scores, consistency.CoefficientOfVariation),
	}), nil
}

func analyzeSkillTrend(scores []float64) SkillTrend {
	trend := SkillTrend{
		Direction:     DirectionInsufficientData,
		MovingAverage: stats.MovingAverage(scores, skillMovingAverage),
	}
	if len(scores) < 2 {
		return trend
	}

	fit := stats.LinearTrend(scores)
	trend.Direction = stats.ClassifyTrend(fit.Slope, stats.ScoreSlopeThreshold)
	trend.Slope = fit.Slope
	trend.Intercept = fit.Intercept
	trend.Correlation = fit.Correlation
	trend.RecentChange = scores[len(scores)-1] - scores[len(scores)-2]
	return trend
}

func analyzeConsistency(points []ScorePoint) Consistency {
	cv := stats.CoefficientOfVariation(scoresOf(points))
	c := Consistency{CoefficientOfVariation: cv}
	switch {
	case cv < 0.1:
		c.VariationLevel = VariationLow
	case cv < 0.2:
		c.VariationLevel = VariationMedium
	default:
		c.VariationLevel = VariationHigh
	}

	if len(points) >= 2 {
		gaps := make([]float64, 0, len(points)-1)
		for i := 1; i < len(points); i++ {
			gaps = append(gaps, points[i].Date.Sub(points[i-1].Date).Hours()/24)
		}
		c.AverageGapDays = stats.Mean(gaps)
		c.RegularPractice = c.AverageGapDays < regularPracticeGap
	}
	return c
}

// DetectMilestones finds the highest score, jumps of at least ten points
// and the first crossing of each threshold. The result is ordered newest
// first and holds at most five entries.
func DetectMilestones(points []ScorePoint) []Milestone {
	milestones := []Milestone{}
	if len(points) == 0 {
		return milestones
	}

	best := 0
	for i, p := range points {
		if p.Score > points[best].Score {
			best = i
		}
	}
	milestones = append(milestones, Milestone{
		Type:        MilestoneHighestScore,
		Date:        points[best].Date,
		Score:       points[best].Score,
		Description: fmt.Sprintf("Reached highest score of %.0f", points[best].Score),
	})

	for i := 1; i < len(points); i++ {
		jump := points[i].Score - points[i-1].Score
		if jump >= significantJump {
			milestones = append(milestones, Milestone{
				Type:        MilestoneSignificantImprovement,
				Date:        points[i].Date,
				Score:       points[i].Score,
				Improvement: jump,
				Description: fmt.Sprintf("Improved by %.0f points in one session", jump),
			})
		}
	}

	for _, threshold := range milestoneThresholds {
		for i, p := range points {
			if p.Score >= threshold && (i == 0 || points[i-1].Score < threshold) {
				milestones = append(milestones, Milestone{
					Type:        MilestoneThresholdReached,
					Date:        p.Date,
					Score:       p.Score,
					Threshold:   threshold,
					Description: fmt.Sprintf("Reached the %.0f point mark", threshold),
				})
				break
			}
		}
	}

	sort.SliceStable(milestones, func(i, j int) bool {
		return milestones[i].Date.After(milestones[j].Date)
	})
	if len(milestones) > maxMilestones {
		milestones = milestones[:maxMilestones]
	}
	return milestones
}

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

func analyzePracticePatterns(sessions []*types.PracticeSession) PracticePatterns {
	p := PracticePatterns{
		SessionCount: len(sessions),
		ByWeekday:    make(map[string]int),
		ByHour:       make(map[int]int),
	}
	for _, s := range sessions {
		p.ByWeekday[s.StartedAt.Weekday().String()]++
		p.ByHour[s.StartedAt.Hour()]++
	}
	if len(sessions) == 0 {
		return p
	}

	bestDay := 0
	for _, d := range weekdayOrder {
		if n := p.ByWeekday[d.String()]; n > bestDay {
			bestDay = n
			p.MostActiveDay = d.String()
		}
	}
	bestHour := 0
	for h := 0; h < 24; h++ {
		if n := p.ByHour[h]; n > bestHour {
			bestHour = n
			hour := h
			p.MostActiveHour = &hour
		}
	}
	return p
}

func improvementSuggestions(skill Skill, scores []float64, cv float64) []string {
	latest := scores[len(scores)-1]
	name := strings.ToLower(skill.DisplayName)

	var out []string
	switch {
	case latest < 50:
		out = append(out,
			fmt.Sprintf("Start with beginner scenarios that focus on %s", name),
			fmt.Sprintf("Before each session, review what good %s looks like: %s", name, strings.Join(skill.Indicators, ", ")),
		)
	case latest < 70:
		out = append(out,
			fmt.Sprintf("Practice %s at least three times a week to build momentum", name),
			fmt.Sprintf("Repeat scenarios that challenge your %s until your score holds steady", name),
		)
	default:
		out = append(out,
			fmt.Sprintf("Take on advanced scenarios that put your %s under pressure", name),
			fmt.Sprintf("Use free talk sessions to apply your %s in unscripted conversations", name),
		)
	}
	if len(scores) >= 3 && cv > 0.2 {
		out = append(out, fmt.Sprintf("Your %s scores vary a lot between sessions; aim for steadier, regular practice", name))
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// SkillComparison compares the user's skills with each other
type SkillComparison struct {
	PeriodDays      int                    `json:"period_days"`
	CurrentScores   map[string]float64     `json:"current_scores"`
	SkillGrowth     map[string]SkillGrowth `json:"skill_growth"`
	BalanceAnalysis Balance                `json:"balance_analysis"`
	Strongest       []SkillScore           `json:"strongest_skills"`
	Weakest         []SkillScore           `json:"weakest_skills"`
	MostImproved    []SkillScore           `json:"most_improved"`
	Recommendations []string               `json:"recommendations"`
}

// SkillGrowth is one skill's change over the window
type SkillGrowth struct {
	Status     string  `json:"status"`
	GrowthRate float64 `json:"growth_rate"`
	Direction  string  `json:"direction"`
	Samples    int     `json:"samples"`
}

// Balance levels
const (
	BalanceExcellent        = "excellent"
	BalanceGood             = "good"
	BalanceNeedsImprovement = "needs_improvement"
)

// Balance scores how evenly developed the skills are
type Balance struct {
	Score  float64 `json:"score"`
	Level  string  `json:"level"`
	StdDev float64 `json:"std_dev"`
}

// CompareSkills compares the latest scores and per-skill growth over the window
func (a *SkillAnalyzer) CompareSkills(ctx context.Context, userID string, days int) (Result[*SkillComparison], error) {
	const op = "compare_skills"
	defer a.track(ctx, op)()
	days = orDefault(days, DefaultSkillDays)

	results, err := a.repo.AnalysisResults(ctx, userID, types.Since(a.now(), days))
	if err != nil {
		return Result[*SkillComparison]{}, fmt.Errorf("failed to load analysis results: %w", err)
	}
	if len(results) == 0 {
		return settle(ctx, &a.base, op, InsufficientData[*SkillComparison]("no analysis results in the last %d days", days)), nil
	}

	latest := results[len(results)-1]
	current := make(map[string]float64)
	for _, name := range SkillNames() {
		if score, ok := latest.Score(name); ok {
			current[name] = score
		}
	}

	growth := make(map[string]SkillGrowth, len(catalog))
	var improved []SkillScore
	for _, name := range SkillNames() {
		scores := scoresOf(skillSeries(results, name))
		g := SkillGrowth{Status: DirectionInsufficientData, Direction: DirectionInsufficientData, Samples: len(scores)}
		if len(scores) >= 2 {
			g.Status = "ok"
			g.GrowthRate = stats.Round(stats.GrowthRate(scores[0], scores[len(scores)-1]), 2)
			g.Direction = stats.ClassifyTrend(stats.LinearTrend(scores).Slope, stats.ScoreSlopeThreshold)
			improved = append(improved, SkillScore{Skill: name, DisplayName: displayName(name), Score: g.GrowthRate})
		}
		growth[name] = g
	}
	sort.SliceStable(improved, func(i, j int) bool { return improved[i].Score > improved[j].Score })

	currentValues := make([]float64, 0, len(current))
	for _, v := range current {
		currentValues = append(currentValues, v)
	}
	balance := analyzeBalance(currentValues)
	ranked := rankScores(current)

	return Ok(&SkillComparison{
		PeriodDays:      days,
		CurrentScores:   current,
		SkillGrowth:     growth,
		BalanceAnalysis: balance,
		Strongest:       topN(ranked, 3),
		Weakest:         bottomN(ranked, 3),
		MostImproved:    topN(improved, 3),
		Recommendations: comparisonRecommendations(ranked, growth, balance.StdDev),
	}), nil
}

func analyzeBalance(current []float64) Balance {
	std := stats.StdDev(current)
	score := math.Max(0, 100-2*std)
	b := Balance{Score: stats.Round(score, 1), StdDev: stats.Round(std, 2)}
	switch {
	case score > 80:
		b.Level = BalanceExcellent
	case score > 60:
		b.Level = BalanceGood
	default:
		b.Level = BalanceNeedsImprovement
	}
	return b
}

func comparisonRecommendations(ranked []SkillScore, growth map[string]SkillGrowth, std float64) []string {
	var out []string
	if len(ranked) > 0 {
		weakest := ranked[len(ranked)-1]
		if weakest.Score < 60 {
			out = append(out, fmt.Sprintf("Focus on %s: at %.0f it is your weakest skill", weakest.DisplayName, weakest.Score))
		}
	}
	for _, name := range SkillNames() {
		if growth[name].Direction == stats.Declining {
			out = append(out, fmt.Sprintf("%s has been declining; revisit scenarios that exercise it", displayName(name)))
		}
	}
	if std > 15 {
		out = append(out, "Your skills are unevenly developed; spread practice across all skills to build a balanced profile")
	}
	if len(out) > maxRecommendations {
		out = out[:maxRecommendations]
	}
	return out
}

// CorrelationReport lists how the user's skills move together
type CorrelationReport struct {
	SampleSize         int                           `json:"sample_size"`
	MissingValues      string                        `json:"missing_values"`
	Correlations       map[string]map[string]float64 `json:"correlations"`
	StrongCorrelations []StrongCorrelation           `json:"strong_correlations"`
	Insights           []string                      `json:"insights"`
}

// StrongCorrelation is a skill pair with |r| above 0.7
type StrongCorrelation struct {
	SkillA       string  `json:"skill_a"`
	SkillB       string  `json:"skill_b"`
	Correlation  float64 `json:"correlation"`
	Relationship string  `json:"relationship"`
}

// Missing-value policies for correlations
const (
	MissingAsZero   = "zero_filled"
	MissingExcluded = "excluded"
)

// SkillCorrelations computes pairwise Pearson correlation over the full history
func (a *SkillAnalyzer) SkillCorrelations(ctx context.Context, userID string) (Result[*CorrelationReport], error) {
	const op = "skill_correlations"
	defer a.track(ctx, op)()

	results, err := a.repo.AnalysisResults(ctx, userID, types.TimeRange{To: a.now()})
	if err != nil {
		return Result[*CorrelationReport]{}, fmt.Errorf("failed to load analysis results: %w", err)
	}

	names := SkillNames()
	policy := MissingAsZero
	if a.settings.CorrelationSkipIncomplete {
		policy = MissingExcluded
		complete := results[:0:0]
		for _, ar := range results {
			if hasAllSkills(ar, names) {
				complete = append(complete, ar)
			}
		}
		results = complete
	}
	if len(results) < minCorrelationRecords {
		return settle(ctx, &a.base, op, InsufficientData[*CorrelationReport](
			"need at least %d analysis results, have %d", minCorrelationRecords, len(results))), nil
	}

	vectors := make(map[string][]float64, len(names))
	for _, name := range names {
		v := make([]float64, len(results))
		for i, ar := range results {
			v[i], _ = ar.Score(name)
		}
		vectors[name] = v
	}

	report := &CorrelationReport{
		SampleSize:         len(results),
		MissingValues:      policy,
		Correlations:       make(map[string]map[string]float64, len(names)),
		StrongCorrelations: []StrongCorrelation{},
		Insights:           []string{},
	}
	for i, x := range names {
		report.Correlations[x] = make(map[string]float64, len(names)-1)
		for j, y := range names {
			if i == j {
				continue
			}
			r := stats.Pearson(vectors[x], vectors[y])
			report.Correlations[x][y] = stats.Round(r, 3)
			if j > i && math.Abs(r) > strongCorrelation {
				sc := StrongCorrelation{SkillA: x, SkillB: y, Correlation: stats.Round(r, 3), Relationship: "positive"}
				if r < 0 {
					sc.Relationship = "negative"
				}
				report.StrongCorrelations = append(report.StrongCorrelations, sc)
				report.Insights = append(report.Insights, correlationInsight(sc))
			}
		}
	}
	return Ok(report), nil
}

func hasAllSkills(ar *types.AnalysisResult, names []string) bool {
	for _, name := range names {
		if _, ok := ar.Score(name); !ok {
			return false
		}
	}
	return true
}

func correlationInsight(sc StrongCorrelation) string {
	a, b := displayName(sc.SkillA), displayName(sc.SkillB)
	if sc.Relationship == "positive" {
		return fmt.Sprintf("%s and %s tend to improve together (r = %.2f); practicing one is likely to lift the other", a, b, sc.Correlation)
	}
	return fmt.Sprintf("%s tends to drop when %s rises (r = %.2f); watch the balance between them", a, b, sc.Correlation)
}
