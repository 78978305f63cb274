package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"convocoach/internal/stats"
	"convocoach/internal/storage"
	"convocoach/pkg/types"
)

// Trend strength labels
const (
	StrengthStrong   = "strong"
	StrengthModerate = "moderate"
	StrengthWeak     = "weak"
)

// Weekly consistency labels
const (
	ConsistencyHigh   = "high"
	ConsistencyMedium = "medium"
	ConsistencyLow    = "low"
)

// Momentum interpretations
const (
	MomentumExcellent          = "excellent_momentum"
	MomentumGood               = "good_momentum"
	MomentumStable             = "stable_momentum"
	MomentumDeclining          = "declining_momentum"
	MomentumSignificantDecline = "significant_decline"
)

const (
	activityMovingAverage = 7
	predictionDegree      = 2
	minPredictionSamples  = 5
	plateauWindowDays     = 60
	minPlateauRecords     = 10
	plateauSamples        = 5
	momentumWindowDays    = 30
	confidenceZ           = 1.96
)

// TrendAnalyzer produces time-series reports across all of a user's skills
type TrendAnalyzer struct {
	base
}

// NewTrendAnalyzer creates a trend analyzer reading from repo
func NewTrendAnalyzer(repo storage.Repository, opts ...Option) *TrendAnalyzer {
	return &TrendAnalyzer{base: newBase(repo, "trend_analyzer", opts)}
}

// Period is the time window a report covers
type Period struct {
	Days int       `json:"days"`
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// TrendReport is the overall trend analysis
type TrendReport struct {
	Period           Period                       `json:"period"`
	TotalAnalyses    int                          `json:"total_analyses"`
	DailyStats       []DailyStat                  `json:"daily_stats"`
	WeeklyStats      []WeeklyStat                 `json:"weekly_stats"`
	ActivityTrend    ActivityTrend                `json:"activity_trend"`
	PerformanceTrend PerformanceTrend             `json:"performance_trend"`
	SkillTrends      map[string]SkillTrendSummary `json:"skill_trends"`
	WeeklyPatterns   WeeklyPatterns               `json:"weekly_patterns"`
	Predictions      map[string]SkillForecast     `json:"predictions"`
	Insights         []string                     `json:"insights"`
}

// DailyStat aggregates one calendar day
type DailyStat struct {
	Date          string             `json:"date"`
	Conversations int                `json:"conversations"`
	SkillAverages map[string]float64 `json:"skill_averages"`
}

// WeeklyStat aggregates one ISO week
type WeeklyStat struct {
	Week             string             `json:"week"`
	Conversations    int                `json:"conversations"`
	PracticeSessions int                `json:"practice_sessions"`
	ActiveDays       int                `json:"active_days"`
	SkillAverages    map[string]float64 `json:"skill_averages"`
}

// ActivityTrend describes daily conversation volume
type ActivityTrend struct {
	Direction     string    `json:"direction"`
	Slope         float64   `json:"slope"`
	AveragePerDay float64   `json:"average_per_day"`
	MovingAverage []float64 `json:"moving_average"`
}

// PerformanceTrend describes the per-record mean score
type PerformanceTrend struct {
	Direction       string  `json:"direction"`
	Slope           float64 `json:"slope"`
	ImprovementRate float64 `json:"improvement_rate"`
	FirstScore      float64 `json:"first_score"`
	LatestScore     float64 `json:"latest_score"`
}

// SkillTrendSummary is one skill's fitted direction
type SkillTrendSummary struct {
	Direction string  `json:"direction"`
	Slope     float64 `json:"slope"`
	Current   float64 `json:"current"`
	Change    float64 `json:"change"`
	Samples   int     `json:"samples"`
}

// WeeklyPatterns summarises activity per week
type WeeklyPatterns struct {
	Weeks                    int     `json:"weeks"`
	AverageSessionsPerWeek   float64 `json:"average_sessions_per_week"`
	AverageActiveDaysPerWeek float64 `json:"average_active_days_per_week"`
	CoefficientOfVariation   float64 `json:"coefficient_of_variation"`
	Consistency              string  `json:"consistency"`
	MinWeekActivity          int     `json:"min_week_activity"`
	MaxWeekActivity          int     `json:"max_week_activity"`
}

// SkillForecast is a short polynomial forecast for one skill
type SkillForecast struct {
	Current       float64 `json:"current"`
	Predicted     float64 `json:"predicted"`
	DaysAhead     int     `json:"days_ahead"`
	TrendStrength string  `json:"trend_strength"`
}

// AnalyzeOverallTrends aggregates the user's history by day and ISO week
// and fits activity, performance and per-skill trends
func (t *TrendAnalyzer) AnalyzeOverallTrends(ctx context.Context, userID string, days int) (Result[*TrendReport], error) {
	const op = "analyze_overall_trends"
	defer t.track(ctx, op)()
	days = orDefault(days, DefaultTrendDays)

	window := types.Since(t.now(), days)
	results, err := t.repo.AnalysisResults(ctx, userID, window)
	if err != nil {
		return Result[*TrendReport]{}, fmt.Errorf("failed to load analysis results: %w", err)
	}
	if len(results) == 0 {
		return settle(ctx, &t.base, op, InsufficientData[*TrendReport]("no analysis results in the last %d days", days)), nil
	}
	sessions, err := t.repo.PracticeSessions(ctx, userID, window)
	if err != nil {
		return Result[*TrendReport]{}, fmt.Errorf("failed to load practice sessions: %w", err)
	}

	daily := buildDailyStats(results)
	weekly := buildWeeklyStats(results, sessions)
	means := recordMeans(results)

	report := &TrendReport{
		Period:           Period{Days: days, From: window.From, To: window.To},
		TotalAnalyses:    len(results),
		DailyStats:       daily,
		WeeklyStats:      weekly,
		ActivityTrend:    activityTrend(results),
		PerformanceTrend: performanceTrend(means),
		SkillTrends:      make(map[string]SkillTrendSummary),
		WeeklyPatterns:   weeklyPatterns(weekly),
		Predictions:      make(map[string]SkillForecast),
	}

	for _, name := range SkillNames() {
		points := skillSeries(results, name)
		if len(points) < 2 {
			continue
		}
		scores := scoresOf(points)
		fit := stats.LinearTrend(scores)
		report.SkillTrends[name] = SkillTrendSummary{
			Direction: stats.ClassifyTrend(fit.Slope, stats.ScoreSlopeThreshold),
			Slope:     stats.Round(fit.Slope, 3),
			Current:   scores[len(scores)-1],
			Change:    scores[len(scores)-1] - scores[0],
			Samples:   len(scores),
		}
		if len(points) >= minPredictionSamples {
			if f, err := forecast(points, DefaultPredictionDays); err == nil {
				report.Predictions[name] = SkillForecast{
					Current:       scores[len(scores)-1],
					Predicted:     stats.Round(f.predicted, 1),
					DaysAhead:     DefaultPredictionDays,
					TrendStrength: f.strength,
				}
			}
		}
	}

	report.Insights = trendInsights(len(daily), days, means)
	return Ok(report), nil
}

func buildDailyStats(results []*types.AnalysisResult) []DailyStat {
	type bucket struct {
		count  int
		scores map[string][]float64
	}
	buckets := make(map[string]*bucket)
	var order []string
	for _, ar := range results {
		key := dayKey(ar.CreatedAt)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{scores: make(map[string][]float64)}
			buckets[key] = b
			order = append(order, key)
		}
		b.count++
		for skill, score := range ar.Scores {
			b.scores[skill] = append(b.scores[skill], score)
		}
	}
	sort.Strings(order)

	out := make([]DailyStat, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		out = append(out, DailyStat{Date: key, Conversations: b.count, SkillAverages: averages(b.scores)})
	}
	return out
}

func isoWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

func buildWeeklyStats(results []*types.AnalysisResult, sessions []*types.PracticeSession) []WeeklyStat {
	type bucket struct {
		conversations int
		sessions      int
		days          map[string]struct{}
		scores        map[string][]float64
	}
	buckets := make(map[string]*bucket)
	get := func(key string) *bucket {
		b, ok := buckets[key]
		if !ok {
			b = &bucket{days: make(map[string]struct{}), scores: make(map[string][]float64)}
			buckets[key] = b
		}
		return b
	}

	for _, ar := range results {
		b := get(isoWeekKey(ar.CreatedAt))
		b.conversations++
		b.days[dayKey(ar.CreatedAt)] = struct{}{}
		for skill, score := range ar.Scores {
			b.scores[skill] = append(b.scores[skill], score)
		}
	}
	for _, s := range sessions {
		b := get(isoWeekKey(s.StartedAt))
		b.sessions++
		b.days[dayKey(s.StartedAt)] = struct{}{}
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]WeeklyStat, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		out = append(out, WeeklyStat{
			Week:             k,
			Conversations:    b.conversations,
			PracticeSessions: b.sessions,
			ActiveDays:       len(b.days),
			SkillAverages:    averages(b.scores),
		})
	}
	return out
}

func averages(scores map[string][]float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for skill, values := range scores {
		out[skill] = stats.Round(stats.Mean(values), 2)
	}
	return out
}

// dailyCounts returns one conversation count per calendar day from the
// first to the last active day, with zeros for idle days
func dailyCounts(results []*types.AnalysisResult) []float64 {
	if len(results) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, ar := range results {
		counts[dayKey(ar.CreatedAt)]++
	}

	first := truncateDay(results[0].CreatedAt)
	last := truncateDay(results[len(results)-1].CreatedAt)
	var out []float64
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, float64(counts[dayKey(d)]))
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func activityTrend(results []*types.AnalysisResult) ActivityTrend {
	counts := dailyCounts(results)
	fit := stats.LinearTrend(counts)
	ma := stats.MovingAverage(counts, activityMovingAverage)
	for i := range ma {
		ma[i] = stats.Round(ma[i], 2)
	}
	return ActivityTrend{
		Direction:     stats.ClassifyActivity(fit.Slope, stats.ActivitySlopeThreshold),
		Slope:         stats.Round(fit.Slope, 3),
		AveragePerDay: stats.Round(stats.Mean(counts), 2),
		MovingAverage: ma,
	}
}

func performanceTrend(means []float64) PerformanceTrend {
	if len(means) == 0 {
		return PerformanceTrend{Direction: DirectionInsufficientData}
	}
	fit := stats.LinearTrend(means)
	first, last := means[0], means[len(means)-1]
	return PerformanceTrend{
		Direction:       stats.ClassifyTrend(fit.Slope, stats.ScoreSlopeThreshold),
		Slope:           stats.Round(fit.Slope, 3),
		ImprovementRate: stats.Round(stats.GrowthRate(first, last), 1),
		FirstScore:      stats.Round(first, 2),
		LatestScore:     stats.Round(last, 2),
	}
}

func weeklyPatterns(weekly []WeeklyStat) WeeklyPatterns {
	if len(weekly) == 0 {
		return WeeklyPatterns{Consistency: ConsistencyLow}
	}
	activity := make([]float64, len(weekly))
	activeDays := make([]float64, len(weekly))
	for i, w := range weekly {
		activity[i] = float64(w.Conversations)
		activeDays[i] = float64(w.ActiveDays)
	}

	cv := stats.CoefficientOfVariation(activity)
	p := WeeklyPatterns{
		Weeks:                    len(weekly),
		AverageSessionsPerWeek:   stats.Round(stats.Mean(activity), 2),
		AverageActiveDaysPerWeek: stats.Round(stats.Mean(activeDays), 2),
		CoefficientOfVariation:   stats.Round(cv, 3),
		MinWeekActivity:          weekly[0].Conversations,
		MaxWeekActivity:          weekly[0].Conversations,
	}
	for _, w := range weekly {
		p.MinWeekActivity = min(p.MinWeekActivity, w.Conversations)
		p.MaxWeekActivity = max(p.MaxWeekActivity, w.Conversations)
	}
	switch {
	case cv < 0.3:
		p.Consistency = ConsistencyHigh
	case cv < 0.6:
		p.Consistency = ConsistencyMedium
	default:
		p.Consistency = ConsistencyLow
	}
	return p
}

func trendInsights(activeDays, days int, means []float64) []string {
	insights := []string{}
	if days > 0 {
		fraction := float64(activeDays) / float64(days)
		switch {
		case fraction > 0.7:
			insights = append(insights, fmt.Sprintf("You practiced on %.0f%% of days in this period; excellent consistency", fraction*100))
		case fraction < 0.3:
			insights = append(insights, fmt.Sprintf("You practiced on only %.0f%% of days in this period; shorter but more regular sessions will help", fraction*100))
		}
	}
	if len(means) >= 5 {
		delta := stats.Mean(means[len(means)-3:]) - stats.Mean(means[:3])
		switch {
		case delta > 10:
			insights = append(insights, fmt.Sprintf("Your average score improved by %.1f points over this period", delta))
		case delta < -5:
			insights = append(insights, fmt.Sprintf("Your average score dropped by %.1f points over this period; revisit the basics", -delta))
		}
	}
	return insights
}

type forecastResult struct {
	predicted float64
	coef      []float64
	strength  string
}

// forecast fits a quadratic of score against elapsed days and evaluates it
// daysAhead after the last sample, clamped to the score range
func forecast(points []ScorePoint, daysAhead int) (forecastResult, error) {
	x := elapsedDays(points)
	coef, err := stats.PolyFit(x, scoresOf(points), predictionDegree)
	if err != nil {
		return forecastResult{}, err
	}
	at := x[len(x)-1] + float64(daysAhead)
	return forecastResult{
		predicted: stats.ClampScore(stats.PolyEval(coef, at)),
		coef:      coef,
		strength:  trendStrength(coef),
	}, nil
}

func trendStrength(coef []float64) string {
	linear := 0.0
	if len(coef) > 1 {
		linear = math.Abs(coef[1])
	}
	switch {
	case linear > 1:
		return StrengthStrong
	case linear > 0.5:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// PredictionReport forecasts one skill
type PredictionReport struct {
	Skill              string             `json:"skill"`
	CurrentScore       float64            `json:"current_score"`
	PredictedScore     float64            `json:"predicted_score"`
	DaysAhead          int                `json:"days_ahead"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	TrendStrength      string             `json:"trend_strength"`
	Coefficients       []float64          `json:"coefficients"`
	SampleSize         int                `json:"sample_size"`
	Recommendations    []string           `json:"recommendations"`
}

// ConfidenceInterval bounds a prediction
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Level float64 `json:"level"`
}

// PredictFuturePerformance forecasts a skill score daysAhead days after the
// latest sample
func (t *TrendAnalyzer) PredictFuturePerformance(ctx context.Context, userID, skillName string, daysAhead int) (Result[*PredictionReport], error) {
	const op = "predict_future_performance"
	defer t.track(ctx, op)()
	daysAhead = orDefault(daysAhead, DefaultPredictionDays)

	skill, ok := LookupSkill(skillName)
	if !ok {
		return settle(ctx, &t.base, op, UnknownSkill[*PredictionReport](skillName)), nil
	}

	results, err := t.repo.AnalysisResults(ctx, userID, types.TimeRange{To: t.now()})
	if err != nil {
		return Result[*PredictionReport]{}, fmt.Errorf("failed to load analysis results: %w", err)
	}
	if len(results) < minPredictionSamples {
		return settle(ctx, &t.base, op, InsufficientData[*PredictionReport](
			"need at least %d analysis results, have %d", minPredictionSamples, len(results))), nil
	}
	points := skillSeries(results, skill.Name)
	if len(points) < minPredictionSamples {
		return settle(ctx, &t.base, op, InsufficientData[*PredictionReport](
			"need at least %d %s scores, have %d", minPredictionSamples, skill.Name, len(points))), nil
	}

	f, err := forecast(points, daysAhead)
	if err != nil {
		return settle(ctx, &t.base, op, InsufficientData[*PredictionReport]("cannot fit %s scores: %v", skill.Name, err)), nil
	}

	scores := scoresOf(points)
	current := scores[len(scores)-1]
	margin := confidenceZ * stats.StdDev(scores)
	for i := range f.coef {
		f.coef[i] = stats.Round(f.coef[i], 4)
	}

	return Ok(&PredictionReport{
		Skill:          skill.Name,
		CurrentScore:   current,
		PredictedScore: stats.Round(f.predicted, 1),
		DaysAhead:      daysAhead,
		ConfidenceInterval: ConfidenceInterval{
			Lower: stats.Round(stats.ClampScore(f.predicted-margin), 1),
			Upper: stats.Round(stats.ClampScore(f.predicted+margin), 1),
			Level: 0.95,
		},
		TrendStrength:   f.strength,
		Coefficients:    f.coef,
		SampleSize:      len(points),
		Recommendations: predictionRecommendations(skill, current, f.predicted, daysAhead),
	}), nil
}

func predictionRecommendations(skill Skill, current, predicted float64, daysAhead int) []string {
	var out []string
	switch {
	case predicted > current+5:
		out = append(out, fmt.Sprintf("Your %s is on track to reach about %.0f within %d days; keep up your current practice", skill.DisplayName, predicted, daysAhead))
	case predicted < current-5:
		out = append(out, fmt.Sprintf("Your %s may slip to about %.0f within %d days; schedule extra sessions to reverse the trend", skill.DisplayName, predicted, daysAhead))
	default:
		out = append(out, fmt.Sprintf("Your %s is expected to stay around %.0f; try new scenarios to keep improving", skill.DisplayName, predicted))
	}
	if predicted < 70 {
		out = append(out, fmt.Sprintf("Focus on %s scenarios to push your score above 70", skill.DisplayName))
	}
	return out
}

// PlateauReport lists skills whose recent scores have stalled
type PlateauReport struct {
	PlateausDetected       bool                     `json:"plateaus_detected"`
	AffectedSkills         []string                 `json:"affected_skills"`
	Details                map[string]PlateauDetail `json:"details"`
	BreakthroughStrategies []string                 `json:"breakthrough_strategies"`
	RecordsAnalyzed        int                      `json:"records_analyzed"`
}

// PlateauDetail describes the last five samples of one skill
type PlateauDetail struct {
	IsPlateau    bool      `json:"is_plateau"`
	DurationDays int       `json:"duration_days"`
	Average      float64   `json:"average"`
	Variability  float64   `json:"variability"`
	Change       float64   `json:"change"`
	Scores       []float64 `json:"scores"`
}

// DetectPlateau reports whether samples are flat: standard deviation below
// 3 and less than 5 points between the first and the last
func DetectPlateau(samples []float64) bool {
	if len(samples) < 2 {
		return false
	}
	return stats.StdDev(samples) < 3 && math.Abs(samples[len(samples)-1]-samples[0]) < 5
}

// IdentifyLearningPlateaus checks the last five samples of every skill over
// the trailing 60 days
func (t *TrendAnalyzer) IdentifyLearningPlateaus(ctx context.Context, userID string) (Result[*PlateauReport], error) {
	const op = "identify_learning_plateaus"
	defer t.track(ctx, op)()

	results, err := t.repo.AnalysisResults(ctx, userID, types.Since(t.now(), plateauWindowDays))
	if err != nil {
		return Result[*PlateauReport]{}, fmt.Errorf("failed to load analysis results: %w", err)
	}
	if len(results) < minPlateauRecords {
		return settle(ctx, &t.base, op, InsufficientData[*PlateauReport](
			"need at least %d analysis results in the last %d days, have %d", minPlateauRecords, plateauWindowDays, len(results))), nil
	}

	report := &PlateauReport{
		AffectedSkills:         []string{},
		Details:                make(map[string]PlateauDetail),
		BreakthroughStrategies: []string{},
		RecordsAnalyzed:        len(results),
	}
	for _, name := range SkillNames() {
		points := skillSeries(results, name)
		if len(points) < plateauSamples {
			continue
		}
		last := points[len(points)-plateauSamples:]
		scores := scoresOf(last)
		detail := PlateauDetail{
			IsPlateau:    DetectPlateau(scores),
			DurationDays: int(last[len(last)-1].Date.Sub(last[0].Date).Hours() / 24),
			Average:      stats.Round(stats.Mean(scores), 2),
			Variability:  stats.Round(stats.StdDev(scores), 2),
			Change:       scores[len(scores)-1] - scores[0],
			Scores:       scores,
		}
		report.Details[name] = detail
		if detail.IsPlateau {
			report.AffectedSkills = append(report.AffectedSkills, name)
		}
	}

	report.PlateausDetected = len(report.AffectedSkills) > 0
	report.BreakthroughStrategies = breakthroughStrategies(report.AffectedSkills)
	return Ok(report), nil
}

func breakthroughStrategies(affected []string) []string {
	if len(affected) == 0 {
		return []string{}
	}
	names := make([]string, len(affected))
	for i, s := range affected {
		names[i] = displayName(s)
	}
	out := []string{
		fmt.Sprintf("Switch to harder scenarios that stretch %s", joinNames(names)),
		"Review the feedback from your last sessions and pick one concrete behaviour to change next time",
	}
	if len(affected) >= 3 {
		out = append(out, "Several skills have stalled at once; take a short break, then return with a varied mix of scenarios")
	}
	return out
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		out := names[0]
		for _, n := range names[1 : len(names)-1] {
			out += ", " + n
		}
		return out + " and " + names[len(names)-1]
	}
}

// MomentumReport contrasts the last 30 days with the 30 days before
type MomentumReport struct {
	OverallMomentum     float64             `json:"overall_momentum"`
	Interpretation      string              `json:"interpretation"`
	ActivityMomentum    ActivityMomentum    `json:"activity_momentum"`
	PerformanceMomentum PerformanceMomentum `json:"performance_momentum"`
	Recommendations     []string            `json:"recommendations"`
}

// ActivityMomentum compares practice session counts
type ActivityMomentum struct {
	RecentSessions   int     `json:"recent_sessions"`
	PreviousSessions int     `json:"previous_sessions"`
	ChangeRate       float64 `json:"change_rate"`
}

// PerformanceMomentum compares mean scores
type PerformanceMomentum struct {
	RecentAverage    float64 `json:"recent_average"`
	PreviousAverage  float64 `json:"previous_average"`
	Improvement      float64 `json:"improvement"`
	Score            float64 `json:"score"`
	InsufficientData bool    `json:"insufficient_data,omitempty"`
}

// AnalyzeMomentum compares activity and performance across two 30-day windows
func (t *TrendAnalyzer) AnalyzeMomentum(ctx context.Context, userID string) (Result[*MomentumReport], error) {
	const op = "analyze_momentum"
	defer t.track(ctx, op)()

	now := t.now()
	split := now.AddDate(0, 0, -momentumWindowDays)
	window := types.Since(now, 2*momentumWindowDays)

	results, err := t.repo.AnalysisResults(ctx, userID, window)
	if err != nil {
		return Result[*MomentumReport]{}, fmt.Errorf("failed to load analysis results: %w", err)
	}
	sessions, err := t.repo.PracticeSessions(ctx, userID, window)
	if err != nil {
		return Result[*MomentumReport]{}, fmt.Errorf("failed to load practice sessions: %w", err)
	}

	var activity ActivityMomentum
	for _, s := range sessions {
		if s.StartedAt.Before(split) {
			activity.PreviousSessions++
		} else {
			activity.RecentSessions++
		}
	}
	activityScore := stats.PercentChange(float64(activity.PreviousSessions), float64(activity.RecentSessions))
	activity.ChangeRate = stats.Round(activityScore, 1)

	var recent, previous []*types.AnalysisResult
	for _, ar := range results {
		if ar.CreatedAt.Before(split) {
			previous = append(previous, ar)
		} else {
			recent = append(recent, ar)
		}
	}
	performance, performanceScore := performanceMomentum(recordMeans(recent), recordMeans(previous))

	overall := stats.Round((activityScore+performanceScore)/2, 1)
	return Ok(&MomentumReport{
		OverallMomentum:     overall,
		Interpretation:      interpretMomentum(overall),
		ActivityMomentum:    activity,
		PerformanceMomentum: performance,
		Recommendations:     momentumRecommendations(activityScore, performance, overall),
	}), nil
}

func performanceMomentum(recent, previous []float64) (PerformanceMomentum, float64) {
	if len(recent) == 0 || len(previous) == 0 {
		return PerformanceMomentum{
			RecentAverage:    stats.Round(stats.Mean(recent), 2),
			PreviousAverage:  stats.Round(stats.Mean(previous), 2),
			InsufficientData: true,
		}, 0
	}

	recentAvg, previousAvg := stats.Mean(recent), stats.Mean(previous)
	improvement := stats.GrowthRate(previousAvg, recentAvg)
	score := stats.Clamp(improvement*2, -100, 100)
	return PerformanceMomentum{
		RecentAverage:   stats.Round(recentAvg, 2),
		PreviousAverage: stats.Round(previousAvg, 2),
		Improvement:     stats.Round(improvement, 1),
		Score:           stats.Round(score, 1),
	}, score
}

func interpretMomentum(overall float64) string {
	switch {
	case overall >= 50:
		return MomentumExcellent
	case overall >= 20:
		return MomentumGood
	case overall >= -20:
		return MomentumStable
	case overall >= -50:
		return MomentumDeclining
	default:
		return MomentumSignificantDecline
	}
}

func momentumRecommendations(activity float64, performance PerformanceMomentum, overall float64) []string {
	out := []string{}
	if !performance.InsufficientData {
		switch gap := activity - performance.Score; {
		case gap > 30:
			out = append(out, "You are practicing more but your scores are not keeping pace; slow down and focus on the quality of each session")
		case gap < -30:
			out = append(out, "Your scores are rising faster than your practice volume; add a few more sessions to lock in the progress")
		}
	}
	switch {
	case overall >= 50:
		out = append(out, "Great momentum! Keep your current rhythm and consider tougher scenarios")
	case overall < -20:
		out = append(out, "Your momentum is slipping; plan short, regular sessions to get back on track")
	}
	return out
}
