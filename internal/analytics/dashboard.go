package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"convocoach/internal/cache"
	"convocoach/internal/stats"
	"convocoach/internal/storage"
	"convocoach/pkg/types"
)

// Recommendation types of the overview
const (
	RecommendationGettingStarted    = "getting_started"
	RecommendationSkillFocus        = "skill_focus"
	RecommendationAdvancedChallenge = "advanced_challenge"
)

const (
	recentActivityLimit  = 5
	comparisonWindowDays = 30
	strengthPercentile   = 75
	weaknessPercentile   = 50
	weakSkillScore       = 70
)

// Dashboard composes the analyzers into the user-facing dashboard and owns
// the overview cache. Cached overviews are served until they expire; new
// analysis results do not invalidate them.
type Dashboard struct {
	base
	cache  cache.Cache
	skills *SkillAnalyzer
	trends *TrendAnalyzer
}

// NewDashboard creates a dashboard. A nil cache disables caching.
func NewDashboard(repo storage.Repository, c cache.Cache, opts ...Option) *Dashboard {
	if c == nil {
		c = cache.Noop{}
	}
	return &Dashboard{
		base:   newBase(repo, "dashboard", opts),
		cache:  c,
		skills: NewSkillAnalyzer(repo, opts...),
		trends: NewTrendAnalyzer(repo, opts...),
	}
}

// Skills returns the skill analyzer sharing the dashboard's dependencies
func (d *Dashboard) Skills() *SkillAnalyzer { return d.skills }

// Trends returns the trend analyzer sharing the dashboard's dependencies
func (d *Dashboard) Trends() *TrendAnalyzer { return d.trends }

// Overview is the cached summary shown on the dashboard landing page
type Overview struct {
	UserID               string         `json:"user_id"`
	TotalSessions        int            `json:"total_sessions"`
	TotalPracticeMinutes int            `json:"total_practice_minutes"`
	SkillSummary         SkillSummary   `json:"skill_summary"`
	RecentActivity       []Activity     `json:"recent_activity"`
	Achievements         []string       `json:"achievements"`
	Recommendation       Recommendation `json:"recommendation"`
	GeneratedAt          time.Time      `json:"generated_at"`
}

// SkillSummary holds the latest scores
type SkillSummary struct {
	CurrentScores    map[string]float64 `json:"current_scores"`
	TopSkills        []SkillScore       `json:"top_skills"`
	NeedsImprovement []SkillScore       `json:"needs_improvement"`
	LastAssessed     *time.Time         `json:"last_assessed,omitempty"`
}

// Activity is one recent practice session
type Activity struct {
	SessionID    string            `json:"session_id"`
	Date         time.Time         `json:"date"`
	SessionType  types.SessionType `json:"session_type"`
	ScenarioID   *string           `json:"scenario_id"`
	MessageCount int               `json:"message_count"`
}

// Recommendation is the single next step suggested to the user
type Recommendation struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Skill   string `json:"skill,omitempty"`
}

// UserOverview returns the cached overview or computes and caches a new
// one. Cache failures are logged and treated as a miss.
func (d *Dashboard) UserOverview(ctx context.Context, userID string) (*Overview, error) {
	const op = "user_overview"
	defer d.track(ctx, op)()

	key := cache.OverviewKey(userID)
	if overview, ok := d.cachedOverview(ctx, key); ok {
		return overview, nil
	}

	overview, err := d.buildOverview(ctx, userID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(overview)
	if err != nil {
		return nil, fmt.Errorf("failed to encode overview: %w", err)
	}
	if err := d.cache.SetEX(ctx, key, d.settings.OverviewTTL, string(payload)); err != nil {
		d.logger.WarnContext(ctx, "failed to cache overview", "key", key, "error", err)
	}
	return overview, nil
}

func (d *Dashboard) cachedOverview(ctx context.Context, key string) (*Overview, bool) {
	raw, found, err := d.cache.Get(ctx, key)
	if err != nil {
		d.logger.WarnContext(ctx, "overview cache unavailable, computing directly", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	var overview Overview
	if err := json.Unmarshal([]byte(raw), &overview); err != nil {
		d.logger.WarnContext(ctx, "discarding unreadable cached overview", "key", key, "error", err)
		return nil, false
	}
	return &overview, true
}

func (d *Dashboard) buildOverview(ctx context.Context, userID string) (*Overview, error) {
	now := d.now()
	sessions, err := d.repo.PracticeSessions(ctx, userID, types.TimeRange{To: now})
	if err != nil {
		return nil, fmt.Errorf("failed to load practice sessions: %w", err)
	}
	latest, err := d.repo.LatestAnalysisResult(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest analysis result: %w", err)
	}

	var practice time.Duration
	for _, s := range sessions {
		practice += s.Duration()
	}

	recent, err := d.recentActivity(ctx, sessions)
	if err != nil {
		return nil, err
	}

	summary := skillSummary(latest)
	return &Overview{
		UserID:               userID,
		TotalSessions:        len(sessions),
		TotalPracticeMinutes: int(math.Floor(practice.Minutes())),
		SkillSummary:         summary,
		RecentActivity:       recent,
		Achievements:         []string{},
		Recommendation:       overviewRecommendation(summary.CurrentScores),
		GeneratedAt:          now,
	}, nil
}

func (d *Dashboard) recentActivity(ctx context.Context, sessions []*types.PracticeSession) ([]Activity, error) {
	out := []Activity{}
	for i := len(sessions) - 1; i >= 0 && len(out) < recentActivityLimit; i-- {
		s := sessions[i]
		logs, err := d.repo.ConversationLogs(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation logs for session %s: %w", s.ID, err)
		}
		out = append(out, Activity{
			SessionID:    s.ID,
			Date:         s.StartedAt,
			SessionType:  s.SessionType,
			ScenarioID:   s.ScenarioID,
			MessageCount: len(logs),
		})
	}
	return out, nil
}

func skillSummary(latest *types.AnalysisResult) SkillSummary {
	summary := SkillSummary{
		CurrentScores:    map[string]float64{},
		TopSkills:        []SkillScore{},
		NeedsImprovement: []SkillScore{},
	}
	if latest == nil || len(latest.Scores) == 0 {
		return summary
	}

	for skill, score := range latest.Scores {
		summary.CurrentScores[skill] = score
	}
	ranked := rankScores(summary.CurrentScores)
	summary.TopSkills = topN(ranked, 3)
	summary.NeedsImprovement = bottomN(ranked, 3)
	assessed := latest.CreatedAt
	summary.LastAssessed = &assessed
	return summary
}

func overviewRecommendation(current map[string]float64) Recommendation {
	if len(current) == 0 {
		return Recommendation{
			Type:    RecommendationGettingStarted,
			Message: "Complete your first practice scenario to get a baseline for your communication skills",
		}
	}

	ranked := rankScores(current)
	weakest := ranked[len(ranked)-1]
	if weakest.Score < weakSkillScore {
		return Recommendation{
			Type:    RecommendationSkillFocus,
			Skill:   weakest.Skill,
			Message: fmt.Sprintf("Practice scenarios that build your %s; it is currently your lowest score at %.0f", weakest.DisplayName, weakest.Score),
		}
	}
	return Recommendation{
		Type:    RecommendationAdvancedChallenge,
		Message: "All your skills are in good shape; try an advanced scenario to keep growing",
	}
}

// Progression lists every skill's scores over the window
type Progression struct {
	PeriodDays    int                     `json:"period_days"`
	SkillTrends   map[string][]ScorePoint `json:"skill_trends"`
	GrowthRates   map[string]float64      `json:"growth_rates"`
	TotalAnalyses int                     `json:"total_analyses"`
}

// SkillProgression returns per-skill {date, score} series and growth rates
func (d *Dashboard) SkillProgression(ctx context.Context, userID string, days int) (*Progression, error) {
	const op = "skill_progression"
	defer d.track(ctx, op)()
	days = orDefault(days, DefaultProgressionDays)

	results, err := d.repo.AnalysisResults(ctx, userID, types.Since(d.now(), days))
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis results: %w", err)
	}

	p := &Progression{
		PeriodDays:    days,
		SkillTrends:   make(map[string][]ScorePoint),
		GrowthRates:   make(map[string]float64),
		TotalAnalyses: len(results),
	}
	for _, ar := range results {
		for skill, score := range ar.Scores {
			p.SkillTrends[skill] = append(p.SkillTrends[skill], ScorePoint{Date: ar.CreatedAt, Score: score})
		}
	}
	for skill, points := range p.SkillTrends {
		if len(points) < 2 {
			p.GrowthRates[skill] = 0
			continue
		}
		p.GrowthRates[skill] = stats.Round(stats.GrowthRate(points[0].Score, points[len(points)-1].Score), 1)
	}
	return p, nil
}

// ScenarioPerformance groups the user's scenario sessions by scenario
type ScenarioPerformance struct {
	Scenarios       map[string]*ScenarioStats `json:"scenarios"`
	TotalSessions   int                       `json:"total_sessions"`
	MostPracticed   []ScenarioRank            `json:"most_practiced"`
	BestPerforming  []ScenarioRank            `json:"best_performing"`
	Recommendations []string                  `json:"recommendations"`
}

// ScenarioStats aggregates one scenario
type ScenarioStats struct {
	ScenarioID           string             `json:"scenario_id"`
	Sessions             int                `json:"sessions"`
	AverageMessageLength float64            `json:"average_message_length"`
	AverageScores        map[string]float64 `json:"average_scores"`
	AverageScore         *float64           `json:"average_score,omitempty"`
	LastPracticed        time.Time          `json:"last_practiced"`
}

// ScenarioRank is a scenario with the value it was ranked by
type ScenarioRank struct {
	ScenarioID string  `json:"scenario_id"`
	Value      float64 `json:"value"`
}

// ScenarioPerformance aggregates scenario sessions, message lengths and linked scores
func (d *Dashboard) ScenarioPerformance(ctx context.Context, userID string) (*ScenarioPerformance, error) {
	const op = "scenario_performance"
	defer d.track(ctx, op)()

	all := types.TimeRange{To: d.now()}
	sessions, err := d.repo.PracticeSessions(ctx, userID, all)
	if err != nil {
		return nil, fmt.Errorf("failed to load practice sessions: %w", err)
	}
	results, err := d.repo.AnalysisResults(ctx, userID, all)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis results: %w", err)
	}

	bySession := make(map[string][]*types.AnalysisResult)
	for _, ar := range results {
		if ar.SessionID != "" {
			bySession[ar.SessionID] = append(bySession[ar.SessionID], ar)
		}
	}

	type accumulator struct {
		entry  *ScenarioStats
		length stats.RunningMean
		scores map[string][]float64
	}
	acc := make(map[string]*accumulator)
	perf := &ScenarioPerformance{Scenarios: make(map[string]*ScenarioStats)}

	for _, s := range sessions {
		if s.SessionType != types.SessionTypeScenario || s.ScenarioID == nil {
			continue
		}
		id := *s.ScenarioID
		a, ok := acc[id]
		if !ok {
			a = &accumulator{
				entry:  &ScenarioStats{ScenarioID: id, AverageScores: map[string]float64{}},
				scores: make(map[string][]float64),
			}
			acc[id] = a
			perf.Scenarios[id] = a.entry
		}
		a.entry.Sessions++
		perf.TotalSessions++
		if s.StartedAt.After(a.entry.LastPracticed) {
			a.entry.LastPracticed = s.StartedAt
		}

		logs, err := d.repo.ConversationLogs(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation logs for session %s: %w", s.ID, err)
		}
		if mean, ok := meanUserMessageLength(logs); ok {
			a.length.Add(mean)
		}
		for _, ar := range bySession[s.ID] {
			for skill, score := range ar.Scores {
				a.scores[skill] = append(a.scores[skill], score)
			}
		}
	}

	var scored []ScenarioRank
	for id, a := range acc {
		a.entry.AverageMessageLength = stats.Round(a.length.Value(), 1)
		a.entry.AverageScores = averages(a.scores)
		if len(a.entry.AverageScores) > 0 {
			values := make([]float64, 0, len(a.entry.AverageScores))
			for _, v := range a.entry.AverageScores {
				values = append(values, v)
			}
			avg := stats.Round(stats.Mean(values), 2)
			a.entry.AverageScore = &avg
			scored = append(scored, ScenarioRank{ScenarioID: id, Value: avg})
		}
	}

	practiced := make([]ScenarioRank, 0, len(acc))
	for id, a := range acc {
		practiced = append(practiced, ScenarioRank{ScenarioID: id, Value: float64(a.entry.Sessions)})
	}
	sortRanks(practiced, true)
	sortRanks(scored, true)

	perf.MostPracticed = firstRanks(practiced, 3)
	perf.BestPerforming = firstRanks(scored, 3)
	perf.Recommendations = d.recommendScenarios(practiced)
	return perf, nil
}

// meanUserMessageLength averages the character length of the user's messages
func meanUserMessageLength(logs []*types.ConversationLog) (float64, bool) {
	var m stats.RunningMean
	for _, l := range logs {
		if l.Speaker == types.SpeakerUser {
			m.Add(float64(utf8.RuneCountInString(l.Message)))
		}
	}
	return m.Value(), m.Count() > 0
}

// sortRanks orders by value, ties by scenario id ascending
func sortRanks(ranks []ScenarioRank, descending bool) {
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Value != ranks[j].Value {
			if descending {
				return ranks[i].Value > ranks[j].Value
			}
			return ranks[i].Value < ranks[j].Value
		}
		return scenarioLess(ranks[i].ScenarioID, ranks[j].ScenarioID)
	})
}

// scenarioLess orders scenario2 before scenario10
func scenarioLess(a, b string) bool {
	na, errA := strconv.Atoi(trimScenarioPrefix(a))
	nb, errB := strconv.Atoi(trimScenarioPrefix(b))
	if errA == nil && errB == nil && na != nb {
		return na < nb
	}
	return a < b
}

func trimScenarioPrefix(id string) string {
	const prefix = "scenario"
	if len(id) > len(prefix) && id[:len(prefix)] == prefix {
		return id[len(prefix):]
	}
	return id
}

func firstRanks(ranks []ScenarioRank, n int) []ScenarioRank {
	if len(ranks) > n {
		ranks = ranks[:n]
	}
	return append([]ScenarioRank{}, ranks...)
}

// recommendScenarios suggests up to three unpracticed scenarios from the
// pool, or the three least practiced when the user has tried them all
func (d *Dashboard) recommendScenarios(practiced []ScenarioRank) []string {
	seen := make(map[string]bool, len(practiced))
	for _, r := range practiced {
		seen[r.ScenarioID] = true
	}

	out := []string{}
	for i := 1; i <= d.settings.ScenarioPoolSize && len(out) < 3; i++ {
		id := "scenario" + strconv.Itoa(i)
		if !seen[id] {
			out = append(out, id)
		}
	}
	if len(out) > 0 {
		return out
	}

	least := append([]ScenarioRank(nil), practiced...)
	sortRanks(least, false)
	for _, r := range firstRanks(least, 3) {
		out = append(out, r.ScenarioID)
	}
	return out
}

// ComparativeAnalysis places the user's latest scores within the population
type ComparativeAnalysis struct {
	Comparison          map[string]PopulationComparison `json:"comparison"`
	TotalUsers          int                             `json:"total_users"`
	Strengths           []SkillPercentile               `json:"strengths"`
	AreasForImprovement []SkillPercentile               `json:"areas_for_improvement"`
}

// PopulationComparison compares one skill with other users' latest scores
type PopulationComparison struct {
	UserScore      float64 `json:"user_score"`
	PopulationMean float64 `json:"population_mean"`
	Percentile     float64 `json:"percentile"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	StdDev         float64 `json:"std_dev"`
	SampleSize     int     `json:"sample_size"`
}

// SkillPercentile is a skill with the user's percentile
type SkillPercentile struct {
	Skill      string  `json:"skill"`
	Percentile float64 `json:"percentile"`
}

// ComparativeAnalysis compares the user's latest scores with every other
// user's latest score per skill over the last 30 days. Only aggregates are
// returned.
func (d *Dashboard) ComparativeAnalysis(ctx context.Context, userID string) (Result[*ComparativeAnalysis], error) {
	const op = "comparative_analysis"
	defer d.track(ctx, op)()

	latest, err := d.repo.LatestAnalysisResult(ctx, userID)
	if err != nil {
		return Result[*ComparativeAnalysis]{}, fmt.Errorf("failed to load latest analysis result: %w", err)
	}
	if latest == nil || len(latest.Scores) == 0 {
		return settle(ctx, &d.base, op, InsufficientData[*ComparativeAnalysis]("no analysis data for user")), nil
	}

	population, err := d.repo.PopulationAnalysisResults(ctx, types.Since(d.now(), comparisonWindowDays))
	if err != nil {
		return Result[*ComparativeAnalysis]{}, fmt.Errorf("failed to load population analysis results: %w", err)
	}

	// latest score per user per skill; results arrive oldest first
	latestByUser := make(map[string]map[string]float64)
	for _, ar := range population {
		if ar.UserID == userID {
			continue
		}
		scores, ok := latestByUser[ar.UserID]
		if !ok {
			scores = make(map[string]float64)
			latestByUser[ar.UserID] = scores
		}
		for skill, score := range ar.Scores {
			scores[skill] = score
		}
	}

	report := &ComparativeAnalysis{
		Comparison:          make(map[string]PopulationComparison),
		TotalUsers:          len(latestByUser),
		Strengths:           []SkillPercentile{},
		AreasForImprovement: []SkillPercentile{},
	}
	for skill, userScore := range latest.Scores {
		var others []float64
		for _, scores := range latestByUser {
			if s, ok := scores[skill]; ok {
				others = append(others, s)
			}
		}
		if len(others) == 0 {
			continue
		}

		below := 0
		for _, s := range others {
			if s < userScore {
				below++
			}
		}
		summary, _ := stats.Describe(others)
		percentile := stats.Round(float64(below)/float64(len(others))*100, 1)
		report.Comparison[skill] = PopulationComparison{
			UserScore:      userScore,
			PopulationMean: stats.Round(summary.Mean, 2),
			Percentile:     percentile,
			Min:            summary.Min,
			Max:            summary.Max,
			StdDev:         stats.Round(summary.StdDev, 2),
			SampleSize:     len(others),
		}

		switch {
		case percentile >= strengthPercentile:
			report.Strengths = append(report.Strengths, SkillPercentile{Skill: skill, Percentile: percentile})
		case percentile < weaknessPercentile:
			report.AreasForImprovement = append(report.AreasForImprovement, SkillPercentile{Skill: skill, Percentile: percentile})
		}
	}

	sort.SliceStable(report.Strengths, func(i, j int) bool {
		if report.Strengths[i].Percentile != report.Strengths[j].Percentile {
			return report.Strengths[i].Percentile > report.Strengths[j].Percentile
		}
		return skillLess(report.Strengths[i].Skill, report.Strengths[j].Skill)
	})
	sort.SliceStable(report.AreasForImprovement, func(i, j int) bool {
		if report.AreasForImprovement[i].Percentile != report.AreasForImprovement[j].Percentile {
			return report.AreasForImprovement[i].Percentile < report.AreasForImprovement[j].Percentile
		}
		return skillLess(report.AreasForImprovement[i].Skill, report.AreasForImprovement[j].Skill)
	})
	return Ok(report), nil
}
