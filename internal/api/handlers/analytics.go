// Package handlers provides the HTTP handlers of the analytics API.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"convocoach/internal/analytics"
	"convocoach/internal/api/response"
	"convocoach/internal/errors"
	"convocoach/internal/logging"
)

// Window is a query parameter's default and upper bound in days
type Window struct {
	Default int
	Max     int
}

// Limits bounds the day-count query parameters
type Limits struct {
	Progression Window
	Skill       Window
	Trend       Window
	Prediction  Window
}

// DefaultLimits returns the windows the service ships with
func DefaultLimits() Limits {
	return Limits{
		Progression: Window{Default: analytics.DefaultProgressionDays, Max: 180},
		Skill:       Window{Default: analytics.DefaultSkillDays, Max: 365},
		Trend:       Window{Default: analytics.DefaultTrendDays, Max: 365},
		Prediction:  Window{Default: analytics.DefaultPredictionDays, Max: 90},
	}
}

// AnalyticsHandler serves the per-user analytics reports
type AnalyticsHandler struct {
	dashboard *analytics.Dashboard
	limits    Limits
	logger    logging.Logger
}

// NewAnalyticsHandler creates the handler
func NewAnalyticsHandler(dashboard *analytics.Dashboard, limits Limits, logger logging.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &AnalyticsHandler{dashboard: dashboard, limits: limits, logger: logger.WithComponent("analytics_api")}
}

// Routes mounts the handlers under a /users/{userID} subrouter
func (h *AnalyticsHandler) Routes(r chi.Router) {
	r.Get("/overview", h.Overview)
	r.Get("/progression", h.Progression)
	r.Get("/scenarios", h.Scenarios)
	r.Get("/comparison", h.Comparison)
	r.Get("/skills", h.CompareSkills)
	r.Get("/skills/correlations", h.Correlations)
	r.Get("/skills/{skill}", h.SkillProgress)
	r.Get("/trends", h.Trends)
	r.Get("/predictions/{skill}", h.Prediction)
	r.Get("/plateaus", h.Plateaus)
	r.Get("/momentum", h.Momentum)
}

// Overview serves the cached dashboard overview
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.dashboard.UserOverview(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, "user_overview", err)
		return
	}
	response.WriteSuccess(w, r, overview)
}

// Progression serves per-skill score series
func (h *AnalyticsHandler) Progression(w http.ResponseWriter, r *http.Request) {
	days, ok := h.days(w, r, "days", h.limits.Progression)
	if !ok {
		return
	}
	progression, err := h.dashboard.SkillProgression(r.Context(), chi.URLParam(r, "userID"), days)
	if err != nil {
		h.fail(w, r, "skill_progression", err)
		return
	}
	response.WriteSuccess(w, r, progression)
}

// Scenarios serves the per-scenario aggregation
func (h *AnalyticsHandler) Scenarios(w http.ResponseWriter, r *http.Request) {
	perf, err := h.dashboard.ScenarioPerformance(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, "scenario_performance", err)
		return
	}
	response.WriteSuccess(w, r, perf)
}

// Comparison serves the population comparison
func (h *AnalyticsHandler) Comparison(w http.ResponseWriter, r *http.Request) {
	res, err := h.dashboard.ComparativeAnalysis(r.Context(), chi.URLParam(r, "userID"))
	writeResult(h, w, r, "comparative_analysis", res, err)
}

// CompareSkills serves the cross-skill comparison
func (h *AnalyticsHandler) CompareSkills(w http.ResponseWriter, r *http.Request) {
	days, ok := h.days(w, r, "days", h.limits.Skill)
	if !ok {
		return
	}
	res, err := h.dashboard.Skills().CompareSkills(r.Context(), chi.URLParam(r, "userID"), days)
	writeResult(h, w, r, "compare_skills", res, err)
}

// Correlations serves the skill correlation matrix
func (h *AnalyticsHandler) Correlations(w http.ResponseWriter, r *http.Request) {
	res, err := h.dashboard.Skills().SkillCorrelations(r.Context(), chi.URLParam(r, "userID"))
	writeResult(h, w, r, "skill_correlations", res, err)
}

// SkillProgress serves the deep analysis of one skill
func (h *AnalyticsHandler) SkillProgress(w http.ResponseWriter, r *http.Request) {
	days, ok := h.days(w, r, "days", h.limits.Skill)
	if !ok {
		return
	}
	res, err := h.dashboard.Skills().AnalyzeSkillProgress(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "skill"), days)
	writeResult(h, w, r, "analyze_skill_progress", res, err)
}

// Trends serves the overall trend report
func (h *AnalyticsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	days, ok := h.days(w, r, "days", h.limits.Trend)
	if !ok {
		return
	}
	res, err := h.dashboard.Trends().AnalyzeOverallTrends(r.Context(), chi.URLParam(r, "userID"), days)
	writeResult(h, w, r, "analyze_overall_trends", res, err)
}

// Prediction serves a skill forecast
func (h *AnalyticsHandler) Prediction(w http.ResponseWriter, r *http.Request) {
	daysAhead, ok := h.days(w, r, "days_ahead", h.limits.Prediction)
	if !ok {
		return
	}
	res, err := h.dashboard.Trends().PredictFuturePerformance(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "skill"), daysAhead)
	writeResult(h, w, r, "predict_future_performance", res, err)
}

// Plateaus serves the plateau report
func (h *AnalyticsHandler) Plateaus(w http.ResponseWriter, r *http.Request) {
	res, err := h.dashboard.Trends().IdentifyLearningPlateaus(r.Context(), chi.URLParam(r, "userID"))
	writeResult(h, w, r, "identify_learning_plateaus", res, err)
}

// Momentum serves the 30-day momentum comparison
func (h *AnalyticsHandler) Momentum(w http.ResponseWriter, r *http.Request) {
	res, err := h.dashboard.Trends().AnalyzeMomentum(r.Context(), chi.URLParam(r, "userID"))
	writeResult(h, w, r, "analyze_momentum", res, err)
}

// days reads a day-count parameter. A missing or non-positive value uses
// the default and a value above the cap is clamped; anything that is not
// an integer is rejected with 400.
func (h *AnalyticsHandler) days(w http.ResponseWriter, r *http.Request, name string, window Window) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return window.Default, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		response.WriteBadRequest(w, r, name, "must be an integer", raw)
		return 0, false
	}
	return clampDays(n, window), true
}

func clampDays(n int, window Window) int {
	switch {
	case n <= 0:
		return window.Default
	case window.Max > 0 && n > window.Max:
		return window.Max
	default:
		return n
	}
}

func (h *AnalyticsHandler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	se := errors.FromError(err)
	log := h.logger.WarnContext
	if errors.IsSystemError(se) {
		log = h.logger.ErrorContext
	}
	log(r.Context(), "analytics request failed",
		"operation", operation,
		"user_id", chi.URLParam(r, "userID"),
		"code", string(se.ErrorInfo.Code),
		"error", err,
	)
	response.WriteError(w, r, se)
}

func writeResult[T any](h *AnalyticsHandler, w http.ResponseWriter, r *http.Request, operation string, res analytics.Result[T], err error) {
	if err != nil {
		h.fail(w, r, operation, err)
		return
	}
	if value, soft := res.Unwrap(); soft != nil {
		response.WriteSoftError(w, r, soft)
	} else {
		response.WriteSuccess(w, r, value)
	}
}
