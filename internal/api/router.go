// Package api provides the HTTP API layer of the analytics service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"convocoach/internal/analytics"
	"convocoach/internal/api/handlers"
	"convocoach/internal/api/middleware"
	"convocoach/internal/api/response"
	"convocoach/internal/logging"
	"convocoach/internal/monitoring"
	"convocoach/internal/ratelimit"
)

// Options wires the router to the service
type Options struct {
	Dashboard      *analytics.Dashboard
	Limits         handlers.Limits
	Health         *handlers.HealthHandler
	Metrics        *monitoring.Metrics
	Gatherer       prometheus.Gatherer
	Logger         logging.Logger
	AllowedOrigins []string
	// RateLimiter throttles the analytics routes; nil disables limiting
	RateLimiter ratelimit.Limiter
	// TrustProxy takes the client address from X-Forwarded-For and X-Real-IP
	TrustProxy     bool
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// Router is the chi router serving the analytics API
type Router struct {
	mux  *chi.Mux
	opts Options
}

// NewRouter creates the router with its middleware and routes
func NewRouter(opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = logging.NewNoOpLogger()
	}
	if opts.Health == nil {
		opts.Health = handlers.NewHealthHandler("dev")
	}
	if opts.Limits == (handlers.Limits{}) {
		opts.Limits = handlers.DefaultLimits()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	r := &Router{mux: chi.NewRouter(), opts: opts}
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// Handler returns the HTTP handler
func (r *Router) Handler() http.Handler {
	return r.mux
}

func (r *Router) setupMiddleware() {
	if r.opts.TrustProxy {
		r.mux.Use(chimiddleware.RealIP)
	}
	// Recoverer sits inside logging so a panic is logged as a 500
	r.mux.Use(middleware.NewLogging(r.opts.Logger).Handler())
	if r.opts.Metrics != nil {
		r.mux.Use(middleware.Metrics(r.opts.Metrics))
	}
	r.mux.Use(chimiddleware.Recoverer)
	r.mux.Use(middleware.NewCORSMiddleware(&middleware.CORSConfig{AllowedOrigins: r.opts.AllowedOrigins}).Handler())
	r.mux.Use(chimiddleware.Timeout(r.opts.RequestTimeout))
	r.mux.Use(chimiddleware.RequestSize(r.opts.MaxBodyBytes))
	r.mux.Use(chimiddleware.Heartbeat("/ping"))
}

func (r *Router) setupRoutes() {
	r.mux.NotFound(response.WriteNotFound)
	r.mux.MethodNotAllowed(response.WriteMethodNotAllowed)

	r.mux.Get("/health", r.opts.Health.Handle)
	if r.opts.Gatherer != nil {
		r.mux.Handle("/metrics", promhttp.HandlerFor(r.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	if r.opts.Dashboard != nil {
		analyticsHandler := handlers.NewAnalyticsHandler(r.opts.Dashboard, r.opts.Limits, r.opts.Logger)
		r.mux.Route("/api/v1/users/{userID}", func(api chi.Router) {
			if r.opts.RateLimiter != nil {
				api.Use(middleware.RateLimit(r.opts.RateLimiter, r.opts.Metrics, r.opts.Logger))
			}
			analyticsHandler.Routes(api)
		})
	}
}
