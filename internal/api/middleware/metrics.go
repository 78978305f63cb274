package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"convocoach/internal/monitoring"
)

// Metrics records request counts and latency per chi route pattern, so
// user IDs never become label values
func Metrics(m *monitoring.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := NewStatusRecorder(w)
			next.ServeHTTP(rec, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			m.ObserveHTTP(route, r.Method, rec.Status(), time.Since(start))
		})
	}
}
