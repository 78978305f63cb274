package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"convocoach/internal/api/response"
	"convocoach/internal/errors"
	"convocoach/internal/logging"
	"convocoach/internal/monitoring"
	"convocoach/internal/ratelimit"
)

// RateLimit rejects clients exceeding the limiter's window with 429. The
// client key is the remote IP. Limiter failures admit the request.
func RateLimit(limiter ratelimit.Limiter, metrics *monitoring.Metrics, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	logger = logger.WithComponent("ratelimit")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := limiter.Allow(r.Context(), clientKey(r))
			if err != nil {
				metrics.RecordRateLimit(monitoring.RateLimitError)
				logger.WarnContext(r.Context(), "rate limit check failed, admitting request", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				metrics.RecordRateLimit(monitoring.RateLimitRejected)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
				response.WriteError(w, r, errors.NewStandardError(errors.ErrorCodeRateLimitExceeded,
					"Too many requests", map[string]interface{}{"retry_after_seconds": math.Ceil(d.RetryAfter.Seconds())}))
				return
			}
			metrics.RecordRateLimit(monitoring.RateLimitAllowed)
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
