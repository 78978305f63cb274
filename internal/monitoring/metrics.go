// Package monitoring exposes the Prometheus collectors shared by the
// analytics services, the cache layer and the HTTP API.
package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "convocoach"

// Cache request outcomes
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Rate limit outcomes
const (
	RateLimitAllowed  = "allowed"
	RateLimitRejected = "rejected"
	RateLimitError    = "error"
)

// Metrics holds the Prometheus collectors for one registry.
//
// Metrics:
//   - convocoach_cache_requests_total{cache,result} - cache lookups by outcome
//   - convocoach_cache_writes_total{cache,result} - cache writes by outcome
//   - convocoach_breaker_state{backend} - 0 closed, 1 open, 2 half-open, for the cache and storage breakers
//   - convocoach_storage_retries_total{operation} - storage reads retried after a transient failure
//   - convocoach_analytics_operation_duration_seconds{operation} - analyzer latency
//   - convocoach_analytics_soft_errors_total{operation,reason} - insufficient data and unknown skill outcomes
//   - convocoach_http_requests_total{route,method,status} - served requests
//   - convocoach_http_request_duration_seconds{route,method} - request latency
//   - convocoach_http_rate_limit_total{result} - rate limiter decisions
type Metrics struct {
	CacheRequests  *prometheus.CounterVec
	CacheWrites    *prometheus.CounterVec
	BreakerState   *prometheus.GaugeVec
	StorageRetries *prometheus.CounterVec

	OperationDuration *prometheus.HistogramVec
	SoftErrors        *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	RateLimit    *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. A nil reg uses a fresh
// private registry, which keeps tests independent of each other.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		CacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Total number of cache lookups by outcome",
		}, []string{"cache", "result"}),

		CacheWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Total number of cache writes by outcome",
		}, []string{"cache", "result"}),

		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state per guarded backend (0 closed, 1 open, 2 half-open)",
		}, []string{"backend"}),

		StorageRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_retries_total",
			Help:      "Storage reads retried after a transient failure",
		}, []string{"operation"}),

		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analytics_operation_duration_seconds",
			Help:      "Duration of analytics operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"operation"}),

		SoftErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_soft_errors_total",
			Help:      "Analytics operations that returned a soft error instead of a result",
		}, []string{"operation", "reason"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served",
		}, []string{"route", "method", "status"}),

		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),

		RateLimit: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limit_total",
			Help:      "Rate limiter decisions by outcome",
		}, []string{"result"}),
	}
}

// RecordCacheRequest counts one cache lookup.
func (m *Metrics) RecordCacheRequest(cache, result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(cache, result).Inc()
}

// RecordCacheWrite counts one cache write; err decides the outcome label.
func (m *Metrics) RecordCacheWrite(cache string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = CacheError
	}
	m.CacheWrites.WithLabelValues(cache, result).Inc()
}

// SetBreakerState publishes the state of the breaker guarding a backend.
func (m *Metrics) SetBreakerState(backend string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(backend).Set(float64(state))
}

// RecordStorageRetry counts one retried storage read.
func (m *Metrics) RecordStorageRetry(operation string) {
	if m == nil {
		return
	}
	m.StorageRetries.WithLabelValues(operation).Inc()
}

// ObserveOperation records how long an analytics operation took.
func (m *Metrics) ObserveOperation(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSoftError counts an operation that answered with a soft error.
func (m *Metrics) RecordSoftError(operation, reason string) {
	if m == nil {
		return
	}
	m.SoftErrors.WithLabelValues(operation, reason).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordRateLimit counts one rate limiter decision.
func (m *Metrics) RecordRateLimit(result string) {
	if m == nil {
		return
	}
	m.RateLimit.WithLabelValues(result).Inc()
}
