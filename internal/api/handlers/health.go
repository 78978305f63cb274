package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"convocoach/internal/api/response"
	"convocoach/internal/circuitbreaker"
)

// Health statuses
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

// Probe is a named dependency check. A failing critical probe makes the
// service unhealthy; any other failure only degrades it. Breaker, when
// set, reports the circuit guarding the dependency; an open circuit
// degrades an otherwise passing probe.
type Probe struct {
	Name     string
	Critical bool
	Check    CheckFunc
	Breaker  func() circuitbreaker.Stats
}

// HealthHandler reports liveness and dependency health
type HealthHandler struct {
	version   string
	probes    []Probe
	timeout   time.Duration
	startTime time.Time
}

// HealthStatus is the body of the health endpoint
type HealthStatus struct {
	Status    string           `json:"status"`
	Version   string           `json:"version"`
	Uptime    string           `json:"uptime"`
	Timestamp string           `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
	System    SystemInfo       `json:"system"`
}

// Check is one probe result
type Check struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency string        `json:"latency"`
	Breaker *BreakerCheck `json:"breaker,omitempty"`
}

// BreakerCheck summarizes a circuit breaker
type BreakerCheck struct {
	State               string  `json:"state"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	TotalRequests       int64   `json:"total_requests"`
	TotalFailures       int64   `json:"total_failures"`
	TotalRejections     int64   `json:"total_rejections"`
	FailureRate         float64 `json:"failure_rate"`
	LastFailure         string  `json:"last_failure,omitempty"`
}

// SystemInfo describes the running process
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	MemoryMB     uint64 `json:"memory_mb"`
}

// NewHealthHandler creates a health handler running probes in order
func NewHealthHandler(version string, probes ...Probe) *HealthHandler {
	return &HealthHandler{
		version:   version,
		probes:    probes,
		timeout:   5 * time.Second,
		startTime: time.Now(),
	}
}

// Handle runs every probe and answers 503 when a critical one fails
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := HealthStatus{
		Status:    StatusHealthy,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]Check, len(h.probes)),
		System:    systemInfo(),
	}
	for _, p := range h.probes {
		check := runProbe(ctx, p)
		status.Checks[p.Name] = check
		status.Status = worse(status.Status, check.Status)
	}

	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	response.WriteStatus(w, r, code, status)
}

func runProbe(ctx context.Context, p Probe) Check {
	start := time.Now()
	err := p.Check(ctx)
	check := Check{Status: StatusHealthy, Latency: time.Since(start).Round(time.Microsecond).String()}
	if err != nil {
		check.Status = StatusDegraded
		if p.Critical {
			check.Status = StatusUnhealthy
		}
		check.Message = err.Error()
	}
	if p.Breaker != nil {
		stats := p.Breaker()
		check.Breaker = breakerCheck(stats)
		if stats.State != circuitbreaker.StateClosed && check.Status == StatusHealthy {
			check.Status = StatusDegraded
			check.Message = "circuit breaker " + stats.State.String()
		}
	}
	return check
}

func breakerCheck(stats circuitbreaker.Stats) *BreakerCheck {
	b := &BreakerCheck{
		State:               stats.State.String(),
		ConsecutiveFailures: stats.ConsecutiveErrors,
		TotalRequests:       stats.TotalRequests,
		TotalFailures:       stats.TotalFailures,
		TotalRejections:     stats.TotalRejections,
		FailureRate:         stats.FailureRate,
	}
	if !stats.LastFailureTime.IsZero() {
		b.LastFailure = stats.LastFailureTime.UTC().Format(time.RFC3339)
	}
	return b
}

var severity = map[string]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}

func worse(a, b string) string {
	if severity[b] > severity[a] {
		return b
	}
	return a
}

// ProbeNames lists the configured probes, for startup logging
func (h *HealthHandler) ProbeNames() []string {
	names := make([]string, 0, len(h.probes))
	for _, p := range h.probes {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

func systemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		MemoryMB:     m.Alloc / 1024 / 1024,
	}
}
