package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow keeps request timestamps per key in process memory
type SlidingWindow struct {
	mu      sync.Mutex
	limit   Limit
	windows map[string][]time.Time
	now     func() time.Time
	stop    chan struct{}
	closed  bool
}

// NewSlidingWindow creates an in-memory limiter. A positive cleanup
// interval starts a goroutine that drops idle keys; stop it with Close.
func NewSlidingWindow(limit Limit, cleanup time.Duration, now func() time.Time) *SlidingWindow {
	if now == nil {
		now = time.Now
	}
	sw := &SlidingWindow{
		limit:   limit,
		windows: make(map[string][]time.Time),
		now:     now,
		stop:    make(chan struct{}),
	}
	if cleanup > 0 {
		go sw.janitor(cleanup)
	}
	return sw
}

// Allow implements Limiter
func (sw *SlidingWindow) Allow(_ context.Context, key string) (Decision, error) {
	now := sw.now()

	sw.mu.Lock()
	defer sw.mu.Unlock()

	requests := prune(sw.windows[key], now.Add(-sw.limit.Window))
	var oldest time.Time
	if len(requests) > 0 {
		oldest = requests[0]
	}
	d := decide(sw.limit, len(requests), oldest, now)
	if d.Allowed {
		requests = append(requests, now)
	}
	sw.windows[key] = requests
	return d, nil
}

// prune drops timestamps at or before start; requests are in ascending order
func prune(requests []time.Time, start time.Time) []time.Time {
	i := 0
	for i < len(requests) && !requests[i].After(start) {
		i++
	}
	return requests[i:]
}

// Cleanup removes keys without requests in the current window and reports
// how many were removed
func (sw *SlidingWindow) Cleanup() int {
	start := sw.now().Add(-sw.limit.Window)

	sw.mu.Lock()
	defer sw.mu.Unlock()
	removed := 0
	for key, requests := range sw.windows {
		if len(prune(requests, start)) == 0 {
			delete(sw.windows, key)
			removed++
		}
	}
	return removed
}

// Keys reports the number of tracked clients
func (sw *SlidingWindow) Keys() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return len(sw.windows)
}

// Close stops the janitor
func (sw *SlidingWindow) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if !sw.closed {
		sw.closed = true
		close(sw.stop)
	}
	return nil
}

func (sw *SlidingWindow) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sw.Cleanup()
		case <-sw.stop:
			return
		}
	}
}
