package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryConfig configures the in-process cache
type MemoryConfig struct {
	MaxEntries      int
	CleanupInterval time.Duration
	// Now is the clock, overridable in tests
	Now func() time.Time
}

// MemoryStats reports cache effectiveness
type MemoryStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Sets      int64   `json:"sets"`
	Evictions int64   `json:"evictions"`
	Items     int     `json:"items"`
	HitRate   float64 `json:"hit_rate"`
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is a thread-safe TTL map with a background janitor
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	config  MemoryConfig
	stats   MemoryStats
	stop    chan struct{}
	closed  bool
}

// NewMemoryCache creates an in-process cache. A positive CleanupInterval
// starts a janitor goroutine which Close stops.
func NewMemoryCache(cfg MemoryConfig) *MemoryCache {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		config:  cfg,
		stop:    make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go c.janitor(cfg.CleanupInterval)
	}
	return c
}

// Get returns a live entry
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", false, ErrClosed
	}

	entry, ok := c.entries[key]
	if ok && !c.config.Now().Before(entry.expiresAt) {
		delete(c.entries, key)
		c.stats.Evictions++
		ok = false
	}
	if !ok {
		c.stats.Misses++
		return "", false, nil
	}
	c.stats.Hits++
	return entry.value, true, nil
}

// SetEX stores a value until ttl elapses
func (c *MemoryCache) SetEX(_ context.Context, key string, ttl time.Duration, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	now := c.config.Now()
	if _, exists := c.entries[key]; !exists && c.config.MaxEntries > 0 && len(c.entries) >= c.config.MaxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
	c.stats.Sets++
	return nil
}

// evictLocked drops expired entries, then the entry closest to expiry
func (c *MemoryCache) evictLocked(now time.Time) {
	if c.removeExpiredLocked(now) > 0 {
		return
	}

	var (
		victim string
		oldest time.Time
	)
	for key, entry := range c.entries {
		if victim == "" || entry.expiresAt.Before(oldest) {
			victim, oldest = key, entry.expiresAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
		c.stats.Evictions++
	}
}

func (c *MemoryCache) removeExpiredLocked(now time.Time) int {
	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	c.stats.Evictions += int64(removed)
	return removed
}

// Cleanup removes expired entries and reports how many went
func (c *MemoryCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}
	return c.removeExpiredLocked(c.config.Now())
}

// Stats returns a snapshot of the counters
func (c *MemoryCache) Stats() MemoryStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Items = len(c.entries)
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Close stops the janitor and drops every entry
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.stop)
	c.entries = nil
	return nil
}

func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.stop:
			return
		}
	}
}
