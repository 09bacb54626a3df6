package normalizer

import (
	"sync"
	"time"

	coremodel "NetGuard/internal/core/model"
	"NetGuard/internal/model"
)

// cacheEntry is one cached process lookup. Failed lookups are cached too,
// so a dead pid is not re-queried on every snapshot within the TTL.
type cacheEntry struct {
	info      coremodel.ProcessInfo
	expiresAt time.Time
}

// ProcessCache memoizes ProcessInspector lookups with a TTL. Eviction is
// lazy: an expired entry is refreshed on the next lookup. Staleness is
// bounded by the TTL, not guaranteed instantaneous.
type ProcessCache struct {
	inspector model.ProcessInspector
	ttl       time.Duration

	mu      sync.Mutex
	entries map[int32]cacheEntry
}

// NewProcessCache creates a cache over the given inspector.
func NewProcessCache(inspector model.ProcessInspector, ttl time.Duration) *ProcessCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &ProcessCache{
		inspector: inspector,
		ttl:       ttl,
		entries:   make(map[int32]cacheEntry),
	}
}

// Get returns the cached process info for a pid, populating the cache on a
// miss. When resolution fails the returned info carries the unknown-name
// sentinel; the snapshot is never aborted for one unresolved pid.
func (c *ProcessCache) Get(pid int32) coremodel.ProcessInfo {
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.entries[pid]; ok && now.Before(e.expiresAt) {
		c.mu.Unlock()
		return e.info
	}
	c.mu.Unlock()

	// Resolve outside the lock: inspector calls can block.
	info, err := c.inspector.Resolve(pid)
	if err != nil {
		info = coremodel.ProcessInfo{PID: pid, Name: coremodel.UnknownProcessName}
	}

	c.mu.Lock()
	c.entries[pid] = cacheEntry{info: info, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
	return info
}
