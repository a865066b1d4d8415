package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
)

// Cache is a thread-safe in-memory TTL cache of JSON payloads. When maxEntries
// is positive, inserting into a full cache first drops expired entries and then
// the entry closest to expiry.
type Cache struct {
	entries    map[string]*CacheEntry
	maxEntries int
	hits       uint64
	misses     uint64
	evictions  uint64
	mutex      sync.RWMutex
}

// CacheEntry is a cached payload with its lifetime
type CacheEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Source    string    `json:"source"`
}

// CacheStats provides cache usage statistics
type CacheStats struct {
	TotalEntries int
	FreshEntries int
	StaleEntries int
	Hits         uint64
	Misses       uint64
	Evictions    uint64
}

// NewCache creates an in-memory cache holding at most maxEntries entries (0 for
// no limit)
func NewCache(maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[string]*CacheEntry),
		maxEntries: maxEntries,
	}
}

// Set stores data under key for ttl
func (c *Cache) Set(key string, data interface{}, ttl time.Duration, source string) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data for cache: %w", err)
	}

	now := time.Now()
	entry := &CacheEntry{
		Key:       key,
		Data:      jsonData,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
		Source:    source,
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.makeRoomLocked(now)
	}
	c.entries[key] = entry
	return nil
}

// makeRoomLocked frees at least one slot. Callers hold the write lock.
func (c *Cache) makeRoomLocked(now time.Time) {
	if c.removeExpiredLocked(now) > 0 {
		return
	}

	var victim *CacheEntry
	for _, entry := range c.entries {
		if victim == nil || entry.ExpiresAt.Before(victim.ExpiresAt) {
			victim = entry
		}
	}
	if victim != nil {
		delete(c.entries, victim.Key)
		c.evictions++
	}
}

func (c *Cache) removeExpiredLocked(now time.Time) int {
	var removed int
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Get decodes the entry for key into result. Expired entries count as misses.
func (c *Cache) Get(key string, result interface{}) (bool, error) {
	c.mutex.Lock()
	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.ExpiresAt) {
		c.misses++
		c.mutex.Unlock()
		return false, nil
	}
	c.hits++
	data := entry.Data
	c.mutex.Unlock()

	if err := json.Unmarshal(data, result); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	return true, nil
}

// Lookup returns the metadata for key, including expired entries that have not
// been cleaned up yet
func (c *Cache) Lookup(key string) (CacheEntry, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return CacheEntry{}, false
	}
	return *entry, true
}

// Delete removes an entry from cache
func (c *Cache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, key)
}

// Len returns the number of entries, expired ones included
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.entries)
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	stats := CacheStats{
		TotalEntries: len(c.entries),
		Hits:         c.hits,
		Misses:       c.misses,
		Evictions:    c.evictions,
	}
	for _, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			stats.StaleEntries++
		} else {
			stats.FreshEntries++
		}
	}
	return stats
}

// CleanupStale removes all expired entries and returns how many were removed
func (c *Cache) CleanupStale() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.removeExpiredLocked(time.Now())
}

// StartPeriodicCleanup removes expired entries every interval until ctx is
// cancelled
func (c *Cache) StartPeriodicCleanup(ctx context.Context, interval time.Duration) {
	ctx = logging.EnsureLogger(ctx)
	go func() {
		defer func() {
			// Recover from any panics in the cache cleanup goroutine
			if r := recover(); r != nil {
				err, _ := errors.ParseStack(debug.Stack())
				skipFrames := 3
				numFrames := 5
				logging.Errorw(ctx, "Cache cleanup: recovered from panic",
					"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.CleanupStale(); removed > 0 {
					logging.Debugw(ctx, "Cache cleanup: removed stale entries", "removed", removed, "remaining", c.Len())
				}
			}
		}
	}()
}
