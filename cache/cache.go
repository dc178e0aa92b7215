// Package cache holds report-page counters already fetched during a run so a
// course listed twice (a page re-read after a pagination fault) is fetched once.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/lmstrack/models"
)

// entry holds cached counters with their creation timestamp.
type entry struct {
	stats     models.DetailStats
	createdAt time.Time
}

// Cache is a small in-memory TTL cache of detail counters.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Cache holding at most maxEntries entries, each valid for ttl.
// A background goroutine evicts expired entries every ttl/2 until Close.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if ttl > 0 {
		go c.cleanupLoop(ttl / 2)
	}
	return c
}

// Key derives the cache key of one course report from the portal base URL and
// the row identifier.
func Key(baseURL, id string) string {
	h := sha256.New()
	h.Write([]byte(baseURL))
	h.Write([]byte("|"))
	h.Write([]byte(id))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached counters for key if present and younger than the TTL.
func (c *Cache) Get(key string) (models.DetailStats, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return models.DetailStats{}, false
	}
	if c.ttl > 0 && c.now().Sub(e.createdAt) > c.ttl {
		return models.DetailStats{}, false
	}
	return e.stats, true
}

// Set stores counters. If the cache is at capacity, a random entry is evicted
// to make room.
func (c *Cache) Set(key string, stats models.DetailStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.store) >= c.maxEntries {
		if _, exists := c.store[key]; !exists {
			// Map iteration order is random.
			for k := range c.store {
				delete(c.store, k)
				break
			}
		}
	}

	c.store[key] = &entry{stats: stats, createdAt: c.now()}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
