// Package cache keeps recent lookup records in memory so repeated API
// lookups can skip the browser.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/use-agent/serpwalk/models"
)

type entry struct {
	record    models.Record
	createdAt time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// New creates a Cache holding at most maxEntries records. Entries older than
// ttl are evicted every 5 minutes.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
	go c.cleanupLoop()
	return c
}

// Key normalizes a query so "Alice " and "alice" share an entry.
func Key(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Cacheable reports whether a record is stable enough to reuse. Blocks and
// errors are transient and always retried.
func Cacheable(rec models.Record) bool {
	switch rec.Status {
	case models.StatusSuccess, models.StatusNotFound, models.StatusExtractionPartial:
		return true
	}
	return false
}

// Get returns the record for query if it is younger than maxAge. A
// non-positive maxAge disables the lookup.
func (c *Cache) Get(query string, maxAge time.Duration) (models.Record, bool) {
	if c == nil || maxAge <= 0 {
		return models.Record{}, false
	}

	c.mu.RLock()
	e, ok := c.store[Key(query)]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > maxAge {
		return models.Record{}, false
	}
	return e.record, true
}

// Set stores rec when Cacheable. At capacity one arbitrary entry is evicted.
func (c *Cache) Set(rec models.Record) {
	if c == nil || c.maxEntries <= 0 || !Cacheable(rec) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(rec.Query)
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = &entry{record: rec, createdAt: c.now()}
}

// Len reports the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.evictOlderThan(c.now().Add(-c.ttl))
	}
}

func (c *Cache) evictOlderThan(cutoff time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
