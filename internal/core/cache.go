package core

import (
	"sync"
	"time"

	"healthtrack/pkg/domain"
)

// DefaultCacheTimeout is how long a loaded dataset is served without re-reading storage.
const DefaultCacheTimeout = 30 * time.Second

// Cache holds the last loaded or saved dataset and the time it was stored.
// Freshness is checked lazily; nothing evicts entries in the background.
type Cache struct {
	mu       sync.Mutex
	timeout  time.Duration
	data     *domain.Dataset
	storedAt time.Time
}

// NewCache returns an empty cache. A non-positive timeout uses DefaultCacheTimeout.
func NewCache(timeout time.Duration) *Cache {
	if timeout <= 0 {
		timeout = DefaultCacheTimeout
	}
	return &Cache{timeout: timeout}
}

// Fresh reports whether a dataset is held and younger than the timeout at now.
func (c *Cache) Fresh(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freshLocked(now)
}

func (c *Cache) freshLocked(now time.Time) bool {
	return c.data != nil && now.Sub(c.storedAt) < c.timeout
}

// Get returns a copy of the held dataset when it is fresh.
func (c *Cache) Get(now time.Time) (domain.Dataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.freshLocked(now) {
		return domain.Dataset{}, false
	}
	return c.data.Clone(), true
}

// Put replaces the held dataset and refreshes the timestamp.
func (c *Cache) Put(ds domain.Dataset, now time.Time) {
	cp := ds.Clone()
	c.mu.Lock()
	c.data = &cp
	c.storedAt = now
	c.mu.Unlock()
}

// Invalidate drops the held dataset and timestamp.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.data = nil
	c.storedAt = time.Time{}
	c.mu.Unlock()
}
