package cache

import (
	"sync"
	"time"

	"sjsage522/menuscout/logger"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process CacheService used when no memcache server
// is configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
	log     *logger.Logger
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		log:     logger.ForCache().WithField("backend", "memory"),
	}
}

// WithLogger replaces the cache logger
func (c *MemoryCache) WithLogger(l *logger.Logger) *MemoryCache {
	c.log = l
	return c
}

// Get retrieves a value that has not expired yet
func (c *MemoryCache) Get(key string) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		c.log.Debug().Str("key", key).Time("expired_at", entry.expiresAt).Msg("Evicted expired entry")
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

// Set stores a value; a non-positive expiration never expires
func (c *MemoryCache) Set(key string, value []byte, expiration time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if expiration > 0 {
		entry.expiresAt = c.now().Add(expiration)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// Delete removes a value
func (c *MemoryCache) Delete(key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}
