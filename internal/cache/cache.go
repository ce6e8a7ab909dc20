package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/weather-resolver/internal/models"
)

// Cache is the secondary tier: a shared key/value store with per-entry TTL.
// Get returns (entry, true, nil) on hit and (zero, false, nil) on miss.
type Cache interface {
	Get(ctx context.Context, key string) (models.CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry models.CacheEntry, ttl time.Duration) error
}

// Pinger is implemented by backends that can report reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// InMemoryCache implements Cache using a map with TTL-based expiration.
// Expired entries are removed on access. Safe for concurrent use.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     models.CacheEntry
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves the entry for key if present and not expired.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok {
		return models.CacheEntry{}, false, nil
	}
	if !time.Now().Before(entry.expiresAt) {
		delete(c.data, key)
		return models.CacheEntry{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores entry under key; the last writer wins.
func (c *InMemoryCache) Set(ctx context.Context, key string, entry models.CacheEntry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{
		value:     entry,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Ping always succeeds.
func (c *InMemoryCache) Ping(ctx context.Context) error {
	return nil
}
