package compliance

import (
	"sync"
	"time"
)

// ChecksCache caches the active check list so evaluation does not hit the
// store on every label
type ChecksCache interface {
	// Get retrieves cached checks, returns nil on a miss or expiry
	Get() []*Check

	// Set stores checks in cache
	Set(checks []*Check)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if cache has valid data
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Zero means entries live until invalidated by a mutation.
	TTL time.Duration
}

// DefaultCacheConfig invalidates only on mutations
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}

// InMemoryChecksCache is an in-memory ChecksCache, safe for concurrent use
type InMemoryChecksCache struct {
	checks   []*Check
	cachedAt time.Time
	config   CacheConfig
	now      func() time.Time
	isValid  bool
	mu       sync.RWMutex
}

// NewInMemoryChecksCache creates a new in-memory checks cache
func NewInMemoryChecksCache(config CacheConfig) *InMemoryChecksCache {
	return &InMemoryChecksCache{
		config: config,
		now:    time.Now,
	}
}

// Get returns a copy of the cached list, or nil if invalid or expired
func (c *InMemoryChecksCache) Get() []*Check {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh() {
		return nil
	}

	out := make([]*Check, len(c.checks))
	copy(out, c.checks)
	return out
}

// Set stores a copy of checks
func (c *InMemoryChecksCache) Set(checks []*Check) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks = make([]*Check, len(checks))
	copy(c.checks, checks)
	c.cachedAt = c.now()
	c.isValid = true
}

// Invalidate clears the cache
func (c *InMemoryChecksCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isValid = false
	c.checks = nil
}

// IsValid returns true if cache contains unexpired data
func (c *InMemoryChecksCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.fresh()
}

// fresh must be called with mu held
func (c *InMemoryChecksCache) fresh() bool {
	if !c.isValid {
		return false
	}
	if c.config.TTL > 0 {
		return c.now().Sub(c.cachedAt) <= c.config.TTL
	}
	return true
}
