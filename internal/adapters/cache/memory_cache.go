package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/phishing-detector/internal/core"
	"go.uber.org/zap"
)

// MemoryCache is an in-memory implementation of the VerdictCache interface
type MemoryCache struct {
	entries map[string]core.CachedVerdict
	mu      sync.RWMutex
	logger  *zap.Logger
	task    *cleanupTask
	now     func() time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(logger *zap.Logger, cleanupFreq time.Duration) *MemoryCache {
	cache := &MemoryCache{
		entries: make(map[string]core.CachedVerdict),
		logger:  logger,
		now:     time.Now,
	}
	cache.task = startCleanupTask(cache, cleanupFreq, logger)
	return cache
}

// Get retrieves a live verdict for a prompt hash
func (c *MemoryCache) Get(_ context.Context, key string) (*core.CachedVerdict, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.ExpiresAt) {
		return nil, core.ErrCacheMiss
	}
	return &entry, nil
}

// Set stores a verdict, replacing any previous entry under the same key
func (c *MemoryCache) Set(_ context.Context, entry *core.CachedVerdict) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[entry.Key] = *entry
	return nil
}

// Delete removes a cache entry
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Cleanup removes expired entries
func (c *MemoryCache) Cleanup(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiredCount := 0
	for key, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, key)
			expiredCount++
		}
	}

	c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expiredCount))
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop stops the background cleanup task
func (c *MemoryCache) Stop() {
	c.task.stop()
}
