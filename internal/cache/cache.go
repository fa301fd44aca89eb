// ABOUTME: In-memory cache of scan results keyed by a digest of the submitted code.
// ABOUTME: Uses TTL-based expiration so resubmitting identical code does not re-query the model.

package cache

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/jfeddern/OpsDeck/internal/types"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

type CacheEntry struct {
	Findings  []types.Finding
	ExpiresAt time.Time
}

type ScanCache struct {
	cache  map[string]*CacheEntry
	mutex  sync.RWMutex
	ttl    time.Duration
	logger *logrus.Logger
	stop   chan struct{}
	once   sync.Once
}

// NewScanCache creates a cache and starts its cleanup goroutine
func NewScanCache(ttl time.Duration, logger *logrus.Logger) *ScanCache {
	cache := &ScanCache{
		cache:  make(map[string]*CacheEntry),
		ttl:    ttl,
		logger: logger,
		stop:   make(chan struct{}),
	}

	// Sweep at a third of the TTL, bounded to a sane range
	interval := ttl / 3
	if interval < time.Minute {
		interval = time.Minute
	}
	go cache.startCleanup(interval)

	return cache
}

// Key returns the digest used to index code
func Key(code string) string {
	sum := blake3.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func (c *ScanCache) Get(code string) ([]types.Finding, bool) {
	key := Key(code)

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.cache[key]
	if !exists {
		return nil, false
	}

	// Expired entries are left for the cleanup goroutine
	if time.Now().After(entry.ExpiresAt) {
		return nil, false
	}

	c.logger.WithField("key", key[:12]).Debug("Cache hit")
	return append([]types.Finding(nil), entry.Findings...), true
}

func (c *ScanCache) Set(code string, findings []types.Finding) {
	key := Key(code)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache[key] = &CacheEntry{
		Findings:  append([]types.Finding(nil), findings...),
		ExpiresAt: time.Now().Add(c.ttl),
	}

	c.logger.WithFields(logrus.Fields{
		"key":      key[:12],
		"findings": len(findings),
	}).Debug("Cached scan result")
}

// Close stops the cleanup goroutine
func (c *ScanCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *ScanCache) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *ScanCache) cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	expiredCount := 0

	for key, entry := range c.cache {
		if now.After(entry.ExpiresAt) {
			delete(c.cache, key)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		c.logger.WithFields(logrus.Fields{
			"expired_entries":   expiredCount,
			"remaining_entries": len(c.cache),
		}).Debug("Cache cleanup completed")
	}
}

func (c *ScanCache) Stats() (total int, expired int) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	total = len(c.cache)

	for _, entry := range c.cache {
		if now.After(entry.ExpiresAt) {
			expired++
		}
	}

	return total, expired
}
