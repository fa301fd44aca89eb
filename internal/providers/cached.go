// ABOUTME: Scanner decorator that serves repeated submissions from the scan cache.
// ABOUTME: Only successful scans are cached; failures always reach the collaborator again.

package providers

import (
	"context"

	"github.com/jfeddern/OpsDeck/internal/cache"
	"github.com/jfeddern/OpsDeck/internal/types"
	"github.com/sirupsen/logrus"
)

// CachingScanner wraps a Scanner with a TTL cache keyed by code digest
type CachingScanner struct {
	inner  Scanner
	cache  *cache.ScanCache
	logger *logrus.Logger
}

// NewCachingScanner creates a caching decorator around inner
func NewCachingScanner(inner Scanner, cache *cache.ScanCache, logger *logrus.Logger) *CachingScanner {
	return &CachingScanner{
		inner:  inner,
		cache:  cache,
		logger: logger,
	}
}

// Name returns the wrapped collaborator's name
func (c *CachingScanner) Name() string {
	return c.inner.Name()
}

// Scan returns cached findings when available, otherwise scans and caches the result
func (c *CachingScanner) Scan(ctx context.Context, code string) ([]types.Finding, error) {
	if findings, ok := c.cache.Get(code); ok {
		c.logger.WithField("provider", c.inner.Name()).Debug("Serving scan from cache")
		return findings, nil
	}

	findings, err := c.inner.Scan(ctx, code)
	if err != nil {
		return nil, err
	}

	c.cache.Set(code, findings)
	return findings, nil
}
