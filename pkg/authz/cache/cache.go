// Package cache provides the resolution cache backends: an in-process
// expirable LRU and a Redis-backed store, both keyed by (tenant, subject)
// with singleflight miss collapsing.
package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/halcyonsec/aegis/pkg/authz"
	"github.com/halcyonsec/aegis/pkg/observability"
)

const (
	// DefaultTTL bounds how stale a cached resolution may be served.
	DefaultTTL = 300 * time.Second

	// DefaultMaxEntries caps the in-memory cache size.
	DefaultMaxEntries = 4096
)

// Memory is the in-process resolution cache: an expirable LRU fronted by
// a singleflight group so concurrent misses for the same subject collapse
// into a single resolution instead of a stampede.
type Memory struct {
	lru     *lru.LRU[string, *authz.ResolvedPermissions]
	flight  singleflight.Group
	ttl     time.Duration
	log     *observability.Logger
	metrics *observability.Metrics
}

// NewMemory creates an in-memory resolution cache.
func NewMemory(maxEntries int, ttl time.Duration, log *observability.Logger, metrics *observability.Metrics) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = observability.NewLogger(observability.ParseLevel("info"), nil)
	}
	return &Memory{
		lru:     lru.NewLRU[string, *authz.ResolvedPermissions](maxEntries, nil, ttl),
		ttl:     ttl,
		log:     log,
		metrics: metrics,
	}
}

func cacheKey(tenantID, subjectID string) string {
	return tenantID + "/" + subjectID
}

// GetOrResolve returns the cached resolution for (tenant, subject) or
// computes and stores it. Failed resolutions are never stored, so the
// next call retries.
func (c *Memory) GetOrResolve(ctx context.Context, tenantID, subjectID string, resolve authz.ResolveFunc) (*authz.ResolvedPermissions, error) {
	key := cacheKey(tenantID, subjectID)
	if resolved, ok := c.lru.Get(key); ok {
		c.metrics.RecordCacheHit("memory")
		return resolved, nil
	}
	c.metrics.RecordCacheMiss("memory")

	value, err, _ := c.flight.Do(key, func() (interface{}, error) {
		// A concurrent flight may have populated the entry already.
		if resolved, ok := c.lru.Get(key); ok {
			return resolved, nil
		}
		resolved, err := resolve(ctx)
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, resolved)
		return resolved, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*authz.ResolvedPermissions), nil
}

// Invalidate drops the entry for (tenant, subject).
func (c *Memory) Invalidate(tenantID, subjectID string) {
	c.lru.Remove(cacheKey(tenantID, subjectID))
}

// Purge drops every cached resolution.
func (c *Memory) Purge() {
	c.lru.Purge()
	c.log.Info("resolution cache purged")
}

// Len returns the number of live entries.
func (c *Memory) Len() int {
	return c.lru.Len()
}
