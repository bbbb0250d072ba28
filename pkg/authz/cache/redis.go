package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"

	"github.com/halcyonsec/aegis/pkg/authz"
	"github.com/halcyonsec/aegis/pkg/observability"
)

const redisKeyPrefix = "authz:resolved:"

// Redis is a Redis-backed resolution cache for multi-replica deployments,
// where invalidations must be visible to every engine instance. Entries
// are JSON-encoded and expire server-side via TTL. Redis unavailability
// degrades to resolving directly: the cache must never become a failure
// point for authorization itself.
type Redis struct {
	client  *redis.Client
	flight  singleflight.Group
	ttl     time.Duration
	log     *observability.Logger
	metrics *observability.Metrics
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(addr, password string, db int, ttl time.Duration, log *observability.Logger, metrics *observability.Metrics) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisWithClient(client, ttl, log, metrics), nil
}

// NewRedisWithClient wraps an existing client. Used by tests with miniredis.
func NewRedisWithClient(client *redis.Client, ttl time.Duration, log *observability.Logger, metrics *observability.Metrics) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = observability.NewLogger(observability.ParseLevel("info"), nil)
	}
	return &Redis{client: client, ttl: ttl, log: log, metrics: metrics}
}

func redisKey(tenantID, subjectID string) string {
	return redisKeyPrefix + tenantID + ":" + subjectID
}

// GetOrResolve returns the cached resolution or computes and stores it.
func (c *Redis) GetOrResolve(ctx context.Context, tenantID, subjectID string, resolve authz.ResolveFunc) (*authz.ResolvedPermissions, error) {
	key := redisKey(tenantID, subjectID)

	if resolved, ok := c.get(ctx, key); ok {
		c.metrics.RecordCacheHit("redis")
		return resolved, nil
	}
	c.metrics.RecordCacheMiss("redis")

	value, err, _ := c.flight.Do(key, func() (interface{}, error) {
		if resolved, ok := c.get(ctx, key); ok {
			return resolved, nil
		}
		resolved, err := resolve(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, resolved)
		return resolved, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*authz.ResolvedPermissions), nil
}

func (c *Redis) get(ctx context.Context, key string) (*authz.ResolvedPermissions, bool) {
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.WithError(err).Warn("redis get failed, treating as cache miss")
		return nil, false
	}
	var resolved authz.ResolvedPermissions
	if err := json.Unmarshal([]byte(data), &resolved); err != nil {
		c.log.WithError(err).Warn("corrupt cache entry, treating as cache miss")
		return nil, false
	}
	return &resolved, true
}

// set stores best-effort: a failed write only costs a future recompute.
func (c *Redis) set(ctx context.Context, key string, resolved *authz.ResolvedPermissions) {
	data, err := json.Marshal(resolved)
	if err != nil {
		c.log.WithError(err).Warn("failed to encode cache entry")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("redis set failed")
	}
}

// Invalidate drops the entry for (tenant, subject).
func (c *Redis) Invalidate(tenantID, subjectID string) {
	if err := c.client.Del(context.Background(), redisKey(tenantID, subjectID)).Err(); err != nil {
		c.log.WithError(err).Warn("redis invalidation failed")
	}
}

// Purge drops every cached resolution under the engine's key prefix.
func (c *Redis) Purge() {
	ctx := context.Background()
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.log.WithError(err).Warn("redis purge delete failed")
		}
	}
	if err := iter.Err(); err != nil {
		c.log.WithError(err).Warn("redis purge scan failed")
		return
	}
	c.log.Info("resolution cache purged")
}

// Client exposes the underlying connection for health probes.
func (c *Redis) Client() *redis.Client {
	return c.client
}

// Close closes the underlying Redis connection.
func (c *Redis) Close() error {
	return c.client.Close()
}
