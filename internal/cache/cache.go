// Package cache implements the short-TTL read cache in front of the catalog
// and mod listing queries. Entries are JSON snapshots keyed by query shape and
// expire on their own; writes never invalidate explicitly, so a cached page can
// be at most one TTL stale. A disabled cache degrades every lookup to a miss.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/beatforge/forge-registry/internal/config"
)

// Cache is a Redis-backed JSON read cache
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New connects the cache. Returns nil when caching is disabled; all methods
// are nil-receiver safe and behave as a permanent miss.
func New(cfg *config.CacheConfig, logger *slog.Logger) *Cache {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Cache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger.With("component", "cache"),
	}
}

// Key builds a cache key from the query shape parts
func Key(parts ...string) string {
	return "forge:" + strings.Join(parts, ":")
}

// GetJSON loads a cached value into dest, reporting whether it was present.
// Cache errors are logged and reported as misses; the cache never fails a read
// path.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	if c == nil {
		return false
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("cache entry undecodable, dropping", "key", key, "error", err)
		c.client.Del(ctx, key)
		return false
	}

	return true
}

// SetJSON stores a value under key for the configured TTL. Best effort.
func (c *Cache) SetJSON(ctx context.Context, key string, value any) {
	if c == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("failed to encode cache entry", "key", key, "error", err)
		return
	}

	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Ping verifies connectivity at startup
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
