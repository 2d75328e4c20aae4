package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rstrack/rstrack/pkg/config"
	"github.com/rstrack/rstrack/pkg/logger"
)

// Cache is an optional Redis-backed cache for published result
// snapshots. When disabled every operation is a no-op, so callers never
// branch on availability.
type Cache struct {
	client  *redis.Client
	enabled bool
	prefix  string
	logger  *logger.Logger
}

// New creates a cache from config. A disabled config yields a no-op
// cache without connecting.
func New(cfg *config.Config, log *logger.Logger) *Cache {
	c := &Cache{
		enabled: cfg.Redis.Enabled,
		prefix:  "rstrack",
		logger:  log,
	}

	if !c.enabled {
		return c
	}

	c.client = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis unreachable, snapshot cache disabled")
		c.enabled = false
		c.client = nil
	}

	return c
}

// Enabled reports whether the cache is active.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Get retrieves a cached value into dest. A miss returns (false, nil).
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.enabled {
		return false, nil
	}

	data, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err != nil {
		// Key not found is not an error.
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value with TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Set(ctx, c.fullKey(key), data, ttl).Err()
}

// Delete removes a cached value.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.enabled {
		return nil
	}
	return c.client.Del(ctx, c.fullKey(key)).Err()
}

// Close releases the underlying connection.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) fullKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// SnapshotKey is the cache key for the published result snapshot as of a
// run date.
func SnapshotKey(date time.Time) string {
	return fmt.Sprintf("snapshot:%s", date.Format("2006-01-02"))
}

// SnapshotLatest is the cache key that always holds the most recently
// published snapshot, whatever its date.
const SnapshotLatest = "snapshot:latest"
