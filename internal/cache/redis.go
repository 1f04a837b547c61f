package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rishtahq/rishta-engine/internal/activity"
	"github.com/rishtahq/rishta-engine/internal/config"
)

// CountTTL bounds how long cached counters live. Daily-count keys also
// carry the day in the key, so a stale entry can never leak into the
// next calendar day.
const CountTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForDailyCount generates the cache key for one ledger cell.
func (c *RedisCache) KeyForDailyCount(userID uint64, kind activity.Kind, day string) string {
	return fmt.Sprintf("quota:count:%d:%s:%s", userID, kind, day)
}

// KeyForLikeCount generates the cache key for a user's liked-you count.
func (c *RedisCache) KeyForLikeCount(userID uint64) string {
	return fmt.Sprintf("likes:count:%d", userID)
}

// GetCount reads a cached counter. Returns ok=false on miss or parse
// failure so callers fall back to the database.
func (c *RedisCache) GetCount(ctx context.Context, key string) (int64, bool) {
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) || err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, CountTTL).Err()
	return n, true
}

// SetCount writes a counter with the standard TTL.
func (c *RedisCache) SetCount(ctx context.Context, key string, count int64) error {
	return c.Client.Set(ctx, key, count, CountTTL).Err()
}

// BumpCount nudges an existing cached counter without extending a
// missing key into existence with the wrong value: if the key is absent
// the next read repopulates from the database instead.
func (c *RedisCache) BumpCount(ctx context.Context, key string, delta int64) {
	exists, err := c.Client.Exists(ctx, key).Result()
	if err != nil || exists == 0 {
		return
	}
	_ = c.Client.IncrBy(ctx, key, delta).Err()
	_ = c.Client.Expire(ctx, key, CountTTL).Err()
}
