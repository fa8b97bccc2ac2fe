// Package cache provides the key-value contract the practice engine is
// built against, plus a Redis/Dragonfly implementation and an in-memory
// implementation for tests and single-node development.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ZEntry is a sorted-set member with its score.
type ZEntry struct {
	Member string
	Score  float64
}

// KV is the cache contract consumed by the engine and pool packages.
// Implementations must be safe for concurrent use; increments are atomic
// per key. A zero TTL on Set means no expiry.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	HGet(ctx context.Context, key, field string) (string, bool, error)
	HSet(ctx context.Context, key, field, value string) error
	// HSetAll writes every field in one operation so readers never see
	// a partially written hash.
	HSetAll(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	ZIncrBy(ctx context.Context, key, member string, delta float64) (float64, error)
	ZAdd(ctx context.Context, key, member string, score float64) error
	// ZRangeByScoreAsc returns up to limit members with score <= max,
	// ascending by score.
	ZRangeByScoreAsc(ctx context.Context, key string, max float64, limit int) ([]ZEntry, error)
	// ZTopN returns up to n members by descending score.
	ZTopN(ctx context.Context, key string, n int) ([]ZEntry, error)

	RPush(ctx context.Context, key string, values ...string) error
	LPop(ctx context.Context, key string) (string, bool, error)
	LLen(ctx context.Context, key string) (int64, error)

	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Cache wraps a Redis/Dragonfly client and implements KV.
type Cache struct {
	Client *redis.Client
}

var _ KV = (*Cache)(nil)

// ParseURL validates a Redis connection URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// New creates a new cache client.
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}

	return &Cache{Client: client}, nil
}

// Close shuts down the cache client.
func (c *Cache) Close() error {
	return c.Client.Close()
}

// HealthCheck verifies the cache connection is alive.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.Client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.Client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func (c *Cache) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := c.Client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("hget %s %s: %w", key, field, err)
	}
	return v, true, nil
}

func (c *Cache) HSet(ctx context.Context, key, field, value string) error {
	if err := c.Client.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("hset %s %s: %w", key, field, err)
	}
	return nil
}

func (c *Cache) HSetAll(ctx context.Context, key string, fields map[string]string) error {
	if err := c.Client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

func (c *Cache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := c.Client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return m, nil
}

func (c *Cache) ZIncrBy(ctx context.Context, key, member string, delta float64) (float64, error) {
	v, err := c.Client.ZIncrBy(ctx, key, delta, member).Result()
	if err != nil {
		return 0, fmt.Errorf("zincrby %s %s: %w", key, member, err)
	}
	return v, nil
}

func (c *Cache) ZAdd(ctx context.Context, key, member string, score float64) error {
	if err := c.Client.ZAdd(ctx, key, redis.Z{Member: member, Score: score}).Err(); err != nil {
		return fmt.Errorf("zadd %s %s: %w", key, member, err)
	}
	return nil
}

func (c *Cache) ZRangeByScoreAsc(ctx context.Context, key string, max float64, limit int) ([]ZEntry, error) {
	zs, err := c.Client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", max),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore %s: %w", key, err)
	}
	return toEntries(zs), nil
}

func (c *Cache) ZTopN(ctx context.Context, key string, n int) ([]ZEntry, error) {
	zs, err := c.Client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", key, err)
	}
	return toEntries(zs), nil
}

func (c *Cache) RPush(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	if err := c.Client.RPush(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return nil
}

func (c *Cache) LPop(ctx context.Context, key string) (string, bool, error) {
	v, err := c.Client.LPop(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lpop %s: %w", key, err)
	}
	return v, true, nil
}

func (c *Cache) LLen(ctx context.Context, key string) (int64, error) {
	n, err := c.Client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", key, err)
	}
	return n, nil
}

func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.Client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}

func toEntries(zs []redis.Z) []ZEntry {
	out := make([]ZEntry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, ZEntry{Member: member, Score: z.Score})
	}
	return out
}
