package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON values under one key space ("<namespace>:<space>:<key>")
type Cache struct {
	client *Client
	space  string
}

// NewCache creates a cache for one key space (e.g. "marketdata", "store")
func NewCache(client *Client, space string) *Cache {
	return &Cache{client: client, space: space}
}

// Get decodes a cached value into dest. A miss is (false, nil).
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.rdb.Get(ctx, c.client.key(c.space, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores value with a TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.client.rdb.Set(ctx, c.client.key(c.space, key), data, ttl).Err()
}

// Delete drops a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.rdb.Del(ctx, c.client.key(c.space, key)).Err()
}

// Remember returns the cached value for key or loads, stores and returns it.
// 캐시 장애는 로그만 남기고 load 결과를 그대로 반환 (캐시는 보조 수단)
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if c != nil {
		found, err := c.Get(ctx, key, &cached)
		if err != nil {
			c.client.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		}
		if found {
			return cached, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if c != nil {
		if err := c.Set(ctx, key, v, ttl); err != nil {
			c.client.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
		}
	}
	return v, nil
}

// TTLs per cached kind
const (
	TTLProfile  = 10 * time.Minute   // 종목 프로필
	TTLHistory  = 1 * time.Hour      // 일봉 히스토리
	TTLUniverse = 8 * 24 * time.Hour // frozen 주간 유니버스
)

// UniverseKey caches a frozen weekly universe
func UniverseKey(week string) string {
	return "universe:" + week
}

// ProfileKey caches an instrument profile
func ProfileKey(symbol string) string {
	return "profile:" + symbol
}

// HistoryKey caches a bar history window
func HistoryKey(symbol, window string) string {
	return "history:" + symbol + ":" + window
}
