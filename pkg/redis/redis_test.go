package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-swing/pkg/config"
	"github.com/wonny/aegis-swing/pkg/logger"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false, Namespace: "swing:"}}, logger.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
	assert.Equal(t, "swing:ratelimit:broker", client.key("ratelimit", "broker"))

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := &config.Config{Redis: config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: "1"}}
	_, err := New(cfg, logger.NewNop())
	assert.Error(t, err)
}

func TestRateLimiter_DisabledPassesThrough(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// 비활성 클라이언트는 대기 없이 통과 (취소된 ctx 도)
	for i := 0; i < MarketDataRateLimit.Max*3; i++ {
		assert.NoError(t, limiter.Wait(ctx, MarketDataRateLimit))
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")
	ctx := context.Background()

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	assert.NoError(t, cache.Delete(ctx, "key"))
}

func TestRemember(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")
	ctx := context.Background()

	calls := 0
	load := func(ctx context.Context) (map[string]int, error) {
		calls++
		return map[string]int{"a": 1}, nil
	}
	out, err := Remember(ctx, cache, "k", TTLProfile, load)
	require.NoError(t, err)
	assert.Equal(t, 1, out["a"])

	// 비활성 캐시는 매번 load
	_, err = Remember(ctx, cache, "k", TTLProfile, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	boom := errors.New("upstream down")
	_, err = Remember(ctx, nil, "k", TTLProfile, func(ctx context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "universe:2026-W43", UniverseKey("2026-W43"))
	assert.Equal(t, "profile:AAPL", ProfileKey("AAPL"))
	assert.Equal(t, "history:SPY:1y", HistoryKey("SPY", "1y"))
}
