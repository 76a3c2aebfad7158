package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limit is a sliding-window budget shared by every process using the same Redis
type Limit struct {
	Name   string
	Max    int
	Window time.Duration
}

// Budgets of the external APIs
var (
	// Market data: 초당 5회 (무료 플랜 기준 보수적)
	MarketDataRateLimit = Limit{Name: "marketdata", Max: 5, Window: time.Second}

	// Broker REST: 분당 200회
	BrokerRateLimit = Limit{Name: "broker", Max: 200, Window: time.Minute}

	// News pages: 초당 2회 (스크래핑)
	NewsRateLimit = Limit{Name: "news", Max: 2, Window: time.Second}
)

const minRateLimitWait = 10 * time.Millisecond

// RateLimiter blocks callers until their Limit has room
// ⭐ SSOT: 프로세스 간 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
}

// NewRateLimiter creates a limiter over the shared client
func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Wait blocks until one request fits in the window or ctx is done.
// Redis 비활성이면 즉시 통과
func (r *RateLimiter) Wait(ctx context.Context, l Limit) error {
	if !r.client.Enabled() {
		return nil
	}
	for {
		ok, retryAfter, err := r.take(ctx, l)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if retryAfter < minRateLimitWait {
			retryAfter = minRateLimitWait
		}

		timer := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// take records one request if the window has room; otherwise it reports
// how long until the oldest request leaves the window
func (r *RateLimiter) take(ctx context.Context, l Limit) (bool, time.Duration, error) {
	now := time.Now().UnixMilli()
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())

	res, err := slidingWindow.Run(ctx, r.client.rdb, []string{r.client.key("ratelimit", l.Name)},
		now, l.Window.Milliseconds(), l.Max, member,
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", l.Name, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit %s: unexpected reply %v", l.Name, res)
	}
	return res[0] == 1, time.Duration(res[1]) * time.Millisecond, nil
}

// KEYS[1] = window zset, ARGV = now_ms, window_ms, max, member
// returns {1, 0} when admitted, {0, wait_ms} otherwise
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) < max then
	redis.call('ZADD', key, now, ARGV[4])
	redis.call('PEXPIRE', key, window)
	return {1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local wait = window
if oldest[2] then
	wait = tonumber(oldest[2]) + window - now
end
return {0, wait}
`)
