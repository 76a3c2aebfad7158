package redis

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/aegis-swing/pkg/config"
	"github.com/wonny/aegis-swing/pkg/logger"
)

const connectTimeout = 5 * time.Second

// Client is the shared Redis connection for caches and rate limits.
// 비활성(REDIS_ENABLED=false)이면 모든 헬퍼가 no-op
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb       *redis.Client
	namespace string
	logger    *logger.Logger
}

// New connects when Redis is enabled and returns a disabled client otherwise
func New(cfg *config.Config, log *logger.Logger) (*Client, error) {
	c := &Client{
		namespace: strings.Trim(cfg.Redis.Namespace, ":"),
		logger:    log.WithField("module", "redis"),
	}
	if c.namespace == "" {
		c.namespace = "aegis"
	}
	if !cfg.Redis.Enabled {
		return c, nil
	}

	addr := net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}

	c.rdb = rdb
	c.logger.WithFields(map[string]interface{}{
		"addr":      addr,
		"db":        cfg.Redis.DB,
		"namespace": c.namespace,
	}).Info("Redis connected")
	return c, nil
}

// Enabled reports whether a live connection is configured
func (c *Client) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Close closes the connection
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}

// key builds "<namespace>:<kind>:<name>"
func (c *Client) key(kind, name string) string {
	return c.namespace + ":" + kind + ":" + name
}
