package storage

import (
	"context"
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/pkg/logger"
	"github.com/wonny/aegis-swing/pkg/redis"
)

// CachedStore adds a redis read-through cache for frozen universes.
// 평일 스캔마다 같은 frozen 주간을 읽으므로 캐시 대상은 frozen 뿐
type CachedStore struct {
	inner  contracts.Storage
	cache  *redis.Cache
	logger *logger.Logger
}

// NewCachedStore wraps inner with cache (a disabled cache is a pass-through)
func NewCachedStore(inner contracts.Storage, cache *redis.Cache, log *logger.Logger) *CachedStore {
	return &CachedStore{inner: inner, cache: cache, logger: log}
}

// SaveUniverse writes through and refreshes the cache entry
func (s *CachedStore) SaveUniverse(ctx context.Context, u *contracts.WeeklyUniverse) error {
	if err := s.inner.SaveUniverse(ctx, u); err != nil {
		return err
	}

	key := redis.UniverseKey(string(u.WeekKey))
	var err error
	if u.Frozen {
		err = s.cache.Set(ctx, key, u, redis.TTLUniverse)
	} else {
		err = s.cache.Delete(ctx, key)
	}
	if err != nil {
		s.logger.WithError(err).WithField("week", u.WeekKey).Warn("Universe cache update failed")
	}
	return nil
}

// LoadUniverse serves frozen weeks from cache
func (s *CachedStore) LoadUniverse(ctx context.Context, week contracts.WeekKey) (*contracts.WeeklyUniverse, error) {
	key := redis.UniverseKey(string(week))

	var cached contracts.WeeklyUniverse
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.WithError(err).WithField("week", week).Warn("Universe cache read failed")
	}
	if found && cached.Frozen {
		return &cached, nil
	}

	u, err := s.inner.LoadUniverse(ctx, week)
	if err != nil {
		return nil, err
	}
	if u.Frozen {
		if err := s.cache.Set(ctx, key, u, redis.TTLUniverse); err != nil {
			s.logger.WithError(err).WithField("week", week).Warn("Universe cache fill failed")
		}
	}
	return u, nil
}

// SavePosition is not cached
func (s *CachedStore) SavePosition(ctx context.Context, p *contracts.Position) error {
	return s.inner.SavePosition(ctx, p)
}

// LoadOpenPositions is not cached
func (s *CachedStore) LoadOpenPositions(ctx context.Context) ([]*contracts.Position, error) {
	return s.inner.LoadOpenPositions(ctx)
}

// LoadClosedSince is not cached
func (s *CachedStore) LoadClosedSince(ctx context.Context, since time.Time) ([]*contracts.Position, error) {
	return s.inner.LoadClosedSince(ctx, since)
}
