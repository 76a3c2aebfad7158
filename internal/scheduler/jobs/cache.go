package jobs

import (
	"context"

	"github.com/wonny/aegis-swing/internal/realtime"
	"github.com/wonny/aegis-swing/pkg/logger"
)

// CacheCleanupJob evicts expired quotes
type CacheCleanupJob struct {
	cache  *realtime.QuoteCache
	logger *logger.Logger
}

// NewCacheCleanupJob creates the quote cache cleanup job (every 5 minutes)
func NewCacheCleanupJob(cache *realtime.QuoteCache, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{cache: cache, logger: log}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Schedule returns the cron schedule
func (j *CacheCleanupJob) Schedule() string {
	return "0 */5 * * * *"
}

// MaxRetries disables scheduler retries
func (j *CacheCleanupJob) MaxRetries() int {
	return 0
}

// Run removes stale entries
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	removed := j.cache.CleanStale()
	stats := j.cache.Stats()
	j.logger.WithFields(map[string]interface{}{
		"removed": removed,
		"cached":  stats.TotalCount,
		"hits":    stats.Hits,
		"misses":  stats.Misses,
	}).Debug("Quote cache cleaned")
	return nil
}
