package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/pkg/logger"
)

// QuoteCache is a short-lived in-memory quote cache in front of MarketData.
// ⭐ SSOT: 실시간 시세 캐싱은 이 구조체에서만 (스캔, 무효화 엔진, 페이퍼 브로커 공용)
type QuoteCache struct {
	inner  contracts.MarketData
	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time

	mu     sync.RWMutex
	quotes map[string]cachedQuote
	hits   int
	misses int
}

type cachedQuote struct {
	quote     contracts.Quote
	fetchedAt time.Time
}

// NewQuoteCache wraps inner; quotes older than ttl are refetched
func NewQuoteCache(inner contracts.MarketData, ttl time.Duration, log *logger.Logger) *QuoteCache {
	return &QuoteCache{
		inner:  inner,
		ttl:    ttl,
		logger: log.WithField("module", "quote_cache"),
		now:    time.Now,
		quotes: make(map[string]cachedQuote),
	}
}

// GetQuote returns a cached quote while fresh, else fetches one
func (c *QuoteCache) GetQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	if q, ok := c.fresh(symbol); ok {
		return q, nil
	}

	q, err := c.inner.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	c.Update(q)
	out := *q
	return &out, nil
}

// GetHistory passes through
func (c *QuoteCache) GetHistory(ctx context.Context, symbol string, window contracts.HistoryWindow) ([]contracts.Bar, error) {
	return c.inner.GetHistory(ctx, symbol, window)
}

// GetProfile passes through
func (c *QuoteCache) GetProfile(ctx context.Context, symbol string) (*contracts.Profile, error) {
	return c.inner.GetProfile(ctx, symbol)
}

// Update stores a quote. Older data never replaces newer data.
func (c *QuoteCache) Update(q *contracts.Quote) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.quotes[q.Symbol]; ok && q.Timestamp.Before(existing.quote.Timestamp) {
		c.logger.WithFields(map[string]interface{}{
			"symbol":   q.Symbol,
			"new_time": q.Timestamp,
			"old_time": existing.quote.Timestamp,
		}).Debug("Rejected older quote")
		return false
	}
	c.quotes[q.Symbol] = cachedQuote{quote: *q, fetchedAt: c.now()}
	return true
}

func (c *QuoteCache) fresh(symbol string) (*contracts.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cq, ok := c.quotes[symbol]
	if !ok || c.now().Sub(cq.fetchedAt) > c.ttl {
		c.misses++
		return nil, false
	}
	c.hits++
	q := cq.quote
	return &q, true
}

// CleanStale removes expired quotes
func (c *QuoteCache) CleanStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0
	for symbol, cq := range c.quotes {
		if now.Sub(cq.fetchedAt) > c.ttl {
			delete(c.quotes, symbol)
			count++
		}
	}

	if count > 0 {
		c.logger.WithField("count", count).Debug("Cleaned stale quotes from cache")
	}
	return count
}

// Stats returns cache statistics
func (c *QuoteCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{TotalCount: len(c.quotes), Hits: c.hits, Misses: c.misses}
	now := c.now()
	for _, cq := range c.quotes {
		if now.Sub(cq.fetchedAt) > c.ttl {
			stats.StaleCount++
		}
	}
	stats.FreshCount = stats.TotalCount - stats.StaleCount
	return stats
}

// CacheStats represents cache statistics
type CacheStats struct {
	TotalCount int `json:"total_count"`
	FreshCount int `json:"fresh_count"`
	StaleCount int `json:"stale_count"`
	Hits       int `json:"hits"`
	Misses     int `json:"misses"`
}
