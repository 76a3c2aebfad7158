package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/pkg/config"
	"github.com/wonny/aegis-swing/pkg/httputil"
	"github.com/wonny/aegis-swing/pkg/logger"
	"github.com/wonny/aegis-swing/pkg/redis"
)

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	rc, err := redis.New(&config.Config{Redis: config.RedisConfig{Enabled: false}}, logger.NewNop())
	require.NoError(t, err)

	cfg := config.MarketDataConfig{BaseURL: server.URL, APIKey: "md-key", RPS: 1000, Burst: 10}
	return NewClient(cfg, httputil.New(&config.Config{}, logger.NewNop()), redis.NewCache(rc, "test"), logger.NewNop())
}

func TestGetQuote(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quote/AAPL", r.URL.Path)
		assert.Equal(t, "md-key", r.Header.Get("X-API-Key"))
		_ = json.NewEncoder(w).Encode(quoteResponse{
			Symbol: "AAPL", Price: 190, Open: 188, PreviousClose: 185,
			Volume: 1e6, AverageVolume: 5e7, VWAP: 189.5, MarketCap: 3e12, Timestamp: 1760700000,
		})
	})

	q, err := c.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 190.0, q.Price)
	assert.Equal(t, 185.0, q.PrevClose)
	assert.Equal(t, 5e7, q.AverageVolume())
	assert.Equal(t, time.Unix(1760700000, 0).UTC(), q.Timestamp)
}

func TestGetHistorySortsAndDropsEmptyBars(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1y", r.URL.Query().Get("range"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		_ = json.NewEncoder(w).Encode(chartResponse{Symbol: "SPY", Bars: []barResponse{
			{T: 300, O: 3, H: 3, L: 3, C: 3, V: 30},
			{T: 100, O: 1, H: 1, L: 1, C: 1, V: 10},
			{T: 200, C: 0},
		}})
	})

	bars, err := c.GetHistory(context.Background(), "SPY", contracts.Window1Y)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.0, bars[0].Close)
	assert.Equal(t, 3.0, bars[1].Close)
}

func TestGetProfileParsesEarningsDates(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(profileResponse{
			Symbol: "NVDA", Sector: "Technology", MarketCap: 4e12, AnalystCount: 55,
			Recommendation: "strong_buy", EarningsDates: []string{"2026-02-25", "2026-08-27", "bad", "2026-05-28"},
		})
	})

	p, err := c.GetProfile(context.Background(), "NVDA")
	require.NoError(t, err)
	assert.Equal(t, 55, p.AnalystCount)
	require.Len(t, p.EarningsDates, 3)
	assert.Equal(t, "2026-08-27", p.EarningsDates[0].Format(dateLayout))
	assert.Equal(t, "2026-02-25", p.EarningsDates[2].Format(dateLayout))
}

func TestEarningsBetween(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-10-19", r.URL.Query().Get("from"))
		assert.Equal(t, "2026-10-23", r.URL.Query().Get("to"))
		_ = json.NewEncoder(w).Encode([]earningsResponse{
			{Symbol: "TSLA", Date: "2026-10-21", Timing: "amc"},
			{Symbol: "KO", Date: "2026-10-20"},
			{Symbol: "", Date: "2026-10-20"},
		})
	})

	from := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	events, err := c.EarningsBetween(context.Background(), from, from.AddDate(0, 0, 4))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "unknown", events[1].Timing)
}

func TestListInstrumentsBuckets(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]instrumentResponse{
			{Symbol: "AAPL", Tradeable: true, MarketCap: 3e12},
			{Symbol: "SMOL", Tradeable: true, MarketCap: 1e9},
		})
	})

	list, err := c.ListInstruments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, contracts.MarketCapMega, list[0].MarketCapBucket)
	assert.Equal(t, contracts.MarketCapSmall, list[1].MarketCapBucket)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
		target    error
	}{
		{http.StatusTooManyRequests, true, contracts.ErrRateLimited},
		{http.StatusServiceUnavailable, true, contracts.ErrDataUnavailable},
		{http.StatusNotFound, false, contracts.ErrNotFound},
		{http.StatusUnauthorized, false, contracts.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := c.GetQuote(context.Background(), "AAPL")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target))
			assert.Equal(t, tt.retryable, contracts.IsRetryable(err))
		})
	}
}
