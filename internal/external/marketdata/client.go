package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/pkg/config"
	"github.com/wonny/aegis-swing/pkg/httputil"
	"github.com/wonny/aegis-swing/pkg/logger"
	"github.com/wonny/aegis-swing/pkg/redis"
)

// Client reads quotes, bars, profiles, the earnings calendar and the
// tradeable instrument list from the market data REST API.
// ⭐ SSOT: 시장 데이터 API 호출은 이 클라이언트에서만
type Client struct {
	http    *httputil.Client
	cache   *redis.Cache // nil = 캐시 없음
	baseURL string
	logger  *logger.Logger
}

// NewClient creates a market data client with an in-process rate limit.
// 재시도는 호출부(pipeline/execution)의 bounded retry 가 담당
func NewClient(cfg config.MarketDataConfig, httpClient *httputil.Client, cache *redis.Cache, log *logger.Logger) *Client {
	httpClient.DisableRetry().WithLimiter(cfg.RPS, cfg.Burst)
	if cfg.APIKey != "" {
		httpClient.WithHeader("X-API-Key", cfg.APIKey)
	}
	return &Client{
		http:    httpClient,
		cache:   cache,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  log.WithField("module", "marketdata"),
	}
}

// GetQuote returns a live quote (never cached)
func (c *Client) GetQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	var resp quoteResponse
	if err := c.get(ctx, "/v1/quote/"+url.PathEscape(symbol), nil, &resp); err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}
	if resp.Symbol == "" {
		resp.Symbol = symbol
	}
	return resp.toQuote(), nil
}

// GetHistory returns daily bars, oldest first
func (c *Client) GetHistory(ctx context.Context, symbol string, window contracts.HistoryWindow) ([]contracts.Bar, error) {
	return redis.Remember(ctx, c.cache, redis.HistoryKey(symbol, string(window)), redis.TTLHistory, func(ctx context.Context) ([]contracts.Bar, error) {
		return c.fetchHistory(ctx, symbol, window)
	})
}

func (c *Client) fetchHistory(ctx context.Context, symbol string, window contracts.HistoryWindow) ([]contracts.Bar, error) {
	var resp chartResponse
	q := url.Values{"range": {string(window)}, "interval": {"1d"}}
	if err := c.get(ctx, "/v1/chart/"+url.PathEscape(symbol), q, &resp); err != nil {
		return nil, fmt.Errorf("history %s %s: %w", symbol, window, err)
	}

	bars := make([]contracts.Bar, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		if b.C <= 0 {
			continue
		}
		bars = append(bars, contracts.Bar{
			Time:   time.Unix(b.T, 0).UTC(),
			Open:   b.O,
			High:   b.H,
			Low:    b.L,
			Close:  b.C,
			Volume: b.V,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if len(bars) == 0 {
		return nil, contracts.DataUnavailable("history "+symbol, errors.New("no bars"))
	}
	return bars, nil
}

// GetProfile returns sector, market cap, analyst coverage and past earnings dates
func (c *Client) GetProfile(ctx context.Context, symbol string) (*contracts.Profile, error) {
	return redis.Remember(ctx, c.cache, redis.ProfileKey(symbol), redis.TTLProfile, func(ctx context.Context) (*contracts.Profile, error) {
		return c.fetchProfile(ctx, symbol)
	})
}

func (c *Client) fetchProfile(ctx context.Context, symbol string) (*contracts.Profile, error) {
	var resp profileResponse
	if err := c.get(ctx, "/v1/profile/"+url.PathEscape(symbol), nil, &resp); err != nil {
		return nil, fmt.Errorf("profile %s: %w", symbol, err)
	}

	p := &contracts.Profile{
		Symbol:         symbol,
		Name:           resp.Name,
		Sector:         resp.Sector,
		MarketCap:      resp.MarketCap,
		AnalystCount:   resp.AnalystCount,
		Recommendation: resp.Recommendation,
	}
	for _, d := range resp.EarningsDates {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			c.logger.WithField("symbol", symbol).WithField("date", d).Debug("Skipping unparsable earnings date")
			continue
		}
		p.EarningsDates = append(p.EarningsDates, t)
	}
	// newest first
	sort.Slice(p.EarningsDates, func(i, j int) bool { return p.EarningsDates[i].After(p.EarningsDates[j]) })
	return p, nil
}

// EarningsBetween lists scheduled reports in [from, to]
func (c *Client) EarningsBetween(ctx context.Context, from, to time.Time) ([]contracts.EarningsEvent, error) {
	var resp []earningsResponse
	q := url.Values{"from": {from.Format(dateLayout)}, "to": {to.Format(dateLayout)}}
	if err := c.get(ctx, "/v1/calendar/earnings", q, &resp); err != nil {
		return nil, fmt.Errorf("earnings calendar: %w", err)
	}

	out := make([]contracts.EarningsEvent, 0, len(resp))
	for _, e := range resp {
		d, err := time.Parse(dateLayout, e.Date)
		if err != nil || e.Symbol == "" {
			continue
		}
		timing := e.Timing
		if timing == "" {
			timing = "unknown"
		}
		out = append(out, contracts.EarningsEvent{Symbol: e.Symbol, Date: d, Timing: timing})
	}
	return out, nil
}

// ListInstruments returns the broker-tradeable US equity list
func (c *Client) ListInstruments(ctx context.Context) ([]contracts.Instrument, error) {
	var resp []instrumentResponse
	if err := c.get(ctx, "/v1/instruments", nil, &resp); err != nil {
		return nil, fmt.Errorf("instruments: %w", err)
	}

	out := make([]contracts.Instrument, 0, len(resp))
	for _, i := range resp {
		if i.Symbol == "" {
			continue
		}
		out = append(out, contracts.Instrument{
			Symbol:          i.Symbol,
			Name:            i.Name,
			Tradeable:       i.Tradeable,
			Sector:          i.Sector,
			MarketCap:       i.MarketCap,
			MarketCapBucket: contracts.BucketForMarketCap(i.MarketCap),
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dest interface{}) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return classify(c.http.GetJSON(ctx, u, dest))
}

// classify maps transport/HTTP failures to the error taxonomy.
// 429 → ErrRateLimited (retryable), 5xx/transport → DataUnavailable
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *httputil.StatusError
	if !errors.As(err, &se) {
		return contracts.DataUnavailable("marketdata", err)
	}
	switch {
	case se.StatusCode == http.StatusTooManyRequests:
		return contracts.ErrRateLimited
	case se.Retryable():
		return contracts.DataUnavailable("marketdata", err)
	case se.StatusCode == http.StatusNotFound:
		return contracts.ErrNotFound
	case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: marketdata auth: status %d", contracts.ErrConfiguration, se.StatusCode)
	default:
		return err
	}
}
