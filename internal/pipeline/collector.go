package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/pkg/logger"
	"github.com/wonny/aegis-swing/pkg/retry"
)

// fetchRequest is one symbol's weekend data need
type fetchRequest struct {
	Symbol      string
	Window      contracts.HistoryWindow
	NeedProfile bool
}

// fetchResult holds what was collected for one symbol.
// ProfileErr 는 프로필을 쓰는 전략에서만 skip 사유가 됨
type fetchResult struct {
	Symbol     string
	Bars       []contracts.Bar
	Profile    *contracts.Profile
	Err        error
	ProfileErr error
}

// requestSet merges per-strategy needs into one request per symbol
type requestSet map[string]*fetchRequest

func (rs requestSet) add(symbol string, window contracts.HistoryWindow, needProfile bool) {
	r, ok := rs[symbol]
	if !ok {
		rs[symbol] = &fetchRequest{Symbol: symbol, Window: window, NeedProfile: needProfile}
		return
	}
	if window.TradingDays() > r.Window.TradingDays() {
		r.Window = window
	}
	r.NeedProfile = r.NeedProfile || needProfile
}

func (rs requestSet) sorted() []fetchRequest {
	out := make([]fetchRequest, 0, len(rs))
	for _, r := range rs {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// collector fetches history and profiles with a bounded worker pool.
// 각 호출은 retry.Policy 로 재시도, 실패한 종목은 결과에 Err 로 남김 (부분 수집 허용)
type collector struct {
	data    contracts.MarketData
	policy  retry.Policy
	workers int
	logger  *logger.Logger
}

func (c *collector) fetchAll(ctx context.Context, reqs []fetchRequest) map[string]fetchResult {
	results := make(map[string]fetchResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	workers := c.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(reqs) {
		workers = len(reqs)
	}

	reqCh := make(chan fetchRequest, len(reqs))
	resultCh := make(chan fetchResult, len(reqs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.worker(ctx, workerID, reqCh, resultCh)
		}(i)
	}

	for _, r := range reqs {
		reqCh <- r
	}
	close(reqCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	failed, noProfile := 0, 0
	for r := range resultCh {
		results[r.Symbol] = r
		if r.Err != nil {
			failed++
		}
		if r.ProfileErr != nil {
			noProfile++
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"requested":  len(reqs),
		"failed":     failed,
		"no_profile": noProfile,
		"workers":    workers,
	}).Info("Market data collection completed")

	return results
}

func (c *collector) worker(ctx context.Context, workerID int, reqCh <-chan fetchRequest, resultCh chan<- fetchResult) {
	for req := range reqCh {
		if err := ctx.Err(); err != nil {
			resultCh <- fetchResult{Symbol: req.Symbol, Err: err}
			continue
		}

		res := fetchResult{Symbol: req.Symbol}
		res.Bars, res.Err = retry.Do(ctx, c.policy, c.logger, "history:"+req.Symbol, func(ctx context.Context) ([]contracts.Bar, error) {
			return c.data.GetHistory(ctx, req.Symbol, req.Window)
		})
		if res.Err == nil && req.NeedProfile {
			res.Profile, res.ProfileErr = retry.Do(ctx, c.policy, c.logger, "profile:"+req.Symbol, func(ctx context.Context) (*contracts.Profile, error) {
				return c.data.GetProfile(ctx, req.Symbol)
			})
			if res.ProfileErr == nil && res.Profile == nil {
				res.ProfileErr = contracts.ErrNotFound
			}
			if res.ProfileErr != nil {
				c.logger.WithError(res.ProfileErr).WithFields(map[string]interface{}{
					"worker": workerID,
					"symbol": req.Symbol,
				}).Warn("Profile unavailable, history kept")
			}
		}

		if res.Err != nil {
			c.logger.WithError(res.Err).WithFields(map[string]interface{}{
				"worker": workerID,
				"symbol": req.Symbol,
			}).Warn("Failed to collect instrument data")
		} else {
			c.logger.WithFields(map[string]interface{}{
				"worker": workerID,
				"symbol": req.Symbol,
				"bars":   len(res.Bars),
			}).Debug("Collected instrument data")
		}
		resultCh <- res
	}
}
