package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/strategyconfig"
	"github.com/wonny/aegis-swing/pkg/logger"
)

// =============================================================================
// Scoring Framework
// ⭐ SSOT: 전략 점수 = clamp(round(5 × Σ weight × normalized), 1, 5)
// =============================================================================

// MarketContext is shared, read-only data for one weekend run
type MarketContext struct {
	AsOf         time.Time
	Week         contracts.WeekKey
	Benchmark    []contracts.Bar
	SectorBars   map[string][]contracts.Bar         // ETF symbol → bars
	Earnings     map[string]contracts.EarningsEvent // next-week reports by symbol
	SectorETFs   []string
	IntradayList []string
}

// SectorReturn returns the 1-month return of a sector ETF and whether it is known
func (m *MarketContext) SectorReturn(etf string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	bars, ok := m.SectorBars[etf]
	if !ok || len(bars) < 22 {
		return 0, false
	}
	return ReturnPct(Closes(bars), 21), true
}

// BenchmarkReturn returns the benchmark return over n bars and whether it is known
func (m *MarketContext) BenchmarkReturn(n int) (float64, bool) {
	if m == nil || len(m.Benchmark) < n+1 {
		return 0, false
	}
	return ReturnPct(Closes(m.Benchmark), n), true
}

// Input is everything a strategy may read for one instrument
type Input struct {
	Instrument contracts.Instrument
	Bars       []contracts.Bar
	Profile    *contracts.Profile
	Market     *MarketContext
}

// Analysis is a strategy's per-instrument output before composition
type Analysis struct {
	Normalized map[string]float64 // component → 0..1
	Raw        map[string]float64 // component → raw metric
	Secondary  float64            // tie-break metric, higher is better
	Notes      string
}

// Strategy is one scoring variant
type Strategy interface {
	ID() contracts.StrategyID
	Weights() map[string]float64
	// Window is the history depth Analyze needs
	Window() contracts.HistoryWindow
	// Select picks the subset this strategy scores
	Select(instruments []contracts.Instrument, mkt *MarketContext) []contracts.Instrument
	Analyze(ctx context.Context, in Input) (*Analysis, error)
}

// Preparer is implemented by cross-sectional strategies (e.g. ranking)
type Preparer interface {
	Prepare(ctx context.Context, inputs []Input) error
}

// ProfileUser is implemented by strategies that read Input.Profile
type ProfileUser interface {
	NeedsProfile() bool
}

// SkipError marks an instrument as not scoreable by a strategy (never fatal)
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skip: " + e.Reason
}

// Skipf builds a SkipError
func Skipf(format string, args ...interface{}) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// Skip is a recorded non-scored instrument
type Skip struct {
	Strategy contracts.StrategyID `json:"strategy"`
	Symbol   string               `json:"symbol"`
	Reason   string               `json:"reason"`
}

// StrategyResult is the outcome of scoring one strategy
type StrategyResult struct {
	Strategy contracts.StrategyID
	Signals  []contracts.StrategySignal
	Skips    []Skip
	Err      error
	Duration time.Duration
}

// Candidates returns the number of candidate signals
func (r *StrategyResult) Candidates() int {
	n := 0
	for _, s := range r.Signals {
		if s.Candidate {
			n++
		}
	}
	return n
}

// Framework runs strategies and composes their signals
type Framework struct {
	cfg    *strategyconfig.Config
	logger *logger.Logger
	now    func() time.Time
}

// NewFramework creates a new scoring framework
func NewFramework(cfg *strategyconfig.Config, log *logger.Logger) *Framework {
	return &Framework{
		cfg:    cfg,
		logger: log,
		now:    time.Now,
	}
}

// Run scores every input with one strategy.
// 전략 내부 panic/에러는 StrategyResult.Err 로 격리 (다른 전략에 영향 없음)
func (f *Framework) Run(ctx context.Context, s Strategy, inputs []Input) (res *StrategyResult) {
	start := f.now()
	res = &StrategyResult{Strategy: s.ID()}

	defer func() {
		if r := recover(); r != nil {
			res.Signals = nil
			res.Err = fmt.Errorf("strategy %s panicked: %v", s.ID(), r)
		}
		res.Duration = f.now().Sub(start)
		if res.Err != nil {
			f.logger.WithFields(map[string]interface{}{
				"strategy": s.ID(),
				"error":    res.Err.Error(),
			}).Error("Strategy scoring failed")
		}
	}()

	if p, ok := s.(Preparer); ok {
		if err := p.Prepare(ctx, inputs); err != nil {
			res.Err = fmt.Errorf("prepare %s: %w", s.ID(), err)
			return res
		}
	}

	stratCfg := f.cfg.Strategies[s.ID()]
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		symbol := in.Instrument.Symbol
		a, err := s.Analyze(ctx, in)
		if err != nil {
			var skip *SkipError
			reason := "analysis-error: " + err.Error()
			if errors.As(err, &skip) {
				reason = skip.Reason
			}
			res.Skips = append(res.Skips, Skip{Strategy: s.ID(), Symbol: symbol, Reason: reason})
			f.logger.WithFields(map[string]interface{}{
				"strategy": s.ID(),
				"symbol":   symbol,
				"reason":   reason,
			}).Debug("Instrument skipped")
			continue
		}

		components, sum, score, err := Compose(s.Weights(), a.Normalized, a.Raw)
		if err != nil {
			res.Err = fmt.Errorf("compose %s/%s: %w", s.ID(), symbol, err)
			return res
		}

		res.Signals = append(res.Signals, contracts.StrategySignal{
			Strategy:    s.ID(),
			Symbol:      symbol,
			Components:  components,
			Score:       score,
			WeightedSum: sum,
			Secondary:   a.Secondary,
			Exit:        stratCfg.Exit,
			Notes:       a.Notes,
			ScoredAt:    f.now(),
		})
	}

	Rank(res.Signals)
	markCandidates(res.Signals, f.cfg.Scoring.CandidateThreshold, stratCfg.TopN)

	f.logger.WithFields(map[string]interface{}{
		"strategy":   s.ID(),
		"scored":     len(res.Signals),
		"skipped":    len(res.Skips),
		"candidates": res.Candidates(),
	}).Info("Strategy scored")

	return res
}

// Compose turns normalized components into weighted components and a 1..5 score.
// weights의 모든 항목이 normalized 에 있어야 함
func Compose(weights, normalized, raw map[string]float64) ([]contracts.ScoreComponent, float64, int, error) {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	components := make([]contracts.ScoreComponent, 0, len(names))
	sum := 0.0
	for _, name := range names {
		n, ok := normalized[name]
		if !ok {
			return nil, 0, 0, fmt.Errorf("missing component %q", name)
		}
		n = Clamp01(n)
		w := weights[name]
		c := contracts.ScoreComponent{
			Name:         name,
			Weight:       w,
			Raw:          raw[name],
			Normalized:   n,
			Contribution: w * n,
		}
		sum += c.Contribution
		components = append(components, c)
	}
	return components, sum, ScoreFromSum(sum), nil
}

// ScoreFromSum maps a weighted sum in [0,1] to an integer score in [1,5]
func ScoreFromSum(sum float64) int {
	score := int(math.Round(5 * sum))
	if score < 1 {
		return 1
	}
	if score > 5 {
		return 5
	}
	return score
}

// Rank orders signals: score desc, secondary desc, symbol asc
func Rank(signals []contracts.StrategySignal) {
	contracts.SortSignals(signals)
}

// markCandidates flags ranked signals with score ≥ threshold; topN > 0 caps the slots
func markCandidates(ranked []contracts.StrategySignal, threshold, topN int) {
	slots := 0
	for i := range ranked {
		ranked[i].Candidate = false
		if ranked[i].Score < threshold {
			continue
		}
		if topN > 0 && slots >= topN {
			continue
		}
		ranked[i].Candidate = true
		slots++
	}
}

// selectBySymbols keeps instruments whose symbol is listed
func selectBySymbols(instruments []contracts.Instrument, symbols []string) []contracts.Instrument {
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}
	var out []contracts.Instrument
	for _, inst := range instruments {
		if inst.Tradeable && want[inst.Symbol] {
			out = append(out, inst)
		}
	}
	return out
}

// selectTradeable keeps tradeable instruments
func selectTradeable(instruments []contracts.Instrument) []contracts.Instrument {
	var out []contracts.Instrument
	for _, inst := range instruments {
		if inst.Tradeable {
			out = append(out, inst)
		}
	}
	return out
}

// copyWeights returns a defensive copy
func copyWeights(w map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
