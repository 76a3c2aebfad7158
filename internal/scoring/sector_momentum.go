package scoring

import (
	"context"
	"sort"
	"sync"

	"github.com/wonny/aegis-swing/internal/contracts"
)

const sectorMinBars = 60

// SectorMomentum ranks the sector ETFs by 1-month return against the benchmark
type SectorMomentum struct {
	weights map[string]float64

	mu    sync.RWMutex
	ranks map[string]int // symbol → 1-based rank by 1-month return
	total int
}

// NewSectorMomentum creates the sector momentum strategy
func NewSectorMomentum(weights map[string]float64) *SectorMomentum {
	return &SectorMomentum{weights: copyWeights(weights)}
}

func (s *SectorMomentum) ID() contracts.StrategyID        { return contracts.StrategySectorMomentum }
func (s *SectorMomentum) Weights() map[string]float64     { return s.weights }
func (s *SectorMomentum) Window() contracts.HistoryWindow { return contracts.Window3M }

// Select returns the sector ETFs as instruments (they need not be in the broker list)
func (s *SectorMomentum) Select(instruments []contracts.Instrument, mkt *MarketContext) []contracts.Instrument {
	if mkt == nil {
		return nil
	}
	known := make(map[string]contracts.Instrument, len(instruments))
	for _, inst := range instruments {
		known[inst.Symbol] = inst
	}
	out := make([]contracts.Instrument, 0, len(mkt.SectorETFs))
	for _, etf := range mkt.SectorETFs {
		if inst, ok := known[etf]; ok {
			if inst.Tradeable {
				out = append(out, inst)
			}
			continue
		}
		out = append(out, contracts.Instrument{Symbol: etf, Name: etf, Tradeable: true, Sector: "ETF"})
	}
	return out
}

// Prepare ranks every input by 1-month return
func (s *SectorMomentum) Prepare(ctx context.Context, inputs []Input) error {
	type ret struct {
		symbol string
		r      float64
	}
	rets := make([]ret, 0, len(inputs))
	for _, in := range inputs {
		if len(in.Bars) < sectorMinBars {
			continue
		}
		rets = append(rets, ret{in.Instrument.Symbol, ReturnPct(Closes(in.Bars), 21)})
	}
	sort.SliceStable(rets, func(i, j int) bool {
		if rets[i].r != rets[j].r {
			return rets[i].r > rets[j].r
		}
		return rets[i].symbol < rets[j].symbol
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranks = make(map[string]int, len(rets))
	for i, r := range rets {
		s.ranks[r.symbol] = i + 1
	}
	s.total = len(rets)
	return nil
}

// Analyze scores one sector ETF
func (s *SectorMomentum) Analyze(ctx context.Context, in Input) (*Analysis, error) {
	if len(in.Bars) < sectorMinBars {
		return nil, Skipf("insufficient-history")
	}

	s.mu.RLock()
	rank, ranked := s.ranks[in.Instrument.Symbol]
	total := s.total
	s.mu.RUnlock()
	if !ranked {
		return nil, Skipf("not-ranked")
	}

	rankScore := 1.0
	if total > 1 {
		rankScore = 1 - float64(rank-1)/float64(total-1)
	}

	closes := Closes(in.Bars)
	last := closes[len(closes)-1]
	sma20, sma50 := SMA(closes, 20), SMA(closes, 50)
	var smaScore float64
	switch {
	case last > sma20 && last > sma50:
		smaScore = 1.0
	case last > sma50:
		smaScore = 0.7
	case last > sma20:
		smaScore = 0.5
	default:
		smaScore = 0.2
	}

	ret1m := ReturnPct(closes, 21)
	relative := ret1m
	if bench, ok := in.Market.BenchmarkReturn(21); ok {
		relative = ret1m - bench
	}
	var rsScore float64
	switch {
	case relative > 5:
		rsScore = 1.0
	case relative > 2:
		rsScore = 0.8
	case relative > 0:
		rsScore = 0.6
	case relative > -2:
		rsScore = 0.4
	default:
		rsScore = 0.2
	}

	volTrend := 0.0
	if avg20 := AvgVolume(in.Bars, 20); avg20 > 0 {
		volTrend = AvgVolume(in.Bars, 5)/avg20 - 1
	}
	var volScore float64
	switch {
	case volTrend > 0.2:
		volScore = 0.9
	case volTrend > 0:
		volScore = 0.7
	case volTrend > -0.2:
		volScore = 0.5
	default:
		volScore = 0.3
	}

	return &Analysis{
		Normalized: map[string]float64{
			"momentum_rank":     rankScore,
			"sma_trend":         smaScore,
			"relative_strength": rsScore,
			"volume_trend":      volScore,
		},
		Raw: map[string]float64{
			"momentum_rank":     float64(rank),
			"sma_trend":         last,
			"relative_strength": relative,
			"volume_trend":      volTrend,
		},
		Secondary: ret1m,
	}, nil
}
