package scoring

import (
	"context"

	"github.com/wonny/aegis-swing/internal/contracts"
)

const (
	breakoutMinBars     = 200
	breakoutLookback    = 252 // 52주
	breakoutMaxFromHigh = 5.0
)

// Breakout scores names trading near their 52-week high on rising volume
type Breakout struct {
	weights map[string]float64
}

// NewBreakout creates the breakout strategy
func NewBreakout(weights map[string]float64) *Breakout {
	return &Breakout{weights: copyWeights(weights)}
}

func (s *Breakout) ID() contracts.StrategyID        { return contracts.StrategyBreakout }
func (s *Breakout) Weights() map[string]float64     { return s.weights }
func (s *Breakout) Window() contracts.HistoryWindow { return contracts.Window1Y }

func (s *Breakout) Select(instruments []contracts.Instrument, _ *MarketContext) []contracts.Instrument {
	return selectTradeable(instruments)
}

// Analyze requires the last close within 5% of the 52-week high
func (s *Breakout) Analyze(ctx context.Context, in Input) (*Analysis, error) {
	if len(in.Bars) < breakoutMinBars {
		return nil, Skipf("insufficient-history")
	}
	closes := Closes(in.Bars)
	last := closes[len(closes)-1]
	high := HighestHigh(in.Bars, breakoutLookback)
	if high <= 0 {
		return nil, Skipf("no-high")
	}
	fromHigh := (high - last) / high * 100
	if fromHigh > breakoutMaxFromHigh {
		return nil, Skipf("not-near-high")
	}

	var proximity float64
	switch {
	case fromHigh <= 1:
		proximity = 1.0
	case fromHigh <= 2:
		proximity = 0.9
	case fromHigh <= 3:
		proximity = 0.7
	case fromHigh <= 5:
		proximity = 0.5
	default:
		proximity = 0.3
	}

	volRatio := VolumeRatio(in.Bars, 20)
	var volScore float64
	switch {
	case volRatio >= 3:
		volScore = 1.0
	case volRatio >= 2:
		volScore = 0.8
	case volRatio >= 1.5:
		volScore = 0.6
	default:
		volScore = 0.4
	}

	rsi := RSI(closes, 14)
	var momScore float64
	switch {
	case rsi >= 70:
		momScore = 0.9
	case rsi >= 60:
		momScore = 0.8
	case rsi >= 50:
		momScore = 0.6
	default:
		momScore = 0.3
	}

	// sector ETF 1개월 수익률 - 벤치마크 (섹터 불명이면 종목 자체)
	sectorRS := ReturnPct(closes, 21)
	if in.Market != nil {
		if ret, ok := in.Market.SectorReturn(SectorETF(in.Instrument.Sector)); ok {
			sectorRS = ret
		}
		if bench, ok := in.Market.BenchmarkReturn(21); ok {
			sectorRS -= bench
		}
	}
	var sectorScore float64
	switch {
	case sectorRS > 3:
		sectorScore = 1.0
	case sectorRS > 1:
		sectorScore = 0.8
	case sectorRS > -1:
		sectorScore = 0.6
	default:
		sectorScore = 0.3
	}

	return &Analysis{
		Normalized: map[string]float64{
			"proximity_to_high": proximity,
			"volume_surge":      volScore,
			"momentum":          momScore,
			"sector_strength":   sectorScore,
		},
		Raw: map[string]float64{
			"proximity_to_high": fromHigh,
			"volume_surge":      volRatio,
			"momentum":          rsi,
			"sector_strength":   sectorRS,
		},
		Secondary: volRatio,
	}, nil
}
