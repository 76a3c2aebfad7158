package scoring

import (
	"context"

	"github.com/wonny/aegis-swing/internal/contracts"
)

// ORB opening range: open ± 0.5%
const orbRangePct = 0.005

// VWAP scores the historical intraday profile for VWAP mean-reversion entries
type VWAP struct {
	weights map[string]float64
}

// NewVWAP creates the VWAP intraday strategy
func NewVWAP(weights map[string]float64) *VWAP {
	return &VWAP{weights: copyWeights(weights)}
}

func (s *VWAP) ID() contracts.StrategyID        { return contracts.StrategyVWAP }
func (s *VWAP) Weights() map[string]float64     { return s.weights }
func (s *VWAP) Window() contracts.HistoryWindow { return contracts.Window3M }

func (s *VWAP) Select(instruments []contracts.Instrument, mkt *MarketContext) []contracts.Instrument {
	if mkt == nil {
		return nil
	}
	return selectBySymbols(instruments, mkt.IntradayList)
}

// Analyze uses the half daily range as the typical excursion from VWAP
func (s *VWAP) Analyze(ctx context.Context, in Input) (*Analysis, error) {
	if len(in.Bars) < intradayMinBars {
		return nil, Skipf("insufficient-history")
	}
	deviation := avgRangePct(in.Bars, 20) / 2

	var devScore float64
	switch {
	case deviation >= 1.5 && deviation <= 2.5:
		devScore = 1.0
	case deviation <= 3.5:
		devScore = 0.8
	default:
		devScore = 0.5
	}

	profile := 0.0
	if avg60 := AvgVolume(in.Bars, 60); avg60 > 0 {
		profile = AvgVolume(in.Bars, 20) / avg60
	}
	var profileScore float64
	switch {
	case profile >= 1.2:
		profileScore = 1.0
	case profile >= 1.0:
		profileScore = 0.8
	case profile >= 0.8:
		profileScore = 0.6
	default:
		profileScore = 0.4
	}

	trend, trendRaw := trendAlignment(Closes(in.Bars))

	return &Analysis{
		Normalized: map[string]float64{
			"deviation":      devScore,
			"volume_profile": profileScore,
			"trend":          trend,
			"market_regime":  marketRegime(in.Market),
		},
		Raw: map[string]float64{
			"deviation":      deviation,
			"volume_profile": profile,
			"trend":          trendRaw,
			"market_regime":  benchmarkAboveSMA50(in.Market),
		},
		Secondary: profile,
	}, nil
}

// ORB scores opening-range breakout follow-through
type ORB struct {
	weights map[string]float64
}

// NewORB creates the opening range breakout strategy
func NewORB(weights map[string]float64) *ORB {
	return &ORB{weights: copyWeights(weights)}
}

func (s *ORB) ID() contracts.StrategyID        { return contracts.StrategyORB }
func (s *ORB) Weights() map[string]float64     { return s.weights }
func (s *ORB) Window() contracts.HistoryWindow { return contracts.Window3M }

func (s *ORB) Select(instruments []contracts.Instrument, mkt *MarketContext) []contracts.Instrument {
	if mkt == nil {
		return nil
	}
	return selectBySymbols(instruments, mkt.IntradayList)
}

// Analyze measures how often a break of open×1.005 held into the close
func (s *ORB) Analyze(ctx context.Context, in Input) (*Analysis, error) {
	if len(in.Bars) < intradayMinBars {
		return nil, Skipf("insufficient-history")
	}
	bars := in.Bars[len(in.Bars)-intradayMinBars:]

	breaks, held := 0, 0
	for _, b := range bars {
		rangeHigh := b.Open * (1 + orbRangePct)
		if b.High <= rangeHigh {
			continue
		}
		breaks++
		if b.Close > rangeHigh {
			held++
		}
	}
	if breaks == 0 {
		return nil, Skipf("no-range-breaks")
	}
	followThrough := float64(held) / float64(breaks)

	volRatio := 0.0
	if avg20 := AvgVolume(in.Bars, 20); avg20 > 0 {
		volRatio = AvgVolume(in.Bars, 5) / avg20
	}
	var volScore float64
	switch {
	case volRatio >= 2:
		volScore = 1.0
	case volRatio >= 1.5:
		volScore = 0.8
	case volRatio >= 1:
		volScore = 0.6
	default:
		volScore = 0.4
	}

	trend, trendRaw := trendAlignment(Closes(in.Bars))

	return &Analysis{
		Normalized: map[string]float64{
			"breakout_strength":   followThrough,
			"volume_confirmation": volScore,
			"trend_alignment":     trend,
		},
		Raw: map[string]float64{
			"breakout_strength":   float64(breaks),
			"volume_confirmation": volRatio,
			"trend_alignment":     trendRaw,
		},
		Secondary: followThrough,
	}, nil
}

// ORBRangeHigh is the live opening-range high for an open price
func ORBRangeHigh(open float64) float64 {
	return open * (1 + orbRangePct)
}

// ORBRangeLow is the live opening-range low for an open price
func ORBRangeLow(open float64) float64 {
	return open * (1 - orbRangePct)
}

func avgRangePct(bars []contracts.Bar, n int) float64 {
	if n > len(bars) {
		n = len(bars)
	}
	sum, count := 0.0, 0
	for _, b := range bars[len(bars)-n:] {
		if b.Open <= 0 {
			continue
		}
		sum += (b.High - b.Low) / b.Open * 100
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// trendAlignment: close above SMA20 and SMA50 → 1.0, one of them → 0.6, none → 0.3
func trendAlignment(closes []float64) (float64, float64) {
	last := closes[len(closes)-1]
	sma20, sma50 := SMA(closes, 20), SMA(closes, 50)
	above := 0
	if sma20 > 0 && last > sma20 {
		above++
	}
	if sma50 > 0 && last > sma50 {
		above++
	}
	switch above {
	case 2:
		return 1.0, float64(above)
	case 1:
		return 0.6, float64(above)
	default:
		return 0.3, float64(above)
	}
}

func benchmarkAboveSMA50(m *MarketContext) float64 {
	if m == nil || len(m.Benchmark) < 50 {
		return 0
	}
	closes := Closes(m.Benchmark)
	sma := SMA(closes, 50)
	if sma == 0 {
		return 0
	}
	return (closes[len(closes)-1] - sma) / sma * 100
}

func marketRegime(m *MarketContext) float64 {
	if m == nil || len(m.Benchmark) < 50 {
		return 0.6
	}
	if benchmarkAboveSMA50(m) > 0 {
		return 0.8
	}
	return 0.4
}
