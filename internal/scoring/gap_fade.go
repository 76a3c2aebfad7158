package scoring

import (
	"context"
	"math"

	"github.com/wonny/aegis-swing/internal/contracts"
)

const (
	intradayMinBars  = 60
	gapFadeMinGapPct = 3.0
	gapFadeLookback  = 63 // ~3개월
)

// GapFade scores the historical tendency of a name to fill its opening gaps
type GapFade struct {
	weights map[string]float64
}

// NewGapFade creates the gap fade strategy
func NewGapFade(weights map[string]float64) *GapFade {
	return &GapFade{weights: copyWeights(weights)}
}

func (s *GapFade) ID() contracts.StrategyID        { return contracts.StrategyGapFade }
func (s *GapFade) Weights() map[string]float64     { return s.weights }
func (s *GapFade) Window() contracts.HistoryWindow { return contracts.Window3M }

// Select keeps the configured liquid intraday list
func (s *GapFade) Select(instruments []contracts.Instrument, mkt *MarketContext) []contracts.Instrument {
	if mkt == nil {
		return nil
	}
	return selectBySymbols(instruments, mkt.IntradayList)
}

// Analyze measures gaps ≥3% over the last three months and how often they filled
func (s *GapFade) Analyze(ctx context.Context, in Input) (*Analysis, error) {
	if len(in.Bars) < intradayMinBars {
		return nil, Skipf("insufficient-history")
	}
	bars := in.Bars
	start := len(bars) - gapFadeLookback
	if start < 1 {
		start = 1
	}

	gaps, fills, downs := 0, 0, 0
	sumAbs := 0.0
	for i := start; i < len(bars); i++ {
		gap := GapPct(bars, i)
		if math.Abs(gap) < gapFadeMinGapPct {
			continue
		}
		gaps++
		sumAbs += math.Abs(gap)
		prevClose := bars[i-1].Close
		if gap > 0 && bars[i].Low <= prevClose {
			fills++
		}
		if gap < 0 {
			downs++
			if bars[i].High >= prevClose {
				fills++
			}
		}
	}
	if gaps == 0 {
		return nil, Skipf("no-historical-gaps")
	}

	fillRate := float64(fills) / float64(gaps)
	avgGap := sumAbs / float64(gaps)

	var sizeScore float64
	switch {
	case avgGap >= 3 && avgGap <= 5:
		sizeScore = 1.0
	case avgGap <= 7:
		sizeScore = 0.8
	case avgGap <= 10:
		sizeScore = 0.5
	default:
		sizeScore = 0.3
	}

	volRatio := 0.0
	if avg20 := AvgVolume(bars, 20); avg20 > 0 {
		volRatio = AvgVolume(bars, 5) / avg20
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

	// 롱 전용: gap-down 매수 → 시장 상승 추세와 같은 방향이면 0.8, 반대면 0.5
	direction := 0.6
	benchRet, known := in.Market.BenchmarkReturn(5)
	if known {
		if benchRet >= 0 {
			direction = 0.8
		} else {
			direction = 0.5
		}
	}

	return &Analysis{
		Normalized: map[string]float64{
			"gap_size":         sizeScore,
			"fill_rate":        fillRate,
			"volume":           volScore,
			"market_direction": direction,
		},
		Raw: map[string]float64{
			"gap_size":         avgGap,
			"fill_rate":        fillRate,
			"volume":           volRatio,
			"market_direction": benchRet,
		},
		Secondary: fillRate,
		Notes:     gapNotes(gaps, downs),
	}, nil
}

func gapNotes(gaps, downs int) string {
	if downs*2 >= gaps {
		return "gaps mostly down"
	}
	return "gaps mostly up"
}
