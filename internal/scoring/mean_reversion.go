package scoring

import (
	"context"

	"github.com/wonny/aegis-swing/internal/contracts"
)

const (
	meanReversionMinBars = 200
	meanReversionMaxRSI  = 10.0 // RSI(2) 진입 조건
)

// MeanReversion buys short-term oversold names in a long-term uptrend
type MeanReversion struct {
	weights map[string]float64
}

// NewMeanReversion creates the mean reversion strategy
func NewMeanReversion(weights map[string]float64) *MeanReversion {
	return &MeanReversion{weights: copyWeights(weights)}
}

func (s *MeanReversion) ID() contracts.StrategyID        { return contracts.StrategyMeanReversion }
func (s *MeanReversion) Weights() map[string]float64     { return s.weights }
func (s *MeanReversion) Window() contracts.HistoryWindow { return contracts.Window1Y }

func (s *MeanReversion) Select(instruments []contracts.Instrument, _ *MarketContext) []contracts.Instrument {
	return selectTradeable(instruments)
}

// Analyze requires RSI(2) < 10 and price above the 200-day SMA
func (s *MeanReversion) Analyze(ctx context.Context, in Input) (*Analysis, error) {
	if len(in.Bars) < meanReversionMinBars {
		return nil, Skipf("insufficient-history")
	}
	closes := Closes(in.Bars)
	last := closes[len(closes)-1]

	rsi2 := RSI(closes, 2)
	if rsi2 >= meanReversionMaxRSI {
		return nil, Skipf("rsi-not-oversold")
	}
	sma200 := SMA(closes, 200)
	if sma200 <= 0 || last <= sma200 {
		return nil, Skipf("below-200-sma")
	}

	var rsiScore float64
	switch {
	case rsi2 < 5:
		rsiScore = 1.0
	case rsi2 < 10:
		rsiScore = 0.8
	case rsi2 < 15:
		rsiScore = 0.6
	case rsi2 < 20:
		rsiScore = 0.4
	default:
		rsiScore = 0.2
	}

	above := (last - sma200) / sma200 * 100
	var trendScore float64
	switch {
	case above > 20:
		trendScore = 1.0
	case above > 10:
		trendScore = 0.8
	case above > 0:
		trendScore = 0.6
	case above > -5:
		trendScore = 0.4
	default:
		trendScore = 0.2
	}

	drawdown := DrawdownPct(closes, 20)
	var ddScore float64
	switch {
	case drawdown > 15:
		ddScore = 1.0
	case drawdown > 10:
		ddScore = 0.8
	case drawdown > 5:
		ddScore = 0.6
	default:
		ddScore = 0.4
	}

	spike := VolumeRatio(in.Bars, 20)
	var spikeScore float64
	switch {
	case spike > 3:
		spikeScore = 1.0
	case spike > 2:
		spikeScore = 0.8
	case spike > 1.5:
		spikeScore = 0.6
	default:
		spikeScore = 0.4
	}

	return &Analysis{
		Normalized: map[string]float64{
			"rsi_extremity":  rsiScore,
			"trend_strength": trendScore,
			"drawdown_depth": ddScore,
			"volume_spike":   spikeScore,
		},
		Raw: map[string]float64{
			"rsi_extremity":  rsi2,
			"trend_strength": above,
			"drawdown_depth": drawdown,
			"volume_spike":   spike,
		},
		Secondary: -rsi2,
	}, nil
}
