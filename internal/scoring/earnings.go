package scoring

import (
	"context"
	"math"
	"strings"

	"github.com/wonny/aegis-swing/internal/contracts"
)

const (
	earningsMinBars      = 200
	earningsMaxQuarters  = 12
	earningsGapThreshold = 5.0  // |gap| ≥ 5% 만 분석
	earningsFollowDays   = 10   // day-10 종가로 fade/continuation 판정
	earningsLabelRate    = 0.60 // 60% 이상이면 라벨 부여
)

// Earnings scores instruments reporting next week by their historical earnings reaction
type Earnings struct {
	weights map[string]float64
}

// NewEarnings creates the earnings strategy
func NewEarnings(weights map[string]float64) *Earnings {
	return &Earnings{weights: copyWeights(weights)}
}

func (s *Earnings) ID() contracts.StrategyID        { return contracts.StrategyEarnings }
func (s *Earnings) Weights() map[string]float64     { return s.weights }
func (s *Earnings) Window() contracts.HistoryWindow { return contracts.Window3Y }
func (s *Earnings) NeedsProfile() bool              { return true }

// Select keeps tradeable instruments with a report scheduled in the target week
func (s *Earnings) Select(instruments []contracts.Instrument, mkt *MarketContext) []contracts.Instrument {
	if mkt == nil || len(mkt.Earnings) == 0 {
		return nil
	}
	var out []contracts.Instrument
	for _, inst := range instruments {
		if _, ok := mkt.Earnings[inst.Symbol]; ok && inst.Tradeable {
			out = append(out, inst)
		}
	}
	return out
}

// gapStudy is the historical earnings reaction summary
type gapStudy struct {
	measured     int // 측정된 이벤트 수
	large        int // |gap| ≥ threshold
	fades        int
	continuation int
	avgAbsGap    float64
}

func (g gapStudy) fadeRate() float64 {
	if g.large == 0 {
		return 0
	}
	return float64(g.fades) / float64(g.large)
}

func (g gapStudy) continuationRate() float64 {
	if g.large == 0 {
		return 0
	}
	return float64(g.continuation) / float64(g.large)
}

func (g gapStudy) label() string {
	switch {
	case g.large == 0:
		return "no-large-gaps"
	case g.fadeRate() >= earningsLabelRate:
		return "fade"
	case g.continuationRate() >= earningsLabelRate:
		return "continuation"
	default:
		return "mixed"
	}
}

func studyEarningsGaps(bars []contracts.Bar, profile *contracts.Profile) gapStudy {
	var g gapStudy
	if profile == nil {
		return g
	}
	sumAbs := 0.0
	for i, date := range profile.EarningsDates {
		if i >= earningsMaxQuarters {
			break
		}
		idx := IndexOnOrAfter(bars, date)
		if idx <= 0 {
			continue
		}
		gap := GapPct(bars, idx)
		g.measured++
		sumAbs += math.Abs(gap)

		if math.Abs(gap) < earningsGapThreshold || idx+earningsFollowDays >= len(bars) {
			continue
		}
		g.large++
		open := bars[idx].Open
		later := bars[idx+earningsFollowDays].Close
		continued := (gap > 0 && later > open) || (gap < 0 && later < open)
		if continued {
			g.continuation++
		} else {
			g.fades++
		}
	}
	if g.measured > 0 {
		g.avgAbsGap = sumAbs / float64(g.measured)
	}
	return g
}

// Analyze scores the earnings reaction profile
func (s *Earnings) Analyze(ctx context.Context, in Input) (*Analysis, error) {
	if len(in.Bars) < earningsMinBars {
		return nil, Skipf("insufficient-history")
	}
	if in.Profile == nil {
		return nil, Skipf("missing-profile")
	}

	closes := Closes(in.Bars)
	study := studyEarningsGaps(in.Bars, in.Profile)

	// gap_behavior: 우세한 반응 비율
	predictability := math.Max(study.fadeRate(), study.continuationRate())

	// trend_consistency
	var consistency float64
	switch {
	case study.large >= 4:
		consistency = predictability*0.8 + 0.2
	case study.large >= 2:
		consistency = predictability * 0.5
	default:
		consistency = 0.3
	}

	analyst := analystSensitivity(in.Profile.AnalystCount, in.Profile.Recommendation)

	// volatility_alignment: 최근 20일 변동성 / 전체 기간 변동성
	vol20 := Volatility(closes, 20)
	volAll := Volatility(closes, len(closes)-1)
	volRatio := 0.0
	if volAll > 0 {
		volRatio = vol20 / volAll
	}
	var volAlign float64
	switch {
	case volRatio >= 0.8 && volRatio <= 1.2:
		volAlign = 0.8
	case volRatio >= 0.5 && volRatio <= 1.5:
		volAlign = 0.6
	default:
		volAlign = 0.4
	}

	ret20 := ReturnPct(closes, 20)
	var sentiment float64
	switch {
	case ret20 > 5:
		sentiment = 0.7
	case ret20 > 0:
		sentiment = 0.6
	case ret20 > -5:
		sentiment = 0.5
	default:
		sentiment = 0.3
	}

	notes := study.label()
	if in.Market != nil {
		if ev, ok := in.Market.Earnings[in.Instrument.Symbol]; ok {
			notes += " report=" + ev.Date.Format("2006-01-02")
			if ev.Timing != "" {
				notes += " " + ev.Timing
			}
		}
	}

	return &Analysis{
		Normalized: map[string]float64{
			"gap_behavior":         predictability,
			"trend_consistency":    consistency,
			"analyst_sensitivity":  analyst,
			"volatility_alignment": volAlign,
			"sentiment_bias":       sentiment,
		},
		Raw: map[string]float64{
			"gap_behavior":         float64(study.large),
			"trend_consistency":    predictability,
			"analyst_sensitivity":  float64(in.Profile.AnalystCount),
			"volatility_alignment": volRatio,
			"sentiment_bias":       ret20,
		},
		Secondary: study.avgAbsGap,
		Notes:     notes,
	}, nil
}

func analystSensitivity(count int, recommendation string) float64 {
	var base float64
	switch {
	case count >= 10:
		base = 0.7
	case count >= 5:
		base = 0.5
	default:
		base = 0.3
	}
	switch strings.ToLower(strings.ReplaceAll(recommendation, "_", "")) {
	case "buy", "strongbuy":
		base += 0.2
	case "hold":
		base += 0.1
	}
	return math.Min(base, 1.0)
}
