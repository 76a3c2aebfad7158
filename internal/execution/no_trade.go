package execution

import (
	"math"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/strategyconfig"
)

// =============================================================================
// NO-TRADE gate
// ⭐ SSOT: 진입 전 거래 금지 규칙은 여기서만 (에러 아님, 유효한 결과)
// =============================================================================

const (
	RuleLowAverageVolume = "low-average-volume"
	RuleExcessiveGap     = "excessive-gap"
	RuleLowMarketCap     = "low-market-cap"
)

// NoTradeVerdict lists every triggered NO-TRADE rule
type NoTradeVerdict struct {
	Rules []string `json:"rules,omitempty"`
}

// Blocked reports whether any rule triggered
func (v NoTradeVerdict) Blocked() bool {
	return len(v.Rules) > 0
}

// EvaluateNoTrade checks live data against the frozen thresholds.
// Market cap falls back to the frozen instrument when the quote has none.
func EvaluateNoTrade(q *contracts.Quote, inst contracts.Instrument, th strategyconfig.NoTrade) NoTradeVerdict {
	var v NoTradeVerdict

	if q.AverageVolume() < th.MinAvgVolume {
		v.Rules = append(v.Rules, RuleLowAverageVolume)
	}
	if th.MaxGapPct > 0 && math.Abs(q.GapPct()) > th.MaxGapPct {
		v.Rules = append(v.Rules, RuleExcessiveGap)
	}

	marketCap := q.MarketCap
	if marketCap <= 0 {
		marketCap = inst.MarketCap
	}
	// ETF 등 시가총액 정보가 없으면 규칙 미적용
	if marketCap > 0 && marketCap < th.MinMarketCap {
		v.Rules = append(v.Rules, RuleLowMarketCap)
	}
	return v
}
