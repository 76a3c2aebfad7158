package execution

import (
	"fmt"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/scoring"
)

// 진입 트리거 (장중 실시간 조건)
const (
	gapFadeMinGap   = 3.0  // gap-down 최소 %
	gapFadeMaxGap   = 10.0 // gap-down 최대 %
	vwapMinBelow    = 1.5  // VWAP 대비 하락 최소 %
	vwapMaxBelow    = 4.0  // VWAP 대비 하락 최대 %
	reasonNoTrigger = "entry-trigger-not-met"
)

// EntryTrigger checks the live entry condition of intraday-style strategies.
// Swing strategies enter on the frozen signal alone.
func EntryTrigger(strategy contracts.StrategyID, q *contracts.Quote) (bool, string) {
	switch strategy {
	case contracts.StrategyGapFade:
		gap := q.GapPct()
		if gap <= -gapFadeMinGap && gap >= -gapFadeMaxGap {
			return true, fmt.Sprintf("gap %.2f%%", gap)
		}
		return false, fmt.Sprintf("gap %.2f%% outside -%.0f%%..-%.0f%%", gap, gapFadeMaxGap, gapFadeMinGap)

	case contracts.StrategyVWAP:
		if q.VWAP <= 0 {
			return false, "vwap unavailable"
		}
		below := (q.VWAP - q.Price) / q.VWAP * 100
		if below >= vwapMinBelow && below <= vwapMaxBelow {
			return true, fmt.Sprintf("%.2f%% below vwap", below)
		}
		return false, fmt.Sprintf("%.2f%% below vwap", below)

	case contracts.StrategyORB:
		high := scoring.ORBRangeHigh(q.Open)
		if q.Open > 0 && q.Price > high {
			return true, fmt.Sprintf("price %.2f > range high %.2f", q.Price, high)
		}
		return false, fmt.Sprintf("price %.2f <= range high %.2f", q.Price, high)
	}
	return true, ""
}
