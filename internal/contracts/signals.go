package contracts

import "time"

// StrategyID identifies one of the fixed strategy variants
type StrategyID string

const (
	StrategyEarnings       StrategyID = "earnings"
	StrategySectorMomentum StrategyID = "sector_momentum"
	StrategyMeanReversion  StrategyID = "mean_reversion"
	StrategyBreakout       StrategyID = "breakout"
	StrategyGapFade        StrategyID = "gap_fade"
	StrategyVWAP           StrategyID = "vwap"
	StrategyORB            StrategyID = "orb"
)

// AllStrategies lists every variant in a fixed order
var AllStrategies = []StrategyID{
	StrategyEarnings,
	StrategySectorMomentum,
	StrategyMeanReversion,
	StrategyBreakout,
	StrategyGapFade,
	StrategyVWAP,
	StrategyORB,
}

// IsIntraday reports whether positions of this strategy are force-closed each session
func (s StrategyID) IsIntraday() bool {
	switch s {
	case StrategyGapFade, StrategyVWAP, StrategyORB:
		return true
	}
	return false
}

// Valid checks the identifier against the fixed set
func (s StrategyID) Valid() bool {
	for _, id := range AllStrategies {
		if id == s {
			return true
		}
	}
	return false
}

// ScoreComponent is one weighted, explainable part of a score
type ScoreComponent struct {
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Raw          float64 `json:"raw"`          // raw metric value (e.g. RSI, % from high)
	Normalized   float64 `json:"normalized"`   // 0..1
	Contribution float64 `json:"contribution"` // weight × normalized
}

// ExitParams are captured at scoring time and stored verbatim.
// Execution and invalidation never recompute them.
type ExitParams struct {
	StopLossPct     float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TrailingStopPct float64 `json:"trailing_stop_pct" yaml:"trailing_stop_pct"` // 0 = disabled
	MaxHoldDays     int     `json:"max_hold_days" yaml:"max_hold_days"`
	Intraday        bool    `json:"intraday" yaml:"intraday"`
	SessionClose    string  `json:"session_close,omitempty" yaml:"session_close,omitempty"` // HH:MM, intraday only
}

// StrategySignal is the frozen output of one strategy for one instrument
// ⭐ SSOT: 주말 분석 결과 → 평일 실행 전달
type StrategySignal struct {
	Strategy    StrategyID       `json:"strategy"`
	Symbol      string           `json:"symbol"`
	Components  []ScoreComponent `json:"components"`
	Score       int              `json:"score"`        // 1..5
	WeightedSum float64          `json:"weighted_sum"` // Σ weight × normalized
	Secondary   float64          `json:"secondary"`    // strategy-specific tie-break metric
	Candidate   bool             `json:"candidate"`    // passed to execution
	Exit        ExitParams       `json:"exit"`
	Notes       string           `json:"notes,omitempty"`
	ScoredAt    time.Time        `json:"scored_at"`
}

// Component returns the named component if present
func (s *StrategySignal) Component(name string) (ScoreComponent, bool) {
	for _, c := range s.Components {
		if c.Name == name {
			return c, true
		}
	}
	return ScoreComponent{}, false
}
