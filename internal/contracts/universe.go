package contracts

import (
	"sort"
	"time"
)

// MarketCapBucket 시가총액 구간
type MarketCapBucket string

const (
	MarketCapSmall MarketCapBucket = "small" // < 2B
	MarketCapMid   MarketCapBucket = "mid"   // 2B ~ 10B
	MarketCapLarge MarketCapBucket = "large" // 10B ~ 200B
	MarketCapMega  MarketCapBucket = "mega"  // >= 200B
)

// BucketForMarketCap maps a USD market cap to its bucket
func BucketForMarketCap(marketCap float64) MarketCapBucket {
	switch {
	case marketCap >= 200e9:
		return MarketCapMega
	case marketCap >= 10e9:
		return MarketCapLarge
	case marketCap >= 2e9:
		return MarketCapMid
	default:
		return MarketCapSmall
	}
}

// Instrument is a tradeable equity inside a weekly universe.
// Immutable once added to a universe.
type Instrument struct {
	Symbol          string          `json:"symbol" yaml:"symbol"`
	Name            string          `json:"name,omitempty" yaml:"name,omitempty"`
	Tradeable       bool            `json:"tradeable" yaml:"tradeable"`
	Sector          string          `json:"sector,omitempty" yaml:"sector,omitempty"`
	MarketCap       float64         `json:"market_cap" yaml:"market_cap"`
	MarketCapBucket MarketCapBucket `json:"market_cap_bucket" yaml:"market_cap_bucket"`
}

// EarningsEvent 다음 주 실적 발표 일정
type EarningsEvent struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Timing string    `json:"timing,omitempty"` // bmo, amc, unknown
}

// WeeklyUniverse is the once-per-week snapshot the weekday code reads.
// ⭐ SSOT: Frozen=true 이후에는 어떤 필드도 변경 불가
type WeeklyUniverse struct {
	WeekKey     WeekKey          `json:"week_key"`
	Instruments []Instrument     `json:"instruments"`
	Signals     []StrategySignal `json:"signals"`
	Earnings    []EarningsEvent  `json:"earnings,omitempty"`
	Frozen      bool             `json:"frozen"`
	FrozenAt    *time.Time       `json:"frozen_at,omitempty"`
	ConfigHash  string           `json:"config_hash,omitempty"`
	RunID       string           `json:"run_id,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Instrument looks up an instrument by symbol
func (u *WeeklyUniverse) Instrument(symbol string) (Instrument, bool) {
	for _, inst := range u.Instruments {
		if inst.Symbol == symbol {
			return inst, true
		}
	}
	return Instrument{}, false
}

// SignalsFor returns every recorded signal of one strategy in scoring order,
// candidates and audit-only signals alike.
func (u *WeeklyUniverse) SignalsFor(strategy StrategyID) []StrategySignal {
	out := make([]StrategySignal, 0)
	for _, s := range u.Signals {
		if s.Strategy == strategy {
			out = append(out, s)
		}
	}
	SortSignals(out)
	return out
}

// Candidates returns the signals of one strategy that execution may act on:
// candidate flag set and score >= threshold, in scoring order.
func (u *WeeklyUniverse) Candidates(strategy StrategyID, threshold int) []StrategySignal {
	out := make([]StrategySignal, 0)
	for _, s := range u.SignalsFor(strategy) {
		if s.Candidate && s.Score >= threshold {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a deep copy so stores never share slices with callers
func (u *WeeklyUniverse) Clone() *WeeklyUniverse {
	if u == nil {
		return nil
	}
	c := *u
	c.Instruments = append([]Instrument(nil), u.Instruments...)
	c.Earnings = append([]EarningsEvent(nil), u.Earnings...)
	c.Signals = make([]StrategySignal, len(u.Signals))
	for i, s := range u.Signals {
		s.Components = append([]ScoreComponent(nil), s.Components...)
		c.Signals[i] = s
	}
	if u.FrozenAt != nil {
		t := *u.FrozenAt
		c.FrozenAt = &t
	}
	return &c
}

// SortSignals orders signals by score desc, secondary metric desc, symbol asc
func SortSignals(signals []StrategySignal) {
	sort.SliceStable(signals, func(i, j int) bool {
		a, b := signals[i], signals[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Secondary != b.Secondary {
			return a.Secondary > b.Secondary
		}
		return a.Symbol < b.Symbol
	})
}
