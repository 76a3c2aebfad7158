package contracts

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekKeyFor(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want WeekKey
	}{
		{"mid week", time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC), "2026-W42"},
		{"iso year boundary", time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), "2026-W53"},
		{"first week", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), "2026-W02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeekKeyFor(tt.date))
		})
	}
}

func TestParseWeekKey(t *testing.T) {
	k, err := ParseWeekKey("2026-W42")
	require.NoError(t, err)
	assert.Equal(t, WeekKey("2026-W42"), k)

	_, err = ParseWeekKey("2026-42")
	assert.Error(t, err)

	_, err = ParseWeekKey("2026-W60")
	assert.Error(t, err)
}

func TestNextTradingWeek(t *testing.T) {
	// Saturday 2026-10-17 → week of Monday 2026-10-19
	sat := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	week, mon, fri := NextTradingWeek(sat)
	assert.Equal(t, WeekKey("2026-W43"), week)
	assert.Equal(t, time.Monday, mon.Weekday())
	assert.Equal(t, 19, mon.Day())
	assert.Equal(t, time.Friday, fri.Weekday())

	// Wednesday stays in its own week
	wed := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	week, mon, _ = NextTradingWeek(wed)
	assert.Equal(t, WeekKey("2026-W42"), week)
	assert.Equal(t, 12, mon.Day())
}

func TestWeeklyUniverse_Candidates(t *testing.T) {
	u := &WeeklyUniverse{
		WeekKey: "2026-W43",
		Signals: []StrategySignal{
			{Strategy: StrategyBreakout, Symbol: "MSFT", Score: 4, Secondary: 1.2, Candidate: true},
			{Strategy: StrategyBreakout, Symbol: "AAPL", Score: 4, Secondary: 1.2, Candidate: true},
			{Strategy: StrategyBreakout, Symbol: "NVDA", Score: 5, Secondary: 0.1, Candidate: true},
			{Strategy: StrategyBreakout, Symbol: "AMD", Score: 4, Secondary: 2.5, Candidate: true},
			{Strategy: StrategyBreakout, Symbol: "INTC", Score: 2, Candidate: false},
			{Strategy: StrategyEarnings, Symbol: "ORCL", Score: 5, Candidate: true},
		},
	}

	got := u.Candidates(StrategyBreakout, 3)
	require.Len(t, got, 4)

	symbols := make([]string, 0, len(got))
	for _, s := range got {
		symbols = append(symbols, s.Symbol)
	}
	// score desc → secondary desc → symbol asc
	assert.Equal(t, []string{"NVDA", "AMD", "AAPL", "MSFT"}, symbols)

	// audit-only signals stay visible through SignalsFor
	assert.Len(t, u.SignalsFor(StrategyBreakout), 5)
}

func TestWeeklyUniverse_Clone(t *testing.T) {
	now := time.Now()
	u := &WeeklyUniverse{
		WeekKey:     "2026-W43",
		Instruments: []Instrument{{Symbol: "AAPL"}},
		Signals: []StrategySignal{{
			Symbol:     "AAPL",
			Components: []ScoreComponent{{Name: "gap_behavior", Weight: 0.25}},
		}},
		FrozenAt: &now,
	}

	c := u.Clone()
	c.Instruments[0].Symbol = "MSFT"
	c.Signals[0].Components[0].Weight = 1
	*c.FrozenAt = now.Add(time.Hour)

	assert.Equal(t, "AAPL", u.Instruments[0].Symbol)
	assert.Equal(t, 0.25, u.Signals[0].Components[0].Weight)
	assert.Equal(t, now, *u.FrozenAt)
}

func TestErrorTaxonomy(t *testing.T) {
	base := errors.New("connection reset")

	err := DataUnavailable("get quote AAPL", base)
	assert.True(t, errors.Is(err, ErrDataUnavailable))
	assert.True(t, errors.Is(err, base))
	assert.True(t, IsRetryable(err))

	rl := DataUnavailable("get history", ErrRateLimited)
	assert.True(t, errors.Is(rl, ErrRateLimited))
	assert.True(t, IsRetryable(rl))

	imm := ImmutableStateViolation("2026-W43")
	assert.True(t, errors.Is(imm, ErrImmutableState))
	assert.False(t, IsRetryable(imm))

	rej := BrokerRejection("AAPL", "insufficient funds")
	assert.True(t, errors.Is(rej, ErrBrokerRejection))
	assert.False(t, IsRetryable(rej))
}

func TestStrategyID(t *testing.T) {
	assert.True(t, StrategyGapFade.IsIntraday())
	assert.True(t, StrategyVWAP.IsIntraday())
	assert.True(t, StrategyORB.IsIntraday())
	assert.False(t, StrategyEarnings.IsIntraday())
	assert.True(t, StrategyBreakout.Valid())
	assert.False(t, StrategyID("momentum").Valid())
}

func TestQuote_Helpers(t *testing.T) {
	q := Quote{Open: 95, PrevClose: 100, Volume: 100_000}
	assert.InDelta(t, -5.0, q.GapPct(), 1e-9)
	assert.Equal(t, 100_000.0, q.AverageVolume())

	q.AvgVolume = 2_000_000
	assert.Equal(t, 2_000_000.0, q.AverageVolume())
}

func TestBucketForMarketCap(t *testing.T) {
	assert.Equal(t, MarketCapSmall, BucketForMarketCap(600e6))
	assert.Equal(t, MarketCapMid, BucketForMarketCap(5e9))
	assert.Equal(t, MarketCapLarge, BucketForMarketCap(50e9))
	assert.Equal(t, MarketCapMega, BucketForMarketCap(3e12))
}

func TestWeekKeyRange(t *testing.T) {
	mon, fri, err := WeekKey("2026-W42").Range(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), mon)
	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), fri)

	// round trip with WeekKeyFor
	assert.Equal(t, WeekKey("2026-W42"), WeekKeyFor(mon))

	_, _, err = WeekKey("bad").Range(nil)
	assert.Error(t, err)
}
