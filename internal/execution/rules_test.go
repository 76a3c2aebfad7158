package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/strategyconfig"
)

func TestSizeMultiplierTable(t *testing.T) {
	table := strategyconfig.Default().Sizing.ScoreMultipliers
	want := map[int]float64{5: 1.00, 4: 0.75, 3: 0.50, 2: 0.25, 1: 0.00}
	for score, m := range want {
		assert.Equal(t, m, SizeMultiplier(score, table), "score %d", score)
	}
	assert.Equal(t, 0.0, SizeMultiplier(0, table))
}

func TestPositionNotionalFloorsToCents(t *testing.T) {
	assert.Equal(t, "925.92", PositionNotional(12345.67, 0.10, 0.75).StringFixed(2))
	assert.Equal(t, "10000.00", PositionNotional(100000, 0.10, 1).StringFixed(2))
	assert.True(t, PositionNotional(100000, 0.10, 0).IsZero())
	assert.True(t, PositionNotional(-5, 0.10, 1).IsZero())
}

func TestEvaluateNoTrade(t *testing.T) {
	th := strategyconfig.Default().NoTrade
	inst := contracts.Instrument{Symbol: "X", MarketCap: 10e9}

	tests := []struct {
		name  string
		quote contracts.Quote
		inst  contracts.Instrument
		want  []string
	}{
		{
			name:  "passes",
			quote: contracts.Quote{Price: 10, Open: 10, PrevClose: 10, AvgVolume: 1e6, MarketCap: 1e9},
			inst:  inst,
		},
		{
			name:  "low volume",
			quote: contracts.Quote{Price: 10, Volume: 100_000, MarketCap: 1e9},
			inst:  inst,
			want:  []string{RuleLowAverageVolume},
		},
		{
			name:  "excessive gap up",
			quote: contracts.Quote{Price: 12, Open: 12, PrevClose: 10, AvgVolume: 1e6, MarketCap: 1e9},
			inst:  inst,
			want:  []string{RuleExcessiveGap},
		},
		{
			name:  "market cap falls back to frozen instrument",
			quote: contracts.Quote{Price: 10, AvgVolume: 1e6},
			inst:  contracts.Instrument{Symbol: "TINY", MarketCap: 100e6},
			want:  []string{RuleLowMarketCap},
		},
		{
			name:  "every triggered rule is listed",
			quote: contracts.Quote{Price: 5, Open: 5, PrevClose: 4, Volume: 1000, MarketCap: 50e6},
			inst:  inst,
			want:  []string{RuleLowAverageVolume, RuleExcessiveGap, RuleLowMarketCap},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := EvaluateNoTrade(&tt.quote, tt.inst, th)
			assert.Equal(t, tt.want, v.Rules)
			assert.Equal(t, len(tt.want) > 0, v.Blocked())
		})
	}
}

func TestEntryTrigger(t *testing.T) {
	tests := []struct {
		name     string
		strategy contracts.StrategyID
		quote    contracts.Quote
		want     bool
	}{
		{"swing always enters", contracts.StrategyBreakout, contracts.Quote{Price: 10}, true},
		{"gap fade -5%", contracts.StrategyGapFade, contracts.Quote{Price: 95, Open: 95, PrevClose: 100}, true},
		{"gap fade -2% too small", contracts.StrategyGapFade, contracts.Quote{Price: 98, Open: 98, PrevClose: 100}, false},
		{"gap fade -12% too large", contracts.StrategyGapFade, contracts.Quote{Price: 88, Open: 88, PrevClose: 100}, false},
		{"gap fade gap up", contracts.StrategyGapFade, contracts.Quote{Price: 105, Open: 105, PrevClose: 100}, false},
		{"vwap 2% below", contracts.StrategyVWAP, contracts.Quote{Price: 98, VWAP: 100}, true},
		{"vwap 1% below", contracts.StrategyVWAP, contracts.Quote{Price: 99, VWAP: 100}, false},
		{"vwap 5% below", contracts.StrategyVWAP, contracts.Quote{Price: 95, VWAP: 100}, false},
		{"vwap missing", contracts.StrategyVWAP, contracts.Quote{Price: 95}, false},
		{"orb above range", contracts.StrategyORB, contracts.Quote{Price: 101, Open: 100}, true},
		{"orb inside range", contracts.StrategyORB, contracts.Quote{Price: 100.4, Open: 100}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, _ := EntryTrigger(tt.strategy, &tt.quote)
			assert.Equal(t, tt.want, ok)
		})
	}
}
