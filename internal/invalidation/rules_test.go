package invalidation

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-swing/internal/contracts"
)

func position(entry, hwm float64, exit contracts.ExitParams) contracts.Position {
	return contracts.Position{
		ID:            "p1",
		Symbol:        "AAPL",
		Strategy:      contracts.StrategyBreakout,
		EntryPrice:    entry,
		EntryTime:     time.Date(2026, 10, 19, 10, 30, 0, 0, time.UTC),
		Quantity:      10,
		HighWaterMark: hwm,
		Status:        contracts.PositionOpen,
		Exit:          exit,
	}
}

func observe(p contracts.Position, price float64, now time.Time) Observation {
	return Observation{Position: p, Price: price, PriceKnown: true, Now: now, ForceClose: "15:45"}
}

func TestStopLossBoundary(t *testing.T) {
	p := position(100, 100, contracts.ExitParams{StopLossPct: 8})
	now := p.EntryTime.Add(time.Hour)

	_, ok := Evaluate(observe(p, 95, now), DefaultRules())
	assert.False(t, ok)

	v, ok := Evaluate(observe(p, 92, now), DefaultRules())
	require.True(t, ok)
	assert.Equal(t, contracts.ExitReasonStopLoss, v.Reason)
}

func TestStopLossWinsOverTrailingStop(t *testing.T) {
	// 둘 다 트리거: 손절 -5% (95), 트레일링 hwm 110 -10% (99)
	p := position(100, 110, contracts.ExitParams{StopLossPct: 5, TrailingStopPct: 10})

	v, ok := Evaluate(observe(p, 94, p.EntryTime.Add(time.Hour)), DefaultRules())
	require.True(t, ok)
	assert.Equal(t, contracts.ExitReasonStopLoss, v.Reason)
}

func TestTrailingStop(t *testing.T) {
	exit := contracts.ExitParams{StopLossPct: 5, TrailingStopPct: 10}
	now := time.Date(2026, 10, 20, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		hwm   float64
		price float64
		want  bool
	}{
		{"not armed at entry", 100, 96, false},
		{"above trail", 120, 109, false},
		{"at trail", 120, 108, true},
		{"below trail", 120, 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := TrailingStop{}.Check(observe(position(100, tt.hwm, exit), tt.price, now))
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, contracts.ExitReasonTrailingStop, v.Reason)
			}
		})
	}
}

func TestMaxHoldCountsCalendarDays(t *testing.T) {
	p := position(100, 100, contracts.ExitParams{StopLossPct: 5, MaxHoldDays: 10})

	_, ok := MaxHold{}.Check(observe(p, 100, p.EntryTime.Add(9*24*time.Hour+23*time.Hour)))
	assert.False(t, ok)

	v, ok := MaxHold{}.Check(observe(p, 100, p.EntryTime.Add(10*24*time.Hour)))
	require.True(t, ok)
	assert.Equal(t, contracts.ExitReasonMaxHold, v.Reason)
	assert.Contains(t, v.Detail, "held 10 days")
}

func TestNewsInvalidationAfterPriceRules(t *testing.T) {
	p := position(100, 100, contracts.ExitParams{StopLossPct: 5})
	obs := observe(p, 101, p.EntryTime.Add(time.Hour))
	obs.News = &NewsFlag{Headline: "AAPL under SEC investigation"}

	v, ok := Evaluate(obs, DefaultRules())
	require.True(t, ok)
	assert.Equal(t, contracts.ExitReasonNewsInvalidation, v.Reason)
	assert.Equal(t, "AAPL under SEC investigation", v.Detail)

	obs.Price = 90
	v, ok = Evaluate(obs, DefaultRules())
	require.True(t, ok)
	assert.Equal(t, contracts.ExitReasonStopLoss, v.Reason)
}

func TestSessionForceClose(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	p := position(100, 100, contracts.ExitParams{StopLossPct: 1.5, MaxHoldDays: 1, Intraday: true})
	p.EntryTime = time.Date(2026, 10, 19, 10, 5, 0, 0, ny)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before cutoff", time.Date(2026, 10, 19, 15, 44, 0, 0, ny), false},
		{"at cutoff", time.Date(2026, 10, 19, 15, 45, 0, 0, ny), true},
		{"next morning", time.Date(2026, 10, 20, 9, 31, 0, 0, ny), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := SessionForceClose{}.Check(observe(p, 100, tt.now))
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, contracts.ExitReasonSessionForceClose, v.Reason)
			}
		})
	}

	swing := position(100, 100, contracts.ExitParams{StopLossPct: 5})
	_, ok := SessionForceClose{}.Check(observe(swing, 100, time.Date(2026, 10, 19, 15, 50, 0, 0, ny)))
	assert.False(t, ok)
}

func TestSessionCloseOverride(t *testing.T) {
	p := position(100, 100, contracts.ExitParams{StopLossPct: 2, Intraday: true, SessionClose: "15:30"})
	p.EntryTime = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	_, ok := SessionForceClose{}.Check(observe(p, 100, time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)))
	assert.True(t, ok)
}

func TestUnknownPriceSkipsPriceRules(t *testing.T) {
	p := position(100, 110, contracts.ExitParams{StopLossPct: 5, TrailingStopPct: 5, MaxHoldDays: 30})
	obs := Observation{Position: p, Now: p.EntryTime.Add(time.Hour)}

	_, ok := Evaluate(obs, DefaultRules())
	assert.False(t, ok)

	obs.Now = p.EntryTime.Add(31 * 24 * time.Hour)
	v, ok := Evaluate(obs, DefaultRules())
	require.True(t, ok)
	assert.Equal(t, contracts.ExitReasonMaxHold, v.Reason)
}
