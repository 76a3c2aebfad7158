package strategyconfig

import (
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
)

// Default returns the built-in strategy table
func Default() *Config {
	return &Config{
		Meta: Meta{
			Version:      "1.0.0",
			Timezone:     "America/New_York",
			SessionOpen:  "09:30",
			SessionClose: "16:00",
		},
		Scoring: Scoring{CandidateThreshold: 3},
		Strategies: map[contracts.StrategyID]Strategy{
			contracts.StrategyEarnings: {
				Enabled:      true,
				CheckTime:    "09:35",
				MaxPositions: 10,
				Weights: map[string]float64{
					"gap_behavior":         0.25,
					"trend_consistency":    0.20,
					"analyst_sensitivity":  0.20,
					"volatility_alignment": 0.15,
					"sentiment_bias":       0.20,
				},
				Exit: contracts.ExitParams{StopLossPct: 8, TrailingStopPct: 5, MaxHoldDays: 10},
			},
			contracts.StrategySectorMomentum: {
				Enabled:      true,
				CheckTime:    "10:30",
				MaxPositions: 3,
				TopN:         3,
				Weights: map[string]float64{
					"momentum_rank":     0.30,
					"sma_trend":         0.25,
					"relative_strength": 0.25,
					"volume_trend":      0.20,
				},
				Exit: contracts.ExitParams{StopLossPct: 8, TrailingStopPct: 5, MaxHoldDays: 30},
			},
			contracts.StrategyMeanReversion: {
				Enabled:      true,
				CheckTime:    "09:45",
				MaxPositions: 5,
				Weights: map[string]float64{
					"rsi_extremity":  0.30,
					"trend_strength": 0.25,
					"drawdown_depth": 0.25,
					"volume_spike":   0.20,
				},
				Exit: contracts.ExitParams{StopLossPct: 5, MaxHoldDays: 5},
			},
			contracts.StrategyBreakout: {
				Enabled:      true,
				CheckTime:    "10:30",
				MaxPositions: 5,
				Weights: map[string]float64{
					"proximity_to_high": 0.30,
					"volume_surge":      0.25,
					"momentum":          0.25,
					"sector_strength":   0.20,
				},
				Exit: contracts.ExitParams{StopLossPct: 5, TrailingStopPct: 10, MaxHoldDays: 30},
			},
			contracts.StrategyGapFade: {
				Enabled:      true,
				CheckTime:    "09:31",
				MaxPositions: 3,
				Weights: map[string]float64{
					"gap_size":         0.30,
					"fill_rate":        0.25,
					"volume":           0.25,
					"market_direction": 0.20,
				},
				Exit: contracts.ExitParams{StopLossPct: 3, MaxHoldDays: 1, Intraday: true, SessionClose: "15:45"},
			},
			contracts.StrategyVWAP: {
				Enabled:      true,
				CheckTime:    "10:00",
				MaxPositions: 3,
				Weights: map[string]float64{
					"deviation":      0.35,
					"volume_profile": 0.25,
					"trend":          0.20,
					"market_regime":  0.20,
				},
				Exit: contracts.ExitParams{StopLossPct: 2, MaxHoldDays: 1, Intraday: true, SessionClose: "15:45"},
			},
			contracts.StrategyORB: {
				Enabled:      true,
				CheckTime:    "10:00",
				MaxPositions: 2,
				Weights: map[string]float64{
					"breakout_strength":   0.35,
					"volume_confirmation": 0.30,
					"trend_alignment":     0.35,
				},
				Exit: contracts.ExitParams{StopLossPct: 1.5, MaxHoldDays: 1, Intraday: true, SessionClose: "15:45"},
			},
		},
		NoTrade: NoTrade{
			MinAvgVolume: 500_000,
			MaxGapPct:    15.0,
			MinMarketCap: 500_000_000,
		},
		Sizing: Sizing{
			MaxPositionPct: 0.10,
			ScoreMultipliers: map[int]float64{
				5: 1.00,
				4: 0.75,
				3: 0.50,
				2: 0.25,
				1: 0.00,
			},
			MaxDailyLossPct: 0.03,
		},
		Pipeline: Pipeline{
			MaxAttempts:    4,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     30 * time.Second,
			AfterFreeze:    AfterFreezeNoop,
			MaxInstruments: 500,
			Workers:        8,
			Benchmark:      "SPY",
			SectorETFs: []string{
				"XLK", "XLF", "XLV", "XLE", "XLI", "XLY",
				"XLP", "XLU", "XLB", "XLRE", "XLC",
			},
			IntradayList: []string{
				"SPY", "QQQ", "AAPL", "MSFT", "NVDA", "TSLA", "AMD", "AMZN",
				"META", "GOOGL", "NFLX", "CRM", "ADBE", "JPM", "BAC",
			},
		},
		Execution: Execution{
			ScanTimeout:       2 * time.Minute,
			QuoteAttempts:     3,
			MonitorInterval:   30 * time.Second,
			SessionForceClose: "15:45",
		},
		News: News{
			PollInterval: 60 * time.Second,
			Material: []string{
				"earnings", "revenue", "guidance", "outlook", "forecast",
				"fda", "sec", "doj", "ftc", "ceo", "cfo", "merger", "acquisition",
				"buyout", "takeover", "spin-off", "restructuring", "bankruptcy",
			},
			Positive: []string{
				"beats", "exceeds", "raises", "upgraded", "outperform",
				"approval", "approved", "wins", "awarded", "record", "surge",
				"soars", "jumps", "rallies", "breakthrough", "partnership",
				"dividend", "buyback", "profit",
			},
			Negative: []string{
				"misses", "disappoints", "lowers", "downgraded", "underperform",
				"rejection", "rejected", "loses", "lawsuit", "investigation", "probe",
				"plunges", "crashes", "tumbles", "warning", "recall", "fraud",
				"layoffs", "cuts", "loss", "decline", "weak",
			},
		},
	}
}
