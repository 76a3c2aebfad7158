package strategyconfig

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-swing/internal/contracts"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Empty(t, Warn(cfg))

	assert.Equal(t, 3, cfg.Scoring.CandidateThreshold)
	assert.Len(t, cfg.EnabledStrategies(), len(contracts.AllStrategies))

	caps := cfg.Caps()
	assert.Equal(t, 10, caps[contracts.StrategyEarnings])
	assert.Equal(t, 3, caps[contracts.StrategySectorMomentum])
	assert.Equal(t, 2, caps[contracts.StrategyORB])
}

func TestLoad(t *testing.T) {
	path := "../../config/strategy/us_swing.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, yamlData)
	assert.Equal(t, "America/New_York", cfg.Meta.Timezone)
	assert.Equal(t, 500_000.0, cfg.NoTrade.MinAvgVolume)

	// 해시 생성
	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(cfg)
	assert.Equal(t, hash, hash2)
}

func TestParseKeepsDefaultsForMissingSections(t *testing.T) {
	cfg, err := Parse([]byte(`
scoring:
  candidate_threshold: 4
pipeline:
  max_attempts: 2
  initial_backoff: 1s
`))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Scoring.CandidateThreshold)
	assert.Equal(t, 2, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Pipeline.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.MaxBackoff)
	assert.Equal(t, 0.10, cfg.Sizing.MaxPositionPct)
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte(`
scoring:
  candidate_treshold: 4
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrConfiguration))
}

func TestValidateWeights(t *testing.T) {
	cfg := Default()
	s := cfg.Strategies[contracts.StrategyBreakout]
	s.Weights = map[string]float64{
		"proximity_to_high": 0.30,
		"volume_surge":      0.30,
		"momentum":          0.30,
		"sector_strength":   0.20,
	}
	cfg.Strategies[contracts.StrategyBreakout] = s

	err := Validate(cfg)
	require.Error(t, err)

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "strategies.breakout.weights", ve.Field)
	assert.True(t, errors.Is(err, contracts.ErrConfiguration))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"threshold too high", func(c *Config) { c.Scoring.CandidateThreshold = 6 }, "scoring.candidate_threshold"},
		{"bad session open", func(c *Config) { c.Meta.SessionOpen = "9:30" }, "meta.session_open"},
		{"session reversed", func(c *Config) { c.Meta.SessionOpen = "16:30" }, "meta"},
		{"unknown strategy", func(c *Config) {
			c.Strategies["momentum_v2"] = c.Strategies[contracts.StrategyBreakout]
		}, "strategies.momentum_v2"},
		{"intraday flag mismatch", func(c *Config) {
			s := c.Strategies[contracts.StrategyGapFade]
			s.Exit.Intraday = false
			c.Strategies[contracts.StrategyGapFade] = s
		}, "strategies.gap_fade.exit.intraday"},
		{"zero stop", func(c *Config) {
			s := c.Strategies[contracts.StrategyEarnings]
			s.Exit.StopLossPct = 0
			c.Strategies[contracts.StrategyEarnings] = s
		}, "strategies.earnings.exit.stop_loss_pct"},
		{"missing multiplier", func(c *Config) { delete(c.Sizing.ScoreMultipliers, 3) }, "sizing.score_multipliers[3]"},
		{"multipliers decreasing", func(c *Config) { c.Sizing.ScoreMultipliers[4] = 0.2 }, "sizing.score_multipliers"},
		{"enabled with zero cap", func(c *Config) {
			s := c.Strategies[contracts.StrategyVWAP]
			s.MaxPositions = 0
			c.Strategies[contracts.StrategyVWAP] = s
		}, "strategies.vwap.max_positions"},
		{"position pct > 1", func(c *Config) { c.Sizing.MaxPositionPct = 1.5 }, "sizing.max_position_pct"},
		{"after freeze", func(c *Config) { c.Pipeline.AfterFreeze = "retry" }, "pipeline.after_freeze"},
		{"quote attempts", func(c *Config) { c.Execution.QuoteAttempts = 0 }, "execution.quote_attempts"},
		{"no material keywords", func(c *Config) { c.News.Material = nil }, "news.material"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var ve ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestWarn(t *testing.T) {
	cfg := Default()
	cfg.Scoring.CandidateThreshold = 1
	cfg.Sizing.MaxPositionPct = 0.30

	codes := map[string]bool{}
	for _, w := range Warn(cfg) {
		codes[w.Code] = true
	}
	assert.True(t, codes["THRESHOLD_ZERO_SIZE"])
	assert.True(t, codes["LARGE_POSITION"])
}

func TestHashChangesWithConfig(t *testing.T) {
	a := Default()
	b := Default()
	b.Sizing.MaxPositionPct = 0.05

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}
