package strategyconfig

import (
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
)

// Config는 주말 분석/평일 실행 전략의 전체 설정
// ⭐ SSOT: 가중치, 한도, NO-TRADE 기준값은 여기서만
type Config struct {
	Meta       Meta                              `yaml:"meta" json:"meta"`
	Scoring    Scoring                           `yaml:"scoring" json:"scoring"`
	Strategies map[contracts.StrategyID]Strategy `yaml:"strategies" json:"strategies"`
	NoTrade    NoTrade                           `yaml:"no_trade" json:"no_trade"`
	Sizing     Sizing                            `yaml:"sizing" json:"sizing"`
	Pipeline   Pipeline                          `yaml:"pipeline" json:"pipeline"`
	Execution  Execution                         `yaml:"execution" json:"execution"`
	News       News                              `yaml:"news" json:"news"`
}

// Meta 메타 정보
type Meta struct {
	Version      string `yaml:"version" json:"version"`
	Timezone     string `yaml:"timezone" json:"timezone"`
	SessionOpen  string `yaml:"session_open" json:"session_open"`   // HH:MM
	SessionClose string `yaml:"session_close" json:"session_close"` // HH:MM
}

// Scoring 공통 점수 설정
type Scoring struct {
	CandidateThreshold int `yaml:"candidate_threshold" json:"candidate_threshold"` // 1..5, default 3
}

// Strategy holds one variant's fixed table
type Strategy struct {
	Enabled      bool                 `yaml:"enabled" json:"enabled"`
	CheckTime    string               `yaml:"check_time" json:"check_time"` // HH:MM, exchange time
	MaxPositions int                  `yaml:"max_positions" json:"max_positions"`
	TopN         int                  `yaml:"top_n,omitempty" json:"top_n,omitempty"` // capped candidate slots, 0 = unlimited
	Weights      map[string]float64   `yaml:"weights" json:"weights"`                 // 합 = 1.0
	Exit         contracts.ExitParams `yaml:"exit" json:"exit"`
}

// NoTrade thresholds are frozen config, evaluated against live data
type NoTrade struct {
	MinAvgVolume float64 `yaml:"min_avg_volume" json:"min_avg_volume"`
	MaxGapPct    float64 `yaml:"max_gap_pct" json:"max_gap_pct"`
	MinMarketCap float64 `yaml:"min_market_cap" json:"min_market_cap"`
}

// Sizing position size = cash × MaxPositionPct × multiplier(score)
type Sizing struct {
	MaxPositionPct   float64         `yaml:"max_position_pct" json:"max_position_pct"`
	ScoreMultipliers map[int]float64 `yaml:"score_multipliers" json:"score_multipliers"`
	MaxDailyLossPct  float64         `yaml:"max_daily_loss_pct" json:"max_daily_loss_pct"`
}

// AfterFreezePolicy decides what a weekend re-run does on a frozen week
type AfterFreezePolicy string

const (
	AfterFreezeNoop  AfterFreezePolicy = "noop"
	AfterFreezeError AfterFreezePolicy = "error"
)

// Pipeline 주말 파이프라인 설정
type Pipeline struct {
	MaxAttempts    int               `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration     `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration     `yaml:"max_backoff" json:"max_backoff"`
	AfterFreeze    AfterFreezePolicy `yaml:"after_freeze" json:"after_freeze"`
	MaxInstruments int               `yaml:"max_instruments" json:"max_instruments"` // 0 = all
	Workers        int               `yaml:"workers" json:"workers"`                 // 수집 동시성
	Benchmark      string            `yaml:"benchmark" json:"benchmark"`
	SectorETFs     []string          `yaml:"sector_etfs" json:"sector_etfs"`
	IntradayList   []string          `yaml:"intraday_list" json:"intraday_list"` // gap fade / vwap / orb universe
}

// Execution 평일 실행 설정
type Execution struct {
	ScanTimeout       time.Duration `yaml:"scan_timeout" json:"scan_timeout"`
	QuoteAttempts     int           `yaml:"quote_attempts" json:"quote_attempts"`
	MonitorInterval   time.Duration `yaml:"monitor_interval" json:"monitor_interval"`
	SessionForceClose string        `yaml:"session_force_close" json:"session_force_close"` // HH:MM
}

// News 뉴스 키워드 설정
type News struct {
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	Material     []string      `yaml:"material" json:"material"`
	Positive     []string      `yaml:"positive" json:"positive"`
	Negative     []string      `yaml:"negative" json:"negative"`
}

// Strategy returns a variant's config and whether it is enabled
func (c *Config) Strategy(id contracts.StrategyID) (Strategy, bool) {
	s, ok := c.Strategies[id]
	return s, ok && s.Enabled
}

// EnabledStrategies returns enabled variants in the fixed order
func (c *Config) EnabledStrategies() []contracts.StrategyID {
	out := make([]contracts.StrategyID, 0, len(c.Strategies))
	for _, id := range contracts.AllStrategies {
		if _, ok := c.Strategy(id); ok {
			out = append(out, id)
		}
	}
	return out
}

// Caps returns the per-strategy open-position caps
func (c *Config) Caps() map[contracts.StrategyID]int {
	caps := make(map[contracts.StrategyID]int, len(c.Strategies))
	for id, s := range c.Strategies {
		caps[id] = s.MaxPositions
	}
	return caps
}

// Location resolves Meta.Timezone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Meta.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
