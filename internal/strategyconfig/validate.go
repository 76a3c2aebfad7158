package strategyconfig

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, contracts.ErrConfiguration) match
func (e ValidationError) Unwrap() error {
	return contracts.ErrConfiguration
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

var hhmmRe = regexp.MustCompile(`^\d{2}:\d{2}$`)

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.Version == "" {
		return ValidationError{"meta.version", "required"}
	}
	if _, err := time.LoadLocation(cfg.Meta.Timezone); err != nil {
		return ValidationError{"meta.timezone", err.Error()}
	}
	if err := validateHHMM(cfg.Meta.SessionOpen); err != nil {
		return ValidationError{"meta.session_open", err.Error()}
	}
	if err := validateHHMM(cfg.Meta.SessionClose); err != nil {
		return ValidationError{"meta.session_close", err.Error()}
	}
	openT, _ := time.Parse("15:04", cfg.Meta.SessionOpen)
	closeT, _ := time.Parse("15:04", cfg.Meta.SessionClose)
	if !openT.Before(closeT) {
		return ValidationError{"meta", "session_open must be before session_close"}
	}

	// === Scoring ===
	if t := cfg.Scoring.CandidateThreshold; t < 1 || t > 5 {
		return ValidationError{"scoring.candidate_threshold", "must be in [1, 5]"}
	}

	// === Strategies ===
	if len(cfg.Strategies) == 0 {
		return ValidationError{"strategies", "at least one strategy required"}
	}
	ids := make([]string, 0, len(cfg.Strategies))
	for id := range cfg.Strategies {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, raw := range ids {
		id := contracts.StrategyID(raw)
		s := cfg.Strategies[id]
		field := "strategies." + raw
		if !id.Valid() {
			return ValidationError{field, "unknown strategy"}
		}
		if err := validateHHMM(s.CheckTime); err != nil {
			return ValidationError{field + ".check_time", err.Error()}
		}
		if s.MaxPositions < 0 || (s.Enabled && s.MaxPositions == 0) {
			return ValidationError{field + ".max_positions", "must be > 0 for an enabled strategy"}
		}
		if s.TopN < 0 {
			return ValidationError{field + ".top_n", "must be >= 0"}
		}
		if len(s.Weights) == 0 {
			return ValidationError{field + ".weights", "required"}
		}
		weights := make([]float64, 0, len(s.Weights))
		for name, w := range s.Weights {
			if w < 0 {
				return ValidationError{field + ".weights." + name, "must be >= 0"}
			}
			weights = append(weights, w)
		}
		if err := validateWeightsSum(weights, 1.0, 1e-6); err != nil {
			return ValidationError{field + ".weights", err.Error()}
		}
		if s.Exit.StopLossPct <= 0 || s.Exit.StopLossPct >= 100 {
			return ValidationError{field + ".exit.stop_loss_pct", "must be in (0, 100)"}
		}
		if s.Exit.TrailingStopPct < 0 || s.Exit.TrailingStopPct >= 100 {
			return ValidationError{field + ".exit.trailing_stop_pct", "must be in [0, 100)"}
		}
		if s.Exit.MaxHoldDays < 1 {
			return ValidationError{field + ".exit.max_hold_days", "must be >= 1"}
		}
		if s.Exit.Intraday != id.IsIntraday() {
			return ValidationError{field + ".exit.intraday", fmt.Sprintf("must be %v", id.IsIntraday())}
		}
		if s.Exit.Intraday {
			if err := validateHHMM(s.Exit.SessionClose); err != nil {
				return ValidationError{field + ".exit.session_close", err.Error()}
			}
		}
	}

	// === NoTrade ===
	if cfg.NoTrade.MinAvgVolume < 0 {
		return ValidationError{"no_trade.min_avg_volume", "must be >= 0"}
	}
	if cfg.NoTrade.MaxGapPct <= 0 {
		return ValidationError{"no_trade.max_gap_pct", "must be > 0"}
	}
	if cfg.NoTrade.MinMarketCap < 0 {
		return ValidationError{"no_trade.min_market_cap", "must be >= 0"}
	}

	// === Sizing ===
	if err := validatePctRange(cfg.Sizing.MaxPositionPct, "sizing.max_position_pct"); err != nil {
		return err
	}
	if err := validatePctRange(cfg.Sizing.MaxDailyLossPct, "sizing.max_daily_loss_pct"); err != nil {
		return err
	}
	for score := 1; score <= 5; score++ {
		m, ok := cfg.Sizing.ScoreMultipliers[score]
		if !ok {
			return ValidationError{fmt.Sprintf("sizing.score_multipliers[%d]", score), "required"}
		}
		if err := validatePctRange(m, fmt.Sprintf("sizing.score_multipliers[%d]", score)); err != nil {
			return err
		}
		if score > 1 && m < cfg.Sizing.ScoreMultipliers[score-1] {
			return ValidationError{"sizing.score_multipliers", "must be non-decreasing in score"}
		}
	}

	// === Pipeline ===
	if cfg.Pipeline.MaxAttempts < 1 {
		return ValidationError{"pipeline.max_attempts", "must be >= 1"}
	}
	if cfg.Pipeline.Workers < 1 {
		return ValidationError{"pipeline.workers", "must be >= 1"}
	}
	if cfg.Pipeline.InitialBackoff < 0 || cfg.Pipeline.MaxBackoff < cfg.Pipeline.InitialBackoff {
		return ValidationError{"pipeline.backoff", "must satisfy 0 <= initial_backoff <= max_backoff"}
	}
	switch cfg.Pipeline.AfterFreeze {
	case AfterFreezeNoop, AfterFreezeError:
	default:
		return ValidationError{"pipeline.after_freeze", "must be noop or error"}
	}
	if cfg.Pipeline.Benchmark == "" {
		return ValidationError{"pipeline.benchmark", "required"}
	}

	// === Execution ===
	if cfg.Execution.QuoteAttempts < 1 {
		return ValidationError{"execution.quote_attempts", "must be >= 1"}
	}
	if cfg.Execution.ScanTimeout <= 0 {
		return ValidationError{"execution.scan_timeout", "must be > 0"}
	}
	if cfg.Execution.MonitorInterval <= 0 {
		return ValidationError{"execution.monitor_interval", "must be > 0"}
	}
	if err := validateHHMM(cfg.Execution.SessionForceClose); err != nil {
		return ValidationError{"execution.session_force_close", err.Error()}
	}

	// === News ===
	if cfg.News.PollInterval <= 0 {
		return ValidationError{"news.poll_interval", "must be > 0"}
	}
	if len(cfg.News.Material) == 0 {
		return ValidationError{"news.material", "required"}
	}

	return nil
}

// Warn checks recommended (non-fatal) constraints
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if len(cfg.EnabledStrategies()) == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_ENABLED_STRATEGY",
			Message: "all strategies disabled; weekday scans will be no-ops",
		})
	}

	if cfg.Sizing.ScoreMultipliers[cfg.Scoring.CandidateThreshold] == 0 {
		warnings = append(warnings, Warning{
			Code:    "THRESHOLD_ZERO_SIZE",
			Message: fmt.Sprintf("candidate_threshold=%d maps to a zero size multiplier", cfg.Scoring.CandidateThreshold),
		})
	}

	if cfg.Sizing.MaxPositionPct > 0.25 {
		warnings = append(warnings, Warning{
			Code:    "LARGE_POSITION",
			Message: fmt.Sprintf("max_position_pct=%.2f > 0.25", cfg.Sizing.MaxPositionPct),
		})
	}

	return warnings
}

func validateHHMM(s string) error {
	if !hhmmRe.MatchString(s) {
		return errors.New("must be HH:MM format")
	}
	_, err := time.Parse("15:04", s)
	return err
}

func validateWeightsSum(weights []float64, target float64, epsilon float64) error {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-target) > epsilon {
		return fmt.Errorf("sum=%.6f, expected %.6f", sum, target)
	}
	return nil
}

func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, "must be in [0, 1]"}
	}
	return nil
}
