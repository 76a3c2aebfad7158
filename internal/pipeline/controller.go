package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/metrics"
	"github.com/wonny/aegis-swing/internal/scoring"
	"github.com/wonny/aegis-swing/internal/strategyconfig"
	"github.com/wonny/aegis-swing/pkg/logger"
	"github.com/wonny/aegis-swing/pkg/retry"
)

// =============================================================================
// Weekend Pipeline Controller
// ⭐ SSOT: COLLECTING → SCORING → PERSISTING → FROZEN (주 1회, FROZEN 이후 불변)
// =============================================================================

// State is a weekend pipeline state
type State string

const (
	StateCollecting State = "COLLECTING"
	StateScoring    State = "SCORING"
	StatePersisting State = "PERSISTING"
	StateFrozen     State = "FROZEN"
	StateAborted    State = "ABORTED"
)

// Deps are the collaborators of a weekend run
type Deps struct {
	Instruments contracts.InstrumentSource
	MarketData  contracts.MarketData
	Earnings    contracts.EarningsCalendar
	Store       contracts.UniverseStore
	Notifier    contracts.Notifier
	Metrics     *metrics.Registry
}

// RunOptions selects the week to prepare
type RunOptions struct {
	Week contracts.WeekKey // empty = next trading week of Now
	Now  time.Time         // zero = wall clock
}

// RunReport summarizes one run
type RunReport struct {
	RunID          string                          `json:"run_id"`
	Week           contracts.WeekKey               `json:"week"`
	State          State                           `json:"state"`
	Transitions    []State                         `json:"transitions"`
	Instruments    int                             `json:"instruments"`
	FetchFailures  []string                        `json:"fetch_failures,omitempty"`
	Signals        int                             `json:"signals"`
	Candidates     map[contracts.StrategyID]int    `json:"candidates"`
	StrategyErrors map[contracts.StrategyID]string `json:"strategy_errors,omitempty"`
	Skips          []scoring.Skip                  `json:"skips,omitempty"`
	Warnings       []string                        `json:"warnings,omitempty"`
	Skipped        bool                            `json:"skipped"` // 이미 FROZEN 인 주
	Error          string                          `json:"error,omitempty"`
	StartedAt      time.Time                       `json:"started_at"`
	Duration       time.Duration                   `json:"duration"`
}

// Controller runs the weekend pipeline
type Controller struct {
	cfg        *strategyconfig.Config
	deps       Deps
	framework  *scoring.Framework
	strategies []scoring.Strategy
	policy     retry.Policy
	logger     *logger.Logger
	now        func() time.Time

	runMu sync.Mutex // 동시에 한 번만 실행

	mu   sync.RWMutex
	last *RunReport
}

// NewController creates a pipeline controller over every enabled strategy
func NewController(cfg *strategyconfig.Config, deps Deps, log *logger.Logger) *Controller {
	log = log.WithField("module", "pipeline")
	return &Controller{
		cfg:        cfg,
		deps:       deps,
		framework:  scoring.NewFramework(cfg, log),
		strategies: scoring.BuildStrategies(cfg),
		policy:     PolicyFrom(cfg.Pipeline),
		logger:     log,
		now:        time.Now,
	}
}

// WithStrategies replaces the strategy set (tests, partial runs)
func (c *Controller) WithStrategies(strategies ...scoring.Strategy) *Controller {
	c.strategies = strategies
	return c
}

// LastReport returns the most recent run report
func (c *Controller) LastReport() *RunReport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Run executes one weekend pass.
// 이미 FROZEN 인 주: after_freeze=noop 이면 Skipped 리포트, error 이면 ErrImmutableState
func (c *Controller) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	loc := c.cfg.Location()
	now := opts.Now
	if now.IsZero() {
		now = c.now()
	}
	now = now.In(loc)

	week, monday, friday := contracts.NextTradingWeek(now)
	if opts.Week != "" {
		var err error
		week = opts.Week
		if monday, friday, err = week.Range(loc); err != nil {
			return nil, err
		}
	}

	report := &RunReport{
		RunID:          uuid.NewString(),
		Week:           week,
		Candidates:     make(map[contracts.StrategyID]int),
		StrategyErrors: make(map[contracts.StrategyID]string),
		StartedAt:      c.now(),
	}
	log := c.logger.WithFields(map[string]interface{}{
		"run_id": report.RunID,
		"week":   week,
	})
	defer c.remember(report)

	log.WithFields(map[string]interface{}{
		"monday":     monday.Format("2006-01-02"),
		"strategies": len(c.strategies),
	}).Info("Starting weekend pipeline")

	// 1. FROZEN 여부 확인
	existing, err := retry.Do(ctx, c.policy, log, "load-universe", func(ctx context.Context) (*contracts.WeeklyUniverse, error) {
		return c.deps.Store.LoadUniverse(ctx, week)
	})
	switch {
	case err == nil && existing.Frozen:
		report.State = StateFrozen
		report.Instruments = len(existing.Instruments)
		report.Signals = len(existing.Signals)
		if c.cfg.Pipeline.AfterFreeze == strategyconfig.AfterFreezeError {
			violation := contracts.ImmutableStateViolation(week)
			report.Error = violation.Error()
			log.WithError(violation).Error("Weekend pipeline invoked after freeze")
			return report, violation
		}
		report.Skipped = true
		log.Info("Week already frozen, nothing to do")
		return report, nil
	case err != nil && !errors.Is(err, contracts.ErrNotFound):
		return c.abort(ctx, report, log, fmt.Errorf("load universe: %w", err))
	}

	// 2. COLLECTING
	c.transition(report, log, StateCollecting)
	u, mkt, selections, data, err := c.collect(ctx, report, log, week, monday, friday, now)
	if err != nil {
		return c.abort(ctx, report, log, err)
	}
	// checkpoint: 수집 결과는 중단되더라도 보존
	if err := c.save(ctx, log, u); err != nil {
		return c.abort(ctx, report, log, err)
	}

	// 3. SCORING
	c.transition(report, log, StateScoring)
	signals, err := c.score(ctx, report, log, mkt, selections, data)
	if err != nil {
		return c.abort(ctx, report, log, err)
	}

	// 4. PERSISTING
	c.transition(report, log, StatePersisting)
	u.Signals = signals
	report.Signals = len(signals)
	if err := c.save(ctx, log, u); err != nil {
		return c.abort(ctx, report, log, err)
	}

	// 5. FROZEN
	frozenAt := c.now()
	u.Frozen = true
	u.FrozenAt = &frozenAt
	if err := c.save(ctx, log, u); err != nil {
		return c.abort(ctx, report, log, err)
	}
	c.transition(report, log, StateFrozen)
	report.Duration = c.now().Sub(report.StartedAt)

	c.deps.Metrics.ObservePipelineRun(string(StateFrozen), report.Duration)
	for _, id := range c.cfg.EnabledStrategies() {
		c.deps.Metrics.SetCandidates(string(id), report.Candidates[id])
	}

	log.WithFields(map[string]interface{}{
		"instruments":     report.Instruments,
		"signals":         report.Signals,
		"strategy_errors": len(report.StrategyErrors),
		"duration_ms":     report.Duration.Milliseconds(),
	}).Info("Weekend pipeline frozen")

	c.notify(ctx, contracts.CategoryUniverse, fmt.Sprintf("Week %s frozen: %d instruments, %d signals", week, report.Instruments, report.Signals))
	c.notify(ctx, contracts.CategoryCandidates, candidateSummary(u, c.cfg))
	if len(report.StrategyErrors) > 0 {
		c.notify(ctx, contracts.CategoryError, fmt.Sprintf("Week %s: %d strategies failed: %s", week, len(report.StrategyErrors), strategyErrorSummary(report.StrategyErrors)))
	}

	return report, nil
}

// collect loads the instrument set, earnings calendar and per-symbol data
func (c *Controller) collect(
	ctx context.Context,
	report *RunReport,
	log *logger.Logger,
	week contracts.WeekKey,
	monday, friday, now time.Time,
) (*contracts.WeeklyUniverse, *scoring.MarketContext, map[contracts.StrategyID][]contracts.Instrument, map[string]fetchResult, error) {
	instruments, err := retry.Do(ctx, c.policy, log, "list-instruments", c.deps.Instruments.ListInstruments)
	if err != nil {
		return nil, nil, nil, nil, contracts.DataUnavailable("list instruments", err)
	}
	tradeable := c.tradeable(instruments)
	if len(tradeable) == 0 {
		return nil, nil, nil, nil, contracts.DataUnavailable("collect", errors.New("no tradeable instruments"))
	}

	// 실적 일정 실패는 부분 데이터로 계속 진행
	var events []contracts.EarningsEvent
	if c.deps.Earnings != nil {
		endOfFriday := friday.Add(24*time.Hour - time.Nanosecond)
		events, err = retry.Do(ctx, c.policy, log, "earnings-calendar", func(ctx context.Context) ([]contracts.EarningsEvent, error) {
			return c.deps.Earnings.EarningsBetween(ctx, monday, endOfFriday)
		})
		if err != nil {
			log.WithError(err).Warn("Earnings calendar unavailable, continuing without it")
			report.Warnings = append(report.Warnings, "earnings calendar unavailable: "+err.Error())
			events = nil
		}
	}

	known := make(map[string]bool, len(tradeable))
	for _, inst := range tradeable {
		known[inst.Symbol] = true
	}
	earnings := make(map[string]contracts.EarningsEvent)
	var weekEvents []contracts.EarningsEvent
	for _, e := range events {
		if known[e.Symbol] {
			earnings[e.Symbol] = e
			weekEvents = append(weekEvents, e)
		}
	}

	mkt := &scoring.MarketContext{
		AsOf:         now,
		Week:         week,
		SectorBars:   make(map[string][]contracts.Bar),
		Earnings:     earnings,
		SectorETFs:   c.cfg.Pipeline.SectorETFs,
		IntradayList: c.cfg.Pipeline.IntradayList,
	}

	// 전략별 대상 선정 → 종목별 최대 window 로 한 번만 조회
	reqs := make(requestSet)
	selections := make(map[contracts.StrategyID][]contracts.Instrument, len(c.strategies))
	for _, s := range c.strategies {
		sel := s.Select(tradeable, mkt)
		selections[s.ID()] = sel
		needProfile := false
		if p, ok := s.(scoring.ProfileUser); ok {
			needProfile = p.NeedsProfile()
		}
		for _, inst := range sel {
			reqs.add(inst.Symbol, s.Window(), needProfile)
		}
	}
	reqs.add(c.cfg.Pipeline.Benchmark, contracts.Window1Y, false)
	for _, etf := range c.cfg.Pipeline.SectorETFs {
		reqs.add(etf, contracts.Window3M, false)
	}

	col := &collector{
		data:    c.deps.MarketData,
		policy:  c.policy,
		workers: c.cfg.Pipeline.Workers,
		logger:  log,
	}
	data := col.fetchAll(ctx, reqs.sorted())
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, nil, err
	}

	if r, ok := data[c.cfg.Pipeline.Benchmark]; ok && r.Err == nil {
		mkt.Benchmark = r.Bars
	} else {
		report.Warnings = append(report.Warnings, "benchmark history unavailable")
	}
	for _, etf := range c.cfg.Pipeline.SectorETFs {
		if r, ok := data[etf]; ok && r.Err == nil {
			mkt.SectorBars[etf] = r.Bars
		}
	}

	failed := make(map[string]bool)
	var noProfile []string
	for sym, r := range data {
		if r.Err != nil {
			failed[sym] = true
			report.FetchFailures = append(report.FetchFailures, sym)
		} else if r.ProfileErr != nil {
			noProfile = append(noProfile, sym)
		}
	}
	sort.Strings(report.FetchFailures)
	if len(noProfile) > 0 {
		sort.Strings(noProfile)
		report.Warnings = append(report.Warnings, "profile unavailable: "+strings.Join(noProfile, ", "))
	}

	// universe = 거래 가능 종목 ∪ 전략이 선정한 종목 (ETF 등), 수집 실패 제외
	seen := make(map[string]bool)
	var universe []contracts.Instrument
	addInstrument := func(inst contracts.Instrument) {
		if seen[inst.Symbol] || failed[inst.Symbol] {
			return
		}
		seen[inst.Symbol] = true
		if inst.MarketCapBucket == "" {
			inst.MarketCapBucket = contracts.BucketForMarketCap(inst.MarketCap)
		}
		universe = append(universe, inst)
	}
	for _, inst := range tradeable {
		addInstrument(inst)
	}
	for _, s := range c.strategies {
		for _, inst := range selections[s.ID()] {
			addInstrument(inst)
		}
	}
	sort.Slice(universe, func(i, j int) bool { return universe[i].Symbol < universe[j].Symbol })

	if len(universe) == 0 {
		return nil, nil, nil, nil, contracts.DataUnavailable("collect", errors.New("zero instruments available after collection"))
	}
	report.Instruments = len(universe)

	hash, err := strategyconfig.Hash(c.cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	u := &contracts.WeeklyUniverse{
		WeekKey:     week,
		Instruments: universe,
		Earnings:    weekEvents,
		ConfigHash:  hash,
		RunID:       report.RunID,
	}

	log.WithFields(map[string]interface{}{
		"listed":         len(instruments),
		"tradeable":      len(tradeable),
		"universe":       len(universe),
		"earnings":       len(weekEvents),
		"fetch_failures": len(report.FetchFailures),
	}).Info("Collection completed")

	return u, mkt, selections, data, nil
}

// tradeable filters the broker list and applies MaxInstruments (largest market cap first)
func (c *Controller) tradeable(instruments []contracts.Instrument) []contracts.Instrument {
	out := make([]contracts.Instrument, 0, len(instruments))
	for _, inst := range instruments {
		if inst.Tradeable && strings.TrimSpace(inst.Symbol) != "" {
			out = append(out, inst)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MarketCap != out[j].MarketCap {
			return out[i].MarketCap > out[j].MarketCap
		}
		return out[i].Symbol < out[j].Symbol
	})
	if limit := c.cfg.Pipeline.MaxInstruments; limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// score runs every strategy over its own subset; failures are isolated
func (c *Controller) score(
	ctx context.Context,
	report *RunReport,
	log *logger.Logger,
	mkt *scoring.MarketContext,
	selections map[contracts.StrategyID][]contracts.Instrument,
	data map[string]fetchResult,
) ([]contracts.StrategySignal, error) {
	var signals []contracts.StrategySignal

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			log.WithField("strategy", s.ID()).Warn("Scoring cancelled, remaining strategies not run")
			return nil, err
		}

		needProfile := false
		if p, ok := s.(scoring.ProfileUser); ok {
			needProfile = p.NeedsProfile()
		}

		inputs := make([]scoring.Input, 0, len(selections[s.ID()]))
		for _, inst := range selections[s.ID()] {
			r, ok := data[inst.Symbol]
			if !ok || r.Err != nil {
				report.Skips = append(report.Skips, scoring.Skip{Strategy: s.ID(), Symbol: inst.Symbol, Reason: "data-unavailable"})
				continue
			}
			if needProfile && r.ProfileErr != nil {
				report.Skips = append(report.Skips, scoring.Skip{Strategy: s.ID(), Symbol: inst.Symbol, Reason: "profile-unavailable"})
				continue
			}
			inputs = append(inputs, scoring.Input{Instrument: inst, Bars: r.Bars, Profile: r.Profile, Market: mkt})
		}

		res := c.framework.Run(ctx, s, inputs)
		if res.Err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			report.StrategyErrors[s.ID()] = res.Err.Error()
			c.deps.Metrics.RecordStrategyFailure(string(s.ID()))
			continue
		}

		for _, sig := range res.Signals {
			c.deps.Metrics.RecordSignal(string(sig.Strategy), fmt.Sprintf("%d", sig.Score))
		}
		report.Skips = append(report.Skips, res.Skips...)
		report.Candidates[s.ID()] = res.Candidates()
		signals = append(signals, res.Signals...)
	}

	return signals, nil
}

func (c *Controller) save(ctx context.Context, log *logger.Logger, u *contracts.WeeklyUniverse) error {
	_, err := retry.Do(ctx, c.policy, log, "save-universe", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.deps.Store.SaveUniverse(ctx, u)
	})
	if err != nil {
		return fmt.Errorf("save universe %s: %w", u.WeekKey, err)
	}
	return nil
}

func (c *Controller) transition(report *RunReport, log *logger.Logger, to State) {
	from := report.State
	report.State = to
	report.Transitions = append(report.Transitions, to)
	log.WithFields(map[string]interface{}{
		"from": from,
		"to":   to,
	}).Info("Pipeline state transition")
}

// abort ends the run as ABORTED; already persisted data stays
func (c *Controller) abort(ctx context.Context, report *RunReport, log *logger.Logger, err error) (*RunReport, error) {
	c.transition(report, log, StateAborted)
	report.Error = err.Error()
	report.Duration = c.now().Sub(report.StartedAt)

	log.WithError(err).Error("Weekend pipeline aborted")
	c.deps.Metrics.ObservePipelineRun(string(StateAborted), report.Duration)
	c.notify(context.WithoutCancel(ctx), contracts.CategoryError, fmt.Sprintf("Weekend run for %s aborted: %v", report.Week, err))
	return report, err
}

func (c *Controller) notify(ctx context.Context, category contracts.NotifyCategory, msg string) {
	if c.deps.Notifier == nil {
		return
	}
	if err := c.deps.Notifier.Notify(ctx, category, msg); err != nil {
		c.logger.WithError(err).WithField("category", category).Warn("Notification failed")
	}
}

func (c *Controller) remember(report *RunReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = report
}

func candidateSummary(u *contracts.WeeklyUniverse, cfg *strategyconfig.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Candidates for %s", u.WeekKey)
	for _, id := range cfg.EnabledStrategies() {
		cands := u.Candidates(id, cfg.Scoring.CandidateThreshold)
		fmt.Fprintf(&b, "\n%s (%d):", id, len(cands))
		for i, s := range cands {
			if i == 5 {
				fmt.Fprintf(&b, " +%d", len(cands)-5)
				break
			}
			fmt.Fprintf(&b, " %s(%d)", s.Symbol, s.Score)
		}
	}
	return b.String()
}

func strategyErrorSummary(errs map[contracts.StrategyID]string) string {
	ids := make([]string, 0, len(errs))
	for id := range errs {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}
