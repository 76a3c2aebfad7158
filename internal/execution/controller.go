package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/metrics"
	"github.com/wonny/aegis-swing/internal/portfolio"
	"github.com/wonny/aegis-swing/internal/strategyconfig"
	"github.com/wonny/aegis-swing/pkg/logger"
	"github.com/wonny/aegis-swing/pkg/retry"
)

// =============================================================================
// Weekday Execution Controller
// ⭐ SSOT: FROZEN universe 만 읽음. 재분석(스코어링) 호출 금지
// =============================================================================

// Skip reasons (NO-TRADE rule names are in no_trade.go)
const (
	ReasonNotTradeable        = "not-tradeable"
	ReasonLiveDataUnavailable = "live-data-unavailable"
	ReasonZeroMultiplier      = "zero-multiplier"
	ReasonZeroSize            = "zero-size"
	ReasonBrokerRejection     = "broker-rejection"
	ReasonBrokerError         = "broker-error"
	ReasonDailyLossLimit      = "daily-loss-limit"
	ReasonDryRun              = "dry-run"
	ReasonEntryTriggerNotMet  = reasonNoTrigger
)

// Outcome of one candidate evaluation
type Outcome string

const (
	OutcomeOrdered Outcome = "ordered"
	OutcomePending Outcome = "pending" // 주문이 브로커에서 아직 working, 슬롯 유지
	OutcomeSkipped Outcome = "skipped"
)

// Decision is the result for one candidate
type Decision struct {
	Strategy   contracts.StrategyID   `json:"strategy"`
	Symbol     string                 `json:"symbol"`
	Score      int                    `json:"score"`
	Outcome    Outcome                `json:"outcome"`
	Reasons    []string               `json:"reasons,omitempty"`
	Detail     string                 `json:"detail,omitempty"`
	Notional   float64                `json:"notional,omitempty"`
	Order      *contracts.OrderResult `json:"order,omitempty"`
	PositionID string                 `json:"position_id,omitempty"`
}

// ScanReport summarizes one scheduled scan window
type ScanReport struct {
	Strategy  contracts.StrategyID `json:"strategy"`
	Week      contracts.WeekKey    `json:"week"`
	Orders    []Decision           `json:"orders"`
	Skips     []Decision           `json:"skips"`
	Deferred  []string             `json:"deferred,omitempty"` // 타임아웃으로 미평가, 다음 윈도우로 이월
	Errors    []string             `json:"errors,omitempty"`
	StartedAt time.Time            `json:"started_at"`
	Duration  time.Duration        `json:"duration"`
}

// Deps are the collaborators of weekday execution
type Deps struct {
	Broker     contracts.Broker
	MarketData contracts.MarketData
	Book       *portfolio.Book
	Notifier   contracts.Notifier
	Metrics    *metrics.Registry
}

// Controller executes scans against one frozen universe
type Controller struct {
	universe *contracts.WeeklyUniverse
	cfg      *strategyconfig.Config
	deps     Deps
	quotes   retry.Policy
	dryRun   bool
	logger   *logger.Logger
	now      func() time.Time
}

// Option configures a Controller
type Option func(*Controller)

// WithDryRun evaluates candidates without sending orders
func WithDryRun(dryRun bool) Option {
	return func(c *Controller) { c.dryRun = dryRun }
}

// WithClock overrides the wall clock (tests)
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithQuotePolicy overrides the live quote retry policy
func WithQuotePolicy(p retry.Policy) Option {
	return func(c *Controller) { c.quotes = p }
}

// NewController binds execution to a frozen universe; anything else is refused
func NewController(universe *contracts.WeeklyUniverse, cfg *strategyconfig.Config, deps Deps, log *logger.Logger, opts ...Option) (*Controller, error) {
	if universe == nil {
		return nil, fmt.Errorf("%w: no universe", contracts.ErrImmutableState)
	}
	if !universe.Frozen {
		return nil, fmt.Errorf("%w: week %s is not frozen", contracts.ErrImmutableState, universe.WeekKey)
	}

	c := &Controller{
		universe: universe.Clone(),
		cfg:      cfg,
		deps:     deps,
		quotes: retry.Policy{
			MaxAttempts:    cfg.Execution.QuoteAttempts,
			InitialBackoff: 250 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Retryable:      contracts.IsRetryable,
		},
		logger: log.WithFields(map[string]interface{}{
			"module": "execution",
			"week":   universe.WeekKey,
		}),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Week returns the bound week
func (c *Controller) Week() contracts.WeekKey {
	return c.universe.WeekKey
}

// RunScan evaluates every candidate of one strategy in scoring order.
// 스캔 타임아웃 이후 남은 후보는 Deferred (즉시 재시도하지 않음)
func (c *Controller) RunScan(ctx context.Context, strategy contracts.StrategyID) (*ScanReport, error) {
	stratCfg, ok := c.cfg.Strategy(strategy)
	if !ok {
		return nil, fmt.Errorf("%w: strategy %s is not enabled", contracts.ErrConfiguration, strategy)
	}

	if c.cfg.Execution.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Execution.ScanTimeout)
		defer cancel()
	}

	report := &ScanReport{
		Strategy:  strategy,
		Week:      c.universe.WeekKey,
		StartedAt: c.now(),
	}
	log := c.logger.WithField("strategy", strategy)

	candidates := c.universe.Candidates(strategy, c.cfg.Scoring.CandidateThreshold)
	log.WithFields(map[string]interface{}{
		"candidates":    len(candidates),
		"max_positions": stratCfg.MaxPositions,
		"dry_run":       c.dryRun,
	}).Info("Starting scan")

	cash, err := retry.Do(ctx, c.quotes, log, "account-cash", c.deps.Broker.GetAccountCash)
	if err != nil {
		report.Errors = append(report.Errors, "account cash: "+err.Error())
		for _, sig := range candidates {
			report.Deferred = append(report.Deferred, sig.Symbol)
		}
		return c.finish(ctx, report, log), nil
	}
	// 일일 손실 한도 기준: 세션 시작 평가금액 (스냅샷 없으면 현재 현금)
	equity := c.deps.Book.SessionEquity()
	if equity <= 0 {
		equity = cash
	}

	for i, sig := range candidates {
		if ctx.Err() != nil {
			for _, rest := range candidates[i:] {
				report.Deferred = append(report.Deferred, rest.Symbol)
			}
			log.WithField("deferred", len(candidates)-i).Warn("Scan timeout, deferring remaining candidates")
			break
		}

		d := c.evaluate(ctx, log, sig, &cash, equity)
		if ctx.Err() != nil && d.Outcome == OutcomeSkipped && hasReason(d, ReasonLiveDataUnavailable) {
			// 타임아웃으로 시세를 못 받은 후보도 이월
			report.Deferred = append(report.Deferred, sig.Symbol)
			continue
		}
		c.deps.Metrics.RecordScanDecision(string(strategy), decisionLabel(d))
		if d.Outcome != OutcomeSkipped {
			report.Orders = append(report.Orders, d)
		} else {
			report.Skips = append(report.Skips, d)
		}
	}

	return c.finish(ctx, report, log), nil
}

// evaluate runs eligibility, NO-TRADE, trigger, sizing and order placement for one candidate
func (c *Controller) evaluate(ctx context.Context, log *logger.Logger, sig contracts.StrategySignal, cash *float64, equity float64) Decision {
	inst, ok := c.universe.Instrument(sig.Symbol)
	if !ok || !inst.Tradeable {
		return c.skipped(log, sig, "", ReasonNotTradeable)
	}

	if limit := equity * c.cfg.Sizing.MaxDailyLossPct; limit > 0 && -c.deps.Book.RealizedPnL() >= limit {
		return c.skipped(log, sig, "", ReasonDailyLossLimit)
	}

	// 1. 슬롯 예약 (전략별 상한, 중복/청산중/당일청산 차단)
	// 심볼 락은 예약 순간에만. 시세/주문 대기 중에 청산 패스를 막지 않음
	var r *portfolio.Reservation
	err := c.deps.Book.WithSymbol(sig.Symbol, func() error {
		var err error
		r, err = c.deps.Book.Reserve(sig.Strategy, sig.Symbol)
		return err
	})
	if err != nil {
		var re *portfolio.ReserveError
		if errors.As(err, &re) {
			return c.skipped(log, sig, "", string(re.Reason))
		}
		return c.skipped(log, sig, err.Error(), ReasonNotTradeable)
	}
	return c.enter(ctx, log, sig, inst, r, cash)
}

func (c *Controller) enter(ctx context.Context, log *logger.Logger, sig contracts.StrategySignal, inst contracts.Instrument, r *portfolio.Reservation, cash *float64) Decision {
	kept := false
	defer func() {
		if !kept {
			c.deps.Book.Release(r)
		}
	}()

	// 2. 실시간 시세 (제한된 재시도 후 skip)
	quote, err := retry.Do(ctx, c.quotes, log, "quote:"+sig.Symbol, func(ctx context.Context) (*contracts.Quote, error) {
		return c.deps.MarketData.GetQuote(ctx, sig.Symbol)
	})
	if err != nil {
		return c.skipped(log, sig, err.Error(), ReasonLiveDataUnavailable)
	}
	if quote == nil || quote.Price <= 0 {
		return c.skipped(log, sig, "empty quote", ReasonLiveDataUnavailable)
	}

	// 3. NO-TRADE
	if v := EvaluateNoTrade(quote, inst, c.cfg.NoTrade); v.Blocked() {
		c.notify(ctx, contracts.CategoryNoTrade, fmt.Sprintf("%s %s: NO-TRADE %s", sig.Strategy, sig.Symbol, strings.Join(v.Rules, ", ")))
		return c.skipped(log, sig, "", v.Rules...)
	}

	// 4. 진입 트리거
	if ok, detail := EntryTrigger(sig.Strategy, quote); !ok {
		return c.skipped(log, sig, detail, ReasonEntryTriggerNotMet)
	}

	// 5. 사이징
	multiplier := SizeMultiplier(sig.Score, c.cfg.Sizing.ScoreMultipliers)
	if multiplier <= 0 {
		return c.skipped(log, sig, "", ReasonZeroMultiplier)
	}
	notional := PositionNotional(*cash, c.cfg.Sizing.MaxPositionPct, multiplier)
	if !notional.IsPositive() {
		return c.skipped(log, sig, "", ReasonZeroSize)
	}
	notionalF := notional.InexactFloat64()

	if c.dryRun {
		return c.skipped(log, sig, fmt.Sprintf("would buy $%s at ~%.2f", notional.StringFixed(2), quote.Price), ReasonDryRun)
	}

	// 6. 주문 (거절은 재시도하지 않음)
	intent := contracts.OrderIntent{
		ClientOrderID: uuid.NewString(),
		Symbol:        sig.Symbol,
		Strategy:      sig.Strategy,
		Side:          contracts.OrderSideBuy,
		Notional:      notionalF,
		CreatedAt:     c.now(),
	}
	res, err := c.deps.Broker.PlaceOrder(ctx, intent)
	switch {
	case err != nil && errors.Is(err, contracts.ErrBrokerRejection):
		c.deps.Metrics.RecordOrder("buy", string(contracts.FillRejected))
		return c.skipped(log, sig, err.Error(), ReasonBrokerRejection)
	case err != nil:
		c.deps.Metrics.RecordOrder("buy", "error")
		c.notify(ctx, contracts.CategoryError, fmt.Sprintf("Order for %s failed: %v", sig.Symbol, err))
		return c.skipped(log, sig, err.Error(), ReasonBrokerError)
	case res != nil && res.IsPending() && res.OrderID != "":
		kept = true
		return c.hold(ctx, log, sig, r, res, quote.Price, notionalF, cash)
	case res == nil || res.Status == contracts.FillRejected || res.FilledQty <= 0:
		msg := "rejected"
		if res != nil && res.Message != "" {
			msg = res.Message
		}
		c.deps.Metrics.RecordOrder("buy", string(contracts.FillRejected))
		return c.skipped(log, sig, msg, ReasonBrokerRejection)
	}
	c.deps.Metrics.RecordOrder("buy", string(res.Status))

	price := res.AvgPrice
	if price <= 0 {
		price = quote.Price
	}
	now := c.now()
	pos := &contracts.Position{
		ID:            uuid.NewString(),
		Symbol:        sig.Symbol,
		Strategy:      sig.Strategy,
		Score:         sig.Score,
		EntryPrice:    price,
		EntryTime:     now,
		Quantity:      res.FilledQty,
		HighWaterMark: price,
		Exit:          sig.Exit,
		UpdatedAt:     now,
	}
	kept = true
	if err := c.deps.Book.Commit(ctx, r, pos); err != nil {
		// 포지션은 Book 에 반영됨, 영속화만 실패
		log.WithError(err).WithField("symbol", sig.Symbol).Error("Position opened but not persisted")
	}
	*cash -= res.FilledQty * price

	d := Decision{
		Strategy:   sig.Strategy,
		Symbol:     sig.Symbol,
		Score:      sig.Score,
		Outcome:    OutcomeOrdered,
		Notional:   notionalF,
		Order:      res,
		PositionID: pos.ID,
	}
	if res.IsPartial() {
		d.Detail = fmt.Sprintf("partial fill %.4f/%.4f", res.FilledQty, res.RequestedQty)
	}

	log.WithFields(map[string]interface{}{
		"symbol":      sig.Symbol,
		"score":       sig.Score,
		"multiplier":  multiplier,
		"notional":    notional.StringFixed(2),
		"filled_qty":  res.FilledQty,
		"avg_price":   price,
		"status":      res.Status,
		"position_id": pos.ID,
	}).Info("Entry order filled")

	c.notify(ctx, contracts.CategoryTradeEntry, fmt.Sprintf("BUY %s %s x%.4f @ %.2f (score %d, $%s)",
		sig.Strategy, sig.Symbol, res.FilledQty, price, sig.Score, notional.StringFixed(2)))
	return d
}

// hold keeps the slot reserved for a buy the broker is still working.
// 체결 확정은 invalidation 패스의 SettleEntry 에서
func (c *Controller) hold(ctx context.Context, log *logger.Logger, sig contracts.StrategySignal, r *portfolio.Reservation, res *contracts.OrderResult, quotePrice, notional float64, cash *float64) Decision {
	c.deps.Metrics.RecordOrder("buy", string(res.Status))
	now := c.now()
	template := contracts.Position{
		ID:         uuid.NewString(),
		Symbol:     sig.Symbol,
		Strategy:   sig.Strategy,
		Score:      sig.Score,
		EntryPrice: quotePrice,
		EntryTime:  now,
		Exit:       sig.Exit,
		UpdatedAt:  now,
	}
	if err := c.deps.Book.HoldEntry(r, res.OrderID, template, now); err != nil {
		log.WithError(err).WithField("order_id", res.OrderID).Error("Failed to hold working entry")
		c.deps.Book.Release(r)
		return c.skipped(log, sig, err.Error(), ReasonBrokerError)
	}
	*cash -= notional

	c.notify(ctx, contracts.CategoryTradeEntry, fmt.Sprintf("BUY %s %s working at broker (order %s, $%.2f)",
		sig.Strategy, sig.Symbol, res.OrderID, notional))
	return Decision{
		Strategy:   sig.Strategy,
		Symbol:     sig.Symbol,
		Score:      sig.Score,
		Outcome:    OutcomePending,
		Detail:     "order " + res.OrderID + " still working",
		Notional:   notional,
		Order:      res,
		PositionID: template.ID,
	}
}

// skipped records a non-order outcome; NO-TRADE and skips are valid results, not errors
func (c *Controller) skipped(log *logger.Logger, sig contracts.StrategySignal, detail string, reasons ...string) Decision {
	log.WithFields(map[string]interface{}{
		"symbol":  sig.Symbol,
		"score":   sig.Score,
		"reasons": strings.Join(reasons, ","),
		"detail":  detail,
	}).Info("Candidate skipped")
	return Decision{
		Strategy: sig.Strategy,
		Symbol:   sig.Symbol,
		Score:    sig.Score,
		Outcome:  OutcomeSkipped,
		Reasons:  reasons,
		Detail:   detail,
	}
}

func (c *Controller) finish(ctx context.Context, report *ScanReport, log *logger.Logger) *ScanReport {
	report.Duration = c.now().Sub(report.StartedAt)
	c.deps.Metrics.ObserveScan(string(report.Strategy), report.Duration)
	c.deps.Metrics.SetOpenPositions(string(report.Strategy), c.deps.Book.OpenCount(report.Strategy))

	log.WithFields(map[string]interface{}{
		"orders":   len(report.Orders),
		"skips":    len(report.Skips),
		"deferred": len(report.Deferred),
		"errors":   len(report.Errors),
	}).Info("Scan completed")

	if len(report.Errors) > 0 {
		c.notify(ctx, contracts.CategoryError, fmt.Sprintf("Scan %s: %s", report.Strategy, strings.Join(report.Errors, "; ")))
	}
	return report
}

func (c *Controller) notify(ctx context.Context, category contracts.NotifyCategory, msg string) {
	if c.deps.Notifier == nil {
		return
	}
	if err := c.deps.Notifier.Notify(context.WithoutCancel(ctx), category, msg); err != nil {
		c.logger.WithError(err).WithField("category", category).Warn("Notification failed")
	}
}

func decisionLabel(d Decision) string {
	if d.Outcome != OutcomeSkipped {
		return string(d.Outcome)
	}
	if len(d.Reasons) == 0 {
		return string(OutcomeSkipped)
	}
	return d.Reasons[0]
}

func hasReason(d Decision, reason string) bool {
	for _, r := range d.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}
