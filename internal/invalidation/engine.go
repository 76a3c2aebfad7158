package invalidation

import (
	"context"
	"fmt"
	"sync"
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
// Invalidation Engine
// ⭐ SSOT: 포지션 청산 권한은 이 엔진에만 있음 (뉴스 모니터는 신호만 올림)
// =============================================================================

const recentEventLimit = 50

// NewsFlag is a pending material headline for a symbol
type NewsFlag struct {
	Headline string
	RaisedAt time.Time
}

// Listener receives exit events (websocket hub etc.)
type Listener func(contracts.ExitEvent)

// Deps are the collaborators of the engine
type Deps struct {
	Broker     contracts.Broker
	MarketData contracts.MarketData
	Book       *portfolio.Book
	Notifier   contracts.Notifier
	Metrics    *metrics.Registry
}

// PassResult summarizes one CheckAll pass
type PassResult struct {
	Checked  int                   `json:"checked"`
	Unpriced []string              `json:"unpriced,omitempty"`
	Events   []contracts.ExitEvent `json:"events,omitempty"`
	Errors   []string              `json:"errors,omitempty"`
}

// Engine checks every active position on a fixed interval
type Engine struct {
	cfg    *strategyconfig.Config
	deps   Deps
	rules  []Rule
	quotes retry.Policy
	loc    *time.Location
	logger *logger.Logger
	now    func() time.Time

	mu        sync.Mutex
	news      map[string]NewsFlag
	events    []contracts.ExitEvent
	listeners []Listener

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the wall clock (tests)
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRules replaces the rule chain
func WithRules(rules ...Rule) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithQuotePolicy overrides the quote retry policy
func WithQuotePolicy(p retry.Policy) Option {
	return func(e *Engine) { e.quotes = p }
}

// NewEngine creates an invalidation engine
func NewEngine(cfg *strategyconfig.Config, deps Deps, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg,
		deps:  deps,
		rules: DefaultRules(),
		quotes: retry.Policy{
			MaxAttempts:    2,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     time.Second,
			Retryable:      contracts.IsRetryable,
		},
		loc:    cfg.Location(),
		logger: log.WithField("module", "invalidation"),
		now:    time.Now,
		news:   make(map[string]NewsFlag),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddListener registers an exit event listener
func (e *Engine) AddListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// RaiseNewsInvalidation flags a symbol for the next pass.
// Returns false when no OPEN position holds the symbol.
func (e *Engine) RaiseNewsInvalidation(symbol, headline string) bool {
	held := false
	for _, s := range e.deps.Book.OpenSymbols() {
		if s == symbol {
			held = true
			break
		}
	}
	if !held {
		return false
	}

	e.mu.Lock()
	e.news[symbol] = NewsFlag{Headline: headline, RaisedAt: e.now()}
	e.mu.Unlock()

	e.logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"headline": headline,
	}).Warn("News invalidation raised")
	return true
}

// PendingNews returns the flag for a symbol
func (e *Engine) PendingNews(symbol string) (NewsFlag, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.news[symbol]
	return f, ok
}

// RecentEvents returns the last exit events, oldest first
func (e *Engine) RecentEvents() []contracts.ExitEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]contracts.ExitEvent(nil), e.events...)
}

// =============================================================================
// Loop
// =============================================================================

// Start runs CheckAll every Execution.MonitorInterval until Stop or ctx is done
func (e *Engine) Start(ctx context.Context) error {
	e.runMu.Lock()
	if e.running {
		e.runMu.Unlock()
		return fmt.Errorf("invalidation engine already running")
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	stopCh, doneCh := e.stopCh, e.doneCh
	e.runMu.Unlock()

	interval := e.cfg.Execution.MonitorInterval
	e.logger.WithField("interval", interval.String()).Info("Invalidation engine started")

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				e.markStopped()
				return
			case <-stopCh:
				return
			case <-ticker.C:
				e.CheckAll(ctx)
			}
		}
	}()
	return nil
}

// Stop stops the loop and waits for the running pass
func (e *Engine) Stop() {
	e.runMu.Lock()
	if !e.running {
		e.runMu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	doneCh := e.doneCh
	e.runMu.Unlock()

	<-doneCh
	e.logger.Info("Invalidation engine stopped")
}

// IsRunning reports whether the loop is active
func (e *Engine) IsRunning() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.running
}

func (e *Engine) markStopped() {
	e.runMu.Lock()
	e.running = false
	e.runMu.Unlock()
}

// =============================================================================
// Pass
// =============================================================================

// CheckAll evaluates every active position once.
// 미체결 진입 주문 정산 → OPEN 규칙 평가 / PENDING_CLOSE 청산 주문 재발행
func (e *Engine) CheckAll(ctx context.Context) *PassResult {
	result := &PassResult{}
	e.settleEntries(ctx, result)
	positions := e.deps.Book.Active()

	e.mu.Lock()
	flags := make(map[string]NewsFlag, len(e.news))
	for symbol, f := range e.news {
		flags[symbol] = f
	}
	e.mu.Unlock()

	for _, pos := range positions {
		if ctx.Err() != nil {
			break
		}
		result.Checked++

		switch pos.Status {
		case contracts.PositionOpen:
			e.checkOpen(ctx, pos, flags, result)
		case contracts.PositionPendingClose:
			e.reissue(ctx, pos, result)
		}
	}

	// 이번 패스에서 본 뉴스 플래그 소비 (패스 도중 올라온 플래그는 다음 패스)
	if ctx.Err() == nil {
		e.mu.Lock()
		for symbol, f := range flags {
			if cur, ok := e.news[symbol]; ok && cur.RaisedAt.Equal(f.RaisedAt) {
				delete(e.news, symbol)
			}
		}
		e.mu.Unlock()
	}

	e.deps.Metrics.RecordMonitorPass()
	e.publishOpenCounts()
	return result
}

func (e *Engine) checkOpen(ctx context.Context, pos contracts.Position, flags map[string]NewsFlag, result *PassResult) {
	log := e.logger.WithFields(map[string]interface{}{
		"position_id": pos.ID,
		"symbol":      pos.Symbol,
		"strategy":    pos.Strategy,
	})

	price, known := e.price(ctx, log, pos.Symbol)
	if !known {
		result.Unpriced = append(result.Unpriced, pos.Symbol)
	}

	var (
		verdict   Verdict
		triggered bool
		closing   contracts.Position
	)
	err := e.deps.Book.WithSymbol(pos.Symbol, func() error {
		current, ok := e.deps.Book.Get(pos.ID)
		if !ok || current.Status != contracts.PositionOpen {
			return nil
		}
		// HWM 은 규칙 평가 전에 갱신
		if known {
			current, _ = e.deps.Book.ObservePrice(ctx, pos.ID, price)
		}

		obs := Observation{
			Position:   current,
			Price:      price,
			PriceKnown: known,
			Now:        e.now().In(e.loc),
			ForceClose: e.cfg.Execution.SessionForceClose,
		}
		if flag, ok := flags[pos.Symbol]; ok {
			obs.News = &flag
		}

		verdict, triggered = Evaluate(obs, e.rules)
		if !triggered {
			return nil
		}

		updated, changed, err := e.deps.Book.BeginClose(ctx, pos.ID, verdict.Reason, verdict.Detail, e.now())
		if err != nil && !changed {
			return err
		}
		if err != nil {
			// 상태 전환은 메모리에 반영됨, 저장만 실패
			log.WithError(err).Error("Failed to persist invalidation")
		}
		closing = updated
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Invalidation check failed")
		result.Errors = append(result.Errors, pos.Symbol+": "+err.Error())
		return
	}
	if !triggered || closing.ID == "" {
		return
	}

	e.deps.Metrics.RecordExit(string(verdict.Reason))
	log.WithFields(map[string]interface{}{
		"reason": verdict.Reason,
		"detail": verdict.Detail,
		"price":  price,
	}).Warn("Exit rule triggered")

	e.closePosition(ctx, closing, price, true, result)
}

func (e *Engine) reissue(ctx context.Context, pos contracts.Position, result *PassResult) {
	log := e.logger.WithFields(map[string]interface{}{
		"position_id": pos.ID,
		"symbol":      pos.Symbol,
		"reason":      pos.InvalidationReason,
	})
	price, _ := e.price(ctx, log, pos.Symbol)

	// 브로커에 살아있는 청산 주문이 있으면 새 주문 금지
	if pos.CloseOrderID != "" {
		order, err := e.deps.Broker.GetOrder(ctx, pos.CloseOrderID)
		if err != nil {
			log.WithError(err).WithField("order_id", pos.CloseOrderID).Warn("Close order status unknown, not re-issuing")
			result.Errors = append(result.Errors, pos.Symbol+": "+err.Error())
			return
		}
		if order.IsPending() {
			log.WithField("order_id", pos.CloseOrderID).Debug("Close order still working")
			return
		}
		pos = e.applyClose(ctx, log, pos, order, price, false, result)
		if pos.Status != contracts.PositionPendingClose || pos.Quantity <= 0 {
			return
		}
	}

	log.Info("Re-issuing pending close")
	e.closePosition(ctx, pos, price, false, result)
}

// settleEntries resolves buy orders that were still working at the broker.
// 체결 전까지 전략 슬롯은 예약 상태로 유지됨
func (e *Engine) settleEntries(ctx context.Context, result *PassResult) {
	for _, entry := range e.deps.Book.PendingEntries() {
		if ctx.Err() != nil {
			return
		}
		log := e.logger.WithFields(map[string]interface{}{
			"order_id": entry.OrderID,
			"symbol":   entry.Position.Symbol,
			"strategy": entry.Position.Strategy,
		})

		order, err := e.deps.Broker.GetOrder(ctx, entry.OrderID)
		if err != nil {
			log.WithError(err).Warn("Entry order status unknown")
			result.Errors = append(result.Errors, entry.Position.Symbol+": "+err.Error())
			continue
		}
		if order.IsPending() {
			continue
		}

		price := order.AvgPrice
		if price <= 0 {
			price = entry.Position.EntryPrice
		}
		filled := 0.0
		if order.IsFilled() || order.IsPartial() {
			filled = order.FilledQty
		}

		var (
			pos    contracts.Position
			opened bool
		)
		err = e.deps.Book.WithSymbol(entry.Position.Symbol, func() error {
			var err error
			pos, opened, err = e.deps.Book.SettleEntry(ctx, entry.OrderID, filled, price, e.now())
			return err
		})
		if err != nil {
			log.WithError(err).Error("Failed to settle entry order")
			result.Errors = append(result.Errors, entry.Position.Symbol+": "+err.Error())
			continue
		}
		e.deps.Metrics.RecordOrder(string(contracts.OrderSideBuy), string(order.Status))
		if !opened {
			continue
		}

		log.WithFields(map[string]interface{}{
			"position_id": pos.ID,
			"quantity":    pos.Quantity,
			"price":       pos.EntryPrice,
		}).Info("Working entry order settled")
		e.notify(ctx, contracts.CategoryTradeEntry, fmt.Sprintf("%s %s filled %.4f @ %.2f (settled)",
			pos.Strategy, pos.Symbol, pos.Quantity, pos.EntryPrice))
	}
}

func (e *Engine) price(ctx context.Context, log *logger.Logger, symbol string) (float64, bool) {
	q, err := retry.Do(ctx, e.quotes, log, "quote:"+symbol, func(ctx context.Context) (*contracts.Quote, error) {
		return e.deps.MarketData.GetQuote(ctx, symbol)
	})
	if err != nil || q == nil || q.Price <= 0 {
		if err != nil {
			log.WithError(err).Warn("No price for position, evaluating time rules only")
		}
		return 0, false
	}
	return q.Price, true
}

// closePosition sends the sell and applies the broker's answer under the symbol lock.
// Events go out on the first attempt and whenever a fill changes the position.
func (e *Engine) closePosition(ctx context.Context, pos contracts.Position, lastPrice float64, first bool, result *PassResult) {
	log := e.logger.WithFields(map[string]interface{}{
		"position_id": pos.ID,
		"symbol":      pos.Symbol,
		"reason":      pos.InvalidationReason,
	})

	intent := contracts.OrderIntent{
		ClientOrderID: uuid.NewString(),
		Symbol:        pos.Symbol,
		Strategy:      pos.Strategy,
		Side:          contracts.OrderSideSell,
		Quantity:      pos.Quantity,
		CreatedAt:     e.now(),
	}

	order, err := e.deps.Broker.PlaceOrder(ctx, intent)
	if err != nil {
		log.WithError(err).Error("Close order failed, position stays pending")
		e.deps.Metrics.RecordOrder(string(contracts.OrderSideSell), "error")
		result.Errors = append(result.Errors, pos.Symbol+": "+err.Error())
		if first {
			e.notify(ctx, contracts.CategoryError, fmt.Sprintf("close %s failed: %v", pos.Symbol, err))
			e.emit(result, e.event(pos, lastPrice))
		}
		return
	}
	e.deps.Metrics.RecordOrder(string(contracts.OrderSideSell), string(order.Status))

	e.applyClose(ctx, log, pos, order, lastPrice, first, result)
}

// applyClose folds a terminal (or still working) sell into the book and emits events.
// 체결 반영은 심볼 락 안에서
func (e *Engine) applyClose(ctx context.Context, log *logger.Logger, pos contracts.Position, order *contracts.OrderResult, lastPrice float64, first bool, result *PassResult) contracts.Position {
	fillPrice := order.AvgPrice
	if fillPrice <= 0 {
		fillPrice = lastPrice
	}

	var final contracts.Position
	err := e.deps.Book.WithSymbol(pos.Symbol, func() error {
		var err error
		switch {
		case order.IsPending():
			final, err = e.deps.Book.SetCloseOrder(ctx, pos.ID, order.OrderID, e.now())
		case order.IsFilled():
			final, err = e.deps.Book.ConfirmClose(ctx, pos.ID, fillPrice, e.now())
		case order.IsPartial() && order.FilledQty > 0:
			final, err = e.deps.Book.ApplyPartialClose(ctx, pos.ID, order.FilledQty, fillPrice, e.now())
			if err == nil && final.CloseOrderID != "" {
				final, err = e.deps.Book.SetCloseOrder(ctx, pos.ID, "", e.now())
			}
		case pos.CloseOrderID != "":
			final, err = e.deps.Book.SetCloseOrder(ctx, pos.ID, "", e.now())
		default:
			final = pos
		}
		return err
	})
	if err != nil {
		log.WithError(err).Error("Failed to apply close fill")
		result.Errors = append(result.Errors, pos.Symbol+": "+err.Error())
	}
	if final.ID == "" {
		final = pos
	}

	switch order.Status {
	case contracts.FillPending:
		log.WithField("order_id", order.OrderID).Warn("Close order still working, waiting for broker")
	case contracts.FillRejected:
		log.WithField("message", order.Message).Warn("Close order rejected, will re-issue next pass")
	case contracts.FillPartial:
		log.WithField("remaining", final.Quantity).Warn("Close partially filled, will re-issue next pass")
	}

	ev := e.event(final, fillPrice)
	if first || final.Status == contracts.PositionClosed || final.Quantity != pos.Quantity {
		e.emit(result, ev)
	}
	if final.Status == contracts.PositionClosed {
		e.notify(ctx, contracts.CategoryTradeExit, fmt.Sprintf("%s %s closed @ %.2f (%s, %+.2f%%) %s",
			final.Strategy, final.Symbol, fillPrice, final.InvalidationReason, ev.PnLPct, final.InvalidationDetail))
	}
	return final
}

func (e *Engine) event(p contracts.Position, price float64) contracts.ExitEvent {
	return contracts.ExitEvent{
		PositionID:  p.ID,
		Symbol:      p.Symbol,
		Strategy:    p.Strategy,
		Reason:      p.InvalidationReason,
		Detail:      p.InvalidationDetail,
		Price:       price,
		EntryPrice:  p.EntryPrice,
		PnLPct:      p.PnLPct(price),
		Status:      p.Status,
		TriggeredAt: e.now(),
	}
}

func (e *Engine) emit(result *PassResult, ev contracts.ExitEvent) {
	result.Events = append(result.Events, ev)

	e.mu.Lock()
	e.events = append(e.events, ev)
	if len(e.events) > recentEventLimit {
		e.events = e.events[len(e.events)-recentEventLimit:]
	}
	listeners := append([]Listener(nil), e.listeners...)
	e.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}

func (e *Engine) notify(ctx context.Context, category contracts.NotifyCategory, msg string) {
	if e.deps.Notifier == nil {
		return
	}
	if err := e.deps.Notifier.Notify(ctx, category, msg); err != nil {
		e.logger.WithError(err).Warn("Notification failed")
	}
}

func (e *Engine) publishOpenCounts() {
	if e.deps.Metrics == nil {
		return
	}
	for _, id := range contracts.AllStrategies {
		e.deps.Metrics.SetOpenPositions(string(id), e.deps.Book.OpenCount(id))
	}
}
