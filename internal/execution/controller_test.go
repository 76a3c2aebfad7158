package execution

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/portfolio"
	"github.com/wonny/aegis-swing/internal/storage"
	"github.com/wonny/aegis-swing/internal/strategyconfig"
	"github.com/wonny/aegis-swing/pkg/logger"
	"github.com/wonny/aegis-swing/pkg/retry"
)

// =============================================================================
// fakes
// =============================================================================

type fakeBroker struct {
	mu      sync.Mutex
	cash    float64
	intents []contracts.OrderIntent
	place   func(contracts.OrderIntent) (*contracts.OrderResult, error)
}

func (b *fakeBroker) PlaceOrder(ctx context.Context, intent contracts.OrderIntent) (*contracts.OrderResult, error) {
	b.mu.Lock()
	b.intents = append(b.intents, intent)
	place := b.place
	b.mu.Unlock()
	if place != nil {
		return place(intent)
	}
	qty := intent.Notional / 50
	return &contracts.OrderResult{OrderID: "o-" + intent.Symbol, Status: contracts.FillFilled, FilledQty: qty, RequestedQty: qty, AvgPrice: 50}, nil
}

func (b *fakeBroker) GetOrder(ctx context.Context, orderID string) (*contracts.OrderResult, error) {
	return nil, contracts.ErrNotFound
}

func (b *fakeBroker) CancelOrder(ctx context.Context, orderID string) error {
	return nil
}

func (b *fakeBroker) GetPositions(ctx context.Context) ([]contracts.BrokerPosition, error) {
	return nil, nil
}

func (b *fakeBroker) GetAccountCash(ctx context.Context) (float64, error) {
	return b.cash, nil
}

func (b *fakeBroker) orders() []contracts.OrderIntent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]contracts.OrderIntent(nil), b.intents...)
}

type fakeQuotes struct {
	mu     sync.Mutex
	quotes map[string]contracts.Quote
	err    error
	calls  int
	block  bool
}

func (f *fakeQuotes) GetQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	f.mu.Lock()
	f.calls++
	block, err := f.block, f.err
	q, ok := f.quotes[symbol]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, contracts.DataUnavailable("quote", ctx.Err())
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		q = liquidQuote(symbol)
	}
	return &q, nil
}

func (f *fakeQuotes) GetHistory(ctx context.Context, symbol string, window contracts.HistoryWindow) ([]contracts.Bar, error) {
	return nil, errors.New("not used")
}

func (f *fakeQuotes) GetProfile(ctx context.Context, symbol string) (*contracts.Profile, error) {
	return nil, errors.New("not used")
}

func liquidQuote(symbol string) contracts.Quote {
	return contracts.Quote{
		Symbol:    symbol,
		Price:     50,
		Open:      50,
		PrevClose: 50,
		Volume:    2_000_000,
		AvgVolume: 2_000_000,
		VWAP:      50,
		MarketCap: 10e9,
	}
}

type sig struct {
	symbol string
	score  int
}

func frozenUniverse(strategy contracts.StrategyID, signals ...sig) *contracts.WeeklyUniverse {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	u := &contracts.WeeklyUniverse{WeekKey: "2026-W43", Frozen: true, FrozenAt: &now}
	for _, s := range signals {
		u.Instruments = append(u.Instruments, contracts.Instrument{Symbol: s.symbol, Tradeable: true, MarketCap: 10e9})
		u.Signals = append(u.Signals, contracts.StrategySignal{
			Strategy:  strategy,
			Symbol:    s.symbol,
			Score:     s.score,
			Candidate: true,
			Exit:      contracts.ExitParams{StopLossPct: 5, TrailingStopPct: 10, MaxHoldDays: 30},
		})
	}
	return u
}

type fixture struct {
	cfg    *strategyconfig.Config
	book   *portfolio.Book
	broker *fakeBroker
	quotes *fakeQuotes
}

func newFixture() *fixture {
	cfg := strategyconfig.Default()
	cfg.Execution.QuoteAttempts = 3
	return &fixture{
		cfg:    cfg,
		book:   portfolio.NewBook(storage.NewMemoryStore(), cfg.Caps(), logger.NewNop()),
		broker: &fakeBroker{cash: 100_000},
		quotes: &fakeQuotes{quotes: make(map[string]contracts.Quote)},
	}
}

func (f *fixture) controller(t *testing.T, u *contracts.WeeklyUniverse, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithQuotePolicy(retry.Policy{
		MaxAttempts:    f.cfg.Execution.QuoteAttempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Retryable:      contracts.IsRetryable,
	})}, opts...)
	c, err := NewController(u, f.cfg, Deps{
		Broker:     f.broker,
		MarketData: f.quotes,
		Book:       f.book,
	}, logger.NewNop(), opts...)
	require.NoError(t, err)
	return c
}

// =============================================================================
// tests
// =============================================================================

func TestNewControllerRefusesUnfrozenUniverse(t *testing.T) {
	f := newFixture()
	u := frozenUniverse(contracts.StrategyBreakout, sig{"AAPL", 4})
	u.Frozen = false

	_, err := NewController(u, f.cfg, Deps{Book: f.book}, logger.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrImmutableState))

	_, err = NewController(nil, f.cfg, Deps{Book: f.book}, logger.NewNop())
	assert.True(t, errors.Is(err, contracts.ErrImmutableState))
}

func TestScanSkipsLowVolume(t *testing.T) {
	f := newFixture()
	q := liquidQuote("X")
	q.Volume, q.AvgVolume = 100_000, 100_000
	f.quotes.quotes["X"] = q

	c := f.controller(t, frozenUniverse(contracts.StrategyBreakout, sig{"X", 4}))
	report, err := c.RunScan(context.Background(), contracts.StrategyBreakout)
	require.NoError(t, err)

	require.Len(t, report.Skips, 1)
	assert.Equal(t, []string{RuleLowAverageVolume}, report.Skips[0].Reasons)
	assert.Empty(t, report.Orders)
	assert.Empty(t, f.broker.orders(), "no order intent issued")
	assert.Equal(t, 0, f.book.OpenCount(contracts.StrategyBreakout))
}

func TestScanOrdersInScoringOrderAndSizesByScore(t *testing.T) {
	f := newFixture()
	c := f.controller(t, frozenUniverse(contracts.StrategyBreakout, sig{"AAA", 4}, sig{"BBB", 5}))

	report, err := c.RunScan(context.Background(), contracts.StrategyBreakout)
	require.NoError(t, err)
	require.Len(t, report.Orders, 2)

	intents := f.broker.orders()
	require.Len(t, intents, 2)
	// score 5 first: 100000 × 0.10 × 1.00
	assert.Equal(t, "BBB", intents[0].Symbol)
	assert.InDelta(t, 10_000.00, intents[0].Notional, 1e-9)
	// remaining cash 90000 × 0.10 × 0.75
	assert.Equal(t, "AAA", intents[1].Symbol)
	assert.InDelta(t, 6_750.00, intents[1].Notional, 1e-9)
	assert.Equal(t, contracts.OrderSideBuy, intents[0].Side)
	assert.NotEmpty(t, intents[0].ClientOrderID)

	pos, ok := f.book.Get(report.Orders[0].PositionID)
	require.True(t, ok)
	assert.Equal(t, contracts.PositionOpen, pos.Status)
	assert.Equal(t, 50.0, pos.EntryPrice)
	assert.Equal(t, pos.EntryPrice, pos.HighWaterMark)
	assert.InDelta(t, 200.0, pos.Quantity, 1e-9)
	assert.Equal(t, 5.0, pos.Exit.StopLossPct)
}

func TestScoreOneNeverOrders(t *testing.T) {
	f := newFixture()
	f.cfg.Scoring.CandidateThreshold = 1
	c := f.controller(t, frozenUniverse(contracts.StrategyBreakout, sig{"LOW", 1}))

	report, err := c.RunScan(context.Background(), contracts.StrategyBreakout)
	require.NoError(t, err)
	require.Len(t, report.Skips, 1)
	assert.Equal(t, []string{ReasonZeroMultiplier}, report.Skips[0].Reasons)
	assert.Empty(t, f.broker.orders())
}

func TestScanBelowThresholdIsNotEvaluated(t *testing.T) {
	f := newFixture()
	c := f.controller(t, frozenUniverse(contracts.StrategyBreakout, sig{"MEH", 2}))

	report, err := c.RunScan(context.Background(), contracts.StrategyBreakout)
	require.NoError(t, err)
	assert.Empty(t, report.Orders)
	assert.Empty(t, report.Skips)
}

func TestConcurrentScansNeverExceedCap(t *testing.T) {
	f := newFixture()
	f.cfg.Strategies[contracts.StrategyBreakout] = withCap(f.cfg.Strategies[contracts.StrategyBreakout], 2)
	f.book = portfolio.NewBook(storage.NewMemoryStore(), f.cfg.Caps(), logger.NewNop())

	u := frozenUniverse(contracts.StrategyBreakout,
		sig{"A", 5}, sig{"B", 5}, sig{"C", 4}, sig{"D", 4}, sig{"E", 3}, sig{"F", 3})

	var wg sync.WaitGroup
	var orders int32
	for i := 0; i < 4; i++ {
		c := f.controller(t, u)
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := c.RunScan(context.Background(), contracts.StrategyBreakout)
			assert.NoError(t, err)
			atomic.AddInt32(&orders, int32(len(report.Orders)))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), orders)
	assert.Equal(t, 2, f.book.OpenCount(contracts.StrategyBreakout))
}

func withCap(s strategyconfig.Strategy, n int) strategyconfig.Strategy {
	s.MaxPositions = n
	return s
}

func TestScanRejectsPendingCloseSymbol(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r, err := f.book.Reserve(contracts.StrategyMeanReversion, "AAPL")
	require.NoError(t, err)
	require.NoError(t, f.book.Commit(ctx, r, &contracts.Position{ID: "mr-1", Symbol: "AAPL", Strategy: contracts.StrategyMeanReversion, EntryPrice: 50, Quantity: 10}))
	_, _, err = f.book.BeginClose(ctx, "mr-1", contracts.ExitReasonStopLoss, "", time.Now())
	require.NoError(t, err)

	c := f.controller(t, frozenUniverse(contracts.StrategyBreakout, sig{"AAPL", 5}))
	report, err := c.RunScan(ctx, contracts.StrategyBreakout)
	require.NoError(t, err)

	require.Len(t, report.Skips, 1)
	assert.Equal(t, []string{string(portfolio.ReasonPendingClose)}, report.Skips[0].Reasons)
	assert.Empty(t, f.broker.orders())
}

func TestScanLiveDataUnavailableIsSkip(t *testing.T) {
	f := newFixture()
	f.quotes.err = contracts.ErrRateLimited
	c := f.controller(t, frozenUniverse(contracts.StrategyBreakout, sig{"AAPL", 5}))

	report, err := c.RunScan(context.Background(), contracts.StrategyBreakout)
	require.NoError(t, err)

	require.Len(t, report.Skips, 1)
	assert.Equal(t, []string{ReasonLiveDataUnavailable}, report.Skips[0].Reasons)
	assert.Equal(t, 3, f.quotes.calls, "bounded retry")
	assert.Empty(t, report.Deferred)

	// reservation released
	r, err := f.book.Reserve(contracts.StrategyBreakout, "AAPL")
	require.NoError(t, err)
	f.book.Release(r)
}

func TestScanBrokerRejectionIsNotRetried(t *testing.T) {
	f := newFixture()
	f.broker.place = func(intent contracts.OrderIntent) (*contracts.OrderResult, error) {
		return nil, contracts.BrokerRejection(intent.Symbol, "insufficient buying power")
	}
	c := f.controller(t, frozenUniverse(contracts.StrategyBreakout, sig{"AAPL", 5}))

	report, err := c.RunScan(context.Background(), contracts.StrategyBreakout)
	require.NoError(t, err)

	require.Len(t, report.Skips, 1)
	assert.Equal(t, []string{ReasonBrokerRejection}, report.Skips[0].Reasons)
	assert.Len(t, f.broker.orders(), 1)
	assert.Equal(t, 0, f.book.OpenCount(contracts.StrategyBreakout))
}

func TestScanRejectedStatusIsSkip(t *testing.T) {
	f := newFixture()
	f.broker.place = func(intent contracts.OrderIntent) (*contracts.OrderResult, error) {
		return &contracts.OrderResult{Status: contracts.FillRejected, Message: "halted"}, nil
	}
	c := f.controller(t, frozenUniverse(contracts.StrategyBreakout, sig{"AAPL", 5}))

	report, err := c.RunScan(context.Background(), contracts.StrategyBreakout)
	require.NoError(t, err)
	require.Len(t, report.Skips, 1)
	assert.Equal(t, "halted", report.Skips[0].Detail)
}

func TestScanPartialFillOpensFilledQuantity(t *testing.T) {
	f := newFixture()
	f.broker.place = func(intent contracts.OrderIntent) (*contracts.OrderResult, error) {
		return &contracts.OrderResult{OrderID: "p", Status: contracts.FillPartial, FilledQty: 40, RequestedQty: 200, AvgPrice: 50}, nil
	}
	c := f.controller(t, frozenUniverse(contracts.StrategyBreakout, sig{"AAPL", 5}))

	report, err := c.RunScan(context.Background(), contracts.StrategyBreakout)
	require.NoError(t, err)
	require.Len(t, report.Orders, 1)

	pos, ok := f.book.Get(report.Orders[0].PositionID)
	require.True(t, ok)
	assert.Equal(t, 40.0, pos.Quantity)
	assert.Contains(t, report.Orders[0].Detail, "partial")
}

func TestScanWorkingOrderHoldsSlot(t *testing.T) {
	f := newFixture()
	f.broker.place = func(intent contracts.OrderIntent) (*contracts.OrderResult, error) {
		return &contracts.OrderResult{OrderID: "w-" + intent.Symbol, Status: contracts.FillPending, RequestedQty: 200}, nil
	}
	c := f.controller(t, frozenUniverse(contracts.StrategyBreakout, sig{"AAPL", 5}, sig{"MSFT", 4}))

	report, err := c.RunScan(context.Background(), contracts.StrategyBreakout)
	require.NoError(t, err)
	require.Len(t, report.Orders, 2)
	assert.Equal(t, OutcomePending, report.Orders[0].Outcome)
	assert.Contains(t, report.Orders[0].Detail, "w-AAPL")

	// 두번째 주문 사이징은 working 주문 금액을 뺀 현금 기준
	intents := f.broker.orders()
	require.Len(t, intents, 2)
	assert.InDelta(t, 6_750.00, intents[1].Notional, 1e-9)

	entries := f.book.PendingEntries()
	require.Len(t, entries, 2)
	assert.ElementsMatch(t, []string{"w-AAPL", "w-MSFT"}, []string{entries[0].OrderID, entries[1].OrderID})
	assert.Equal(t, 0, f.book.OpenCount(contracts.StrategyBreakout))

	_, err = f.book.Reserve(contracts.StrategyBreakout, "AAPL")
	var re *portfolio.ReserveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, portfolio.ReasonAlreadyOpen, re.Reason)
}

func TestScanDoesNotHoldSymbolLockDuringOrder(t *testing.T) {
	f := newFixture()
	f.broker.place = func(intent contracts.OrderIntent) (*contracts.OrderResult, error) {
		acquired := make(chan struct{})
		go func() {
			_ = f.book.WithSymbol(intent.Symbol, func() error { return nil })
			close(acquired)
		}()
		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Error("symbol lock held while the order is in flight")
		}
		return &contracts.OrderResult{OrderID: "o", Status: contracts.FillFilled, FilledQty: 10, RequestedQty: 10, AvgPrice: 50}, nil
	}
	c := f.controller(t, frozenUniverse(contracts.StrategyBreakout, sig{"AAPL", 5}))

	report, err := c.RunScan(context.Background(), contracts.StrategyBreakout)
	require.NoError(t, err)
	assert.Len(t, report.Orders, 1)
}

func TestScanTimeoutDefersRemaining(t *testing.T) {
	f := newFixture()
	f.cfg.Execution.ScanTimeout = 20 * time.Millisecond
	f.quotes.block = true
	c := f.controller(t, frozenUniverse(contracts.StrategyBreakout, sig{"A", 5}, sig{"B", 4}, sig{"C", 3}))

	report, err := c.RunScan(context.Background(), contracts.StrategyBreakout)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, report.Deferred)
	assert.Empty(t, report.Orders)
	assert.Empty(t, report.Skips)
}

func TestScanDryRun(t *testing.T) {
	f := newFixture()
	c := f.controller(t, frozenUniverse(contracts.StrategyBreakout, sig{"AAPL", 5}), WithDryRun(true))

	report, err := c.RunScan(context.Background(), contracts.StrategyBreakout)
	require.NoError(t, err)
	require.Len(t, report.Skips, 1)
	assert.Equal(t, []string{ReasonDryRun}, report.Skips[0].Reasons)
	assert.Contains(t, report.Skips[0].Detail, "10000.00")
	assert.Empty(t, f.broker.orders())
}

func TestScanDailyLossLimit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r, err := f.book.Reserve(contracts.StrategyEarnings, "LOSS")
	require.NoError(t, err)
	require.NoError(t, f.book.Commit(ctx, r, &contracts.Position{ID: "l", Symbol: "LOSS", Strategy: contracts.StrategyEarnings, EntryPrice: 100, Quantity: 100}))
	_, _, err = f.book.BeginClose(ctx, "l", contracts.ExitReasonStopLoss, "", time.Now())
	require.NoError(t, err)
	_, err = f.book.ConfirmClose(ctx, "l", 60, time.Now()) // -4000 > 3% of 100000
	require.NoError(t, err)

	c := f.controller(t, frozenUniverse(contracts.StrategyBreakout, sig{"AAPL", 5}))
	report, err := c.RunScan(ctx, contracts.StrategyBreakout)
	require.NoError(t, err)
	require.Len(t, report.Skips, 1)
	assert.Equal(t, []string{ReasonDailyLossLimit}, report.Skips[0].Reasons)
}

func TestScanDailyLossLimitUsesSessionEquity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r, err := f.book.Reserve(contracts.StrategyEarnings, "LOSS")
	require.NoError(t, err)
	require.NoError(t, f.book.Commit(ctx, r, &contracts.Position{ID: "l", Symbol: "LOSS", Strategy: contracts.StrategyEarnings, EntryPrice: 100, Quantity: 100}))
	_, _, err = f.book.BeginClose(ctx, "l", contracts.ExitReasonStopLoss, "", time.Now())
	require.NoError(t, err)
	_, err = f.book.ConfirmClose(ctx, "l", 65, time.Now()) // -3500
	require.NoError(t, err)

	// 현금 100000 기준이면 한도(3000) 초과, 세션 평가금액 120000 기준이면 한도 3600
	f.book.SetSessionEquity(120_000)
	c := f.controller(t, frozenUniverse(contracts.StrategyBreakout, sig{"AAPL", 5}))
	report, err := c.RunScan(ctx, contracts.StrategyBreakout)
	require.NoError(t, err)
	assert.Len(t, report.Orders, 1)
	assert.Empty(t, report.Skips)
}

func TestScanDisabledStrategy(t *testing.T) {
	f := newFixture()
	s := f.cfg.Strategies[contracts.StrategyORB]
	s.Enabled = false
	f.cfg.Strategies[contracts.StrategyORB] = s
	c := f.controller(t, frozenUniverse(contracts.StrategyORB, sig{"AAPL", 5}))

	_, err := c.RunScan(context.Background(), contracts.StrategyORB)
	assert.True(t, errors.Is(err, contracts.ErrConfiguration))
}

func TestScanIntradayEntryTrigger(t *testing.T) {
	f := newFixture()
	q := liquidQuote("QQQ")
	q.Open, q.PrevClose, q.Price = 100, 100, 100.2 // below ORB range high (100.5)
	f.quotes.quotes["QQQ"] = q
	c := f.controller(t, frozenUniverse(contracts.StrategyORB, sig{"QQQ", 5}))

	report, err := c.RunScan(context.Background(), contracts.StrategyORB)
	require.NoError(t, err)
	require.Len(t, report.Skips, 1)
	assert.Equal(t, []string{ReasonEntryTriggerNotMet}, report.Skips[0].Reasons)
}

func TestBinderLoadsFrozenWeekOnce(t *testing.T) {
	f := newFixture()
	store := storage.NewMemoryStore()
	ctx := context.Background()

	b := NewBinder(store, f.cfg, Deps{Broker: f.broker, MarketData: f.quotes, Book: f.book}, logger.NewNop())
	b.now = func() time.Time { return time.Date(2026, 10, 21, 14, 0, 0, 0, time.UTC) }

	_, err := b.Current(ctx)
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	u := frozenUniverse(contracts.StrategyBreakout, sig{"AAPL", 5})
	u.Frozen = false
	require.NoError(t, store.SaveUniverse(ctx, u))
	_, err = b.Current(ctx)
	assert.ErrorIs(t, err, contracts.ErrImmutableState)

	u = frozenUniverse(contracts.StrategyBreakout, sig{"AAPL", 5})
	require.NoError(t, store.SaveUniverse(ctx, u))
	c1, err := b.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, contracts.WeekKey("2026-W43"), c1.Week())

	c2, err := b.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Len(t, c2.Universe().Signals, 1)
}
