package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/execution"
	"github.com/wonny/aegis-swing/internal/portfolio"
	"github.com/wonny/aegis-swing/internal/storage"
	"github.com/wonny/aegis-swing/internal/strategyconfig"
	"github.com/wonny/aegis-swing/pkg/logger"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages map[contracts.NotifyCategory][]string
}

func (n *recordingNotifier) Notify(ctx context.Context, category contracts.NotifyCategory, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.messages == nil {
		n.messages = make(map[contracts.NotifyCategory][]string)
	}
	n.messages[category] = append(n.messages[category], message)
	return nil
}

type holdingsBroker struct {
	contracts.Broker
	positions []contracts.BrokerPosition
	cash      float64
	err       error
}

func (b *holdingsBroker) GetPositions(ctx context.Context) ([]contracts.BrokerPosition, error) {
	return b.positions, b.err
}

func (b *holdingsBroker) GetAccountCash(ctx context.Context) (float64, error) {
	return b.cash, b.err
}

var entry = time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)

func bookWith(t *testing.T, positions ...contracts.Position) *portfolio.Book {
	t.Helper()
	book := portfolio.NewBook(storage.NewMemoryStore(), map[contracts.StrategyID]int{
		contracts.StrategyBreakout: 5,
		contracts.StrategyGapFade:  5,
	}, logger.NewNop())
	for i := range positions {
		p := positions[i]
		r, err := book.Reserve(p.Strategy, p.Symbol)
		require.NoError(t, err)
		require.NoError(t, book.Commit(context.Background(), r, &p))
	}
	return book
}

func TestScanJobSchedule(t *testing.T) {
	j, err := NewScanJob(contracts.StrategyORB, "09:45", nil, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "scan_orb", j.Name())
	assert.Equal(t, "0 45 9 * * MON-FRI", j.Schedule())
	assert.Equal(t, 0, j.MaxRetries())

	_, err = NewScanJob(contracts.StrategyORB, "9h45", nil, logger.NewNop())
	assert.ErrorIs(t, err, contracts.ErrConfiguration)
}

func TestScanJobWithoutFrozenWeek(t *testing.T) {
	binder := execution.NewBinder(storage.NewMemoryStore(), strategyconfig.Default(), execution.Deps{}, logger.NewNop())
	j, err := NewScanJob(contracts.StrategyBreakout, "10:00", binder, logger.NewNop())
	require.NoError(t, err)

	err = j.Run(context.Background())
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestSessionResetClearsRealized(t *testing.T) {
	book := bookWith(t, contracts.Position{ID: "p1", Symbol: "NVDA", Strategy: contracts.StrategyBreakout, EntryPrice: 100, EntryTime: entry, Quantity: 2})
	ctx := context.Background()
	_, _, err := book.BeginClose(ctx, "p1", contracts.ExitReasonStopLoss, "stop", entry)
	require.NoError(t, err)
	_, err = book.ConfirmClose(ctx, "p1", 90, entry)
	require.NoError(t, err)
	require.InDelta(t, -20.0, book.RealizedPnL(), 1e-9)

	broker := &holdingsBroker{cash: 10_000, positions: []contracts.BrokerPosition{
		{Symbol: "AAPL", Quantity: 10, AveragePrice: 90, CurrentPrice: 100},
		{Symbol: "MSFT", Quantity: 2, AveragePrice: 300},
	}}
	job := NewSessionResetJob(book, broker, logger.NewNop())
	assert.Equal(t, "0 25 9 * * MON-FRI", job.Schedule())
	require.NoError(t, job.Run(ctx))
	assert.Zero(t, book.RealizedPnL())
	assert.InDelta(t, 11_600.0, book.SessionEquity(), 1e-9)

	// 브로커 장애: 리셋은 진행, 평가금액은 미설정
	broker.err = errors.New("broker down")
	require.NoError(t, job.Run(ctx))
	assert.Zero(t, book.SessionEquity())
}

func TestSessionStart(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"after open", time.Date(2026, 10, 21, 11, 0, 0, 0, ny), time.Date(2026, 10, 21, 9, 25, 0, 0, ny)},
		{"before open", time.Date(2026, 10, 21, 8, 0, 0, 0, ny), time.Date(2026, 10, 20, 9, 25, 0, 0, ny)},
		{"monday pre-market", time.Date(2026, 10, 19, 7, 0, 0, 0, ny), time.Date(2026, 10, 16, 9, 25, 0, 0, ny)},
		{"sunday", time.Date(2026, 10, 18, 12, 0, 0, 0, ny), time.Date(2026, 10, 16, 9, 25, 0, 0, ny)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SessionStart(tt.now.UTC(), ny)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestDailySummary(t *testing.T) {
	book := bookWith(t,
		contracts.Position{ID: "p1", Symbol: "NVDA", Strategy: contracts.StrategyBreakout, EntryPrice: 100, EntryTime: entry, Quantity: 1},
		contracts.Position{ID: "p2", Symbol: "AMD", Strategy: contracts.StrategyGapFade, EntryPrice: 50, EntryTime: entry, Quantity: 4},
		contracts.Position{ID: "p3", Symbol: "TSLA", Strategy: contracts.StrategyBreakout, EntryPrice: 200, EntryTime: entry, Quantity: 1},
	)
	ctx := context.Background()
	_, _, err := book.BeginClose(ctx, "p2", contracts.ExitReasonSessionForceClose, "15:45", entry)
	require.NoError(t, err)
	_, err = book.ConfirmClose(ctx, "p2", 55, entry.Add(time.Hour))
	require.NoError(t, err)
	_, _, err = book.BeginClose(ctx, "p3", contracts.ExitReasonStopLoss, "stop", entry)
	require.NoError(t, err)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	notifier := &recordingNotifier{}
	j := NewDailySummaryJob(book, notifier, ny, logger.NewNop())
	j.now = func() time.Time { return entry.Add(6 * time.Hour) }

	require.NoError(t, j.Run(ctx))
	require.Len(t, notifier.messages[contracts.CategorySummary], 1)
	msg := notifier.messages[contracts.CategorySummary][0]
	assert.Contains(t, msg, "Session 2026-10-19")
	assert.Contains(t, msg, "Open positions: 2 (pending close 1)")
	assert.Contains(t, msg, "breakout: 2")
	assert.Contains(t, msg, "closed gap_fade AMD")
	assert.Contains(t, msg, "+10.00%")
	assert.Contains(t, msg, "Closed today: 1, realized P&L 20.00")
}

func TestReconcile(t *testing.T) {
	broker := []contracts.BrokerPosition{
		{Symbol: "NVDA", Quantity: 3},
		{Symbol: "MSFT", Quantity: 1},
	}
	book := []contracts.Position{
		{Symbol: "NVDA", Quantity: 1},
		{Symbol: "NVDA", Quantity: 2},
		{Symbol: "AAPL", Quantity: 5},
	}
	assert.Equal(t, []string{"AAPL broker=0 book=5", "MSFT broker=1 book=0"}, Reconcile(broker, book))
	assert.Empty(t, Reconcile(broker[:1], book[:2]))
}

func TestReconcileJob(t *testing.T) {
	book := bookWith(t, contracts.Position{ID: "p1", Symbol: "NVDA", Strategy: contracts.StrategyBreakout, EntryPrice: 100, EntryTime: entry, Quantity: 2})
	notifier := &recordingNotifier{}

	matched := NewReconcileJob(&holdingsBroker{positions: []contracts.BrokerPosition{{Symbol: "NVDA", Quantity: 2}}}, book, notifier, logger.NewNop())
	require.NoError(t, matched.Run(context.Background()))
	assert.Empty(t, notifier.messages[contracts.CategoryError])

	drifted := NewReconcileJob(&holdingsBroker{}, book, notifier, logger.NewNop())
	require.NoError(t, drifted.Run(context.Background()))
	require.Len(t, notifier.messages[contracts.CategoryError], 1)
	assert.Contains(t, notifier.messages[contracts.CategoryError][0], "NVDA broker=0 book=2")

	failing := NewReconcileJob(&holdingsBroker{err: errors.New("down")}, book, notifier, logger.NewNop())
	assert.Error(t, failing.Run(context.Background()))
}
