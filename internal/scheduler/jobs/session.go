package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/portfolio"
	"github.com/wonny/aegis-swing/pkg/logger"
)

const (
	sessionResetHour   = 9
	sessionResetMinute = 25
)

// SessionResetJob clears closed-this-session state before the open
// and snapshots the account value for the daily loss limit
type SessionResetJob struct {
	book   *portfolio.Book
	broker contracts.Broker
	logger *logger.Logger
}

// NewSessionResetJob creates the pre-open reset job (09:25)
func NewSessionResetJob(book *portfolio.Book, broker contracts.Broker, log *logger.Logger) *SessionResetJob {
	return &SessionResetJob{book: book, broker: broker, logger: log}
}

// Name returns the job name
func (j *SessionResetJob) Name() string {
	return "session_reset"
}

// Schedule returns the cron schedule
func (j *SessionResetJob) Schedule() string {
	return fmt.Sprintf("0 %d %d * * MON-FRI", sessionResetMinute, sessionResetHour)
}

// Run resets the session
func (j *SessionResetJob) Run(ctx context.Context) error {
	j.book.ResetSession()
	equity, err := SnapshotEquity(ctx, j.broker, j.book)
	if err != nil {
		// 스냅샷 실패 시 스캔은 현금 기준으로 한도 계산
		j.logger.WithError(err).Warn("Session equity snapshot failed")
	}
	j.logger.WithField("equity", equity).Info("Trading session reset")
	return nil
}

// SnapshotEquity records cash + broker holdings at market as the session equity
func SnapshotEquity(ctx context.Context, broker contracts.Broker, book *portfolio.Book) (float64, error) {
	cash, err := broker.GetAccountCash(ctx)
	if err != nil {
		return 0, fmt.Errorf("account cash: %w", err)
	}
	holdings, err := broker.GetPositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("broker positions: %w", err)
	}

	equity := cash
	for _, h := range holdings {
		price := h.CurrentPrice
		if price <= 0 {
			price = h.AveragePrice
		}
		equity += h.Quantity * price
	}
	book.SetSessionEquity(equity)
	return equity, nil
}

// SessionStart returns the latest weekday 09:25 (loc) at or before now.
// 재시작 시 당일 청산 이력 복원 기준
func SessionStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), sessionResetHour, sessionResetMinute, 0, 0, loc)
	if local.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	for start.Weekday() == time.Saturday || start.Weekday() == time.Sunday {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

// DailySummaryJob sends the end-of-day position summary
type DailySummaryJob struct {
	book     *portfolio.Book
	notifier contracts.Notifier
	loc      *time.Location
	logger   *logger.Logger
	now      func() time.Time
}

// NewDailySummaryJob creates the after-close summary job (16:05)
func NewDailySummaryJob(book *portfolio.Book, notifier contracts.Notifier, loc *time.Location, log *logger.Logger) *DailySummaryJob {
	return &DailySummaryJob{book: book, notifier: notifier, loc: loc, logger: log, now: time.Now}
}

// Name returns the job name
func (j *DailySummaryJob) Name() string {
	return "daily_summary"
}

// Schedule returns the cron schedule
func (j *DailySummaryJob) Schedule() string {
	return "0 5 16 * * MON-FRI"
}

// Run builds and sends the summary
func (j *DailySummaryJob) Run(ctx context.Context) error {
	msg := j.Summary()
	j.logger.Info(msg)
	if err := j.notifier.Notify(ctx, contracts.CategorySummary, msg); err != nil {
		j.logger.WithError(err).Warn("Summary notification failed")
	}
	return nil
}

// Summary formats today's activity
func (j *DailySummaryJob) Summary() string {
	today := j.now().In(j.loc).Format("2006-01-02")

	var b strings.Builder
	fmt.Fprintf(&b, "Session %s\n", today)

	active := j.book.Active()
	byStrategy := make(map[contracts.StrategyID]int)
	pending := 0
	for _, p := range active {
		byStrategy[p.Strategy]++
		if p.Status == contracts.PositionPendingClose {
			pending++
		}
	}
	fmt.Fprintf(&b, "Open positions: %d (pending close %d)\n", len(active), pending)
	ids := make([]string, 0, len(byStrategy))
	for id := range byStrategy {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(&b, "  %s: %d\n", id, byStrategy[contracts.StrategyID(id)])
	}

	closed := 0
	for _, p := range j.book.Closed() {
		if p.ClosedAt != nil && p.ClosedAt.In(j.loc).Format("2006-01-02") == today {
			closed++
			fmt.Fprintf(&b, "  closed %s %s %s %+.2f%%\n", p.Strategy, p.Symbol, p.InvalidationReason, p.PnLPct(p.ExitPrice))
		}
	}
	fmt.Fprintf(&b, "Closed today: %d, realized P&L %.2f", closed, j.book.RealizedPnL())
	return b.String()
}
