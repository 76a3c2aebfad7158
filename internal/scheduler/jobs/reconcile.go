package jobs

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/portfolio"
	"github.com/wonny/aegis-swing/pkg/logger"
)

const qtyTolerance = 1e-6

// ReconcileJob compares broker holdings with the position book
type ReconcileJob struct {
	broker   contracts.Broker
	book     *portfolio.Book
	notifier contracts.Notifier
	logger   *logger.Logger
}

// NewReconcileJob creates the after-close reconciliation job (16:10)
func NewReconcileJob(broker contracts.Broker, book *portfolio.Book, notifier contracts.Notifier, log *logger.Logger) *ReconcileJob {
	return &ReconcileJob{broker: broker, book: book, notifier: notifier, logger: log}
}

// Name returns the job name
func (j *ReconcileJob) Name() string {
	return "position_reconcile"
}

// Schedule returns the cron schedule
func (j *ReconcileJob) Schedule() string {
	return "0 10 16 * * MON-FRI"
}

// Run reports symbols whose quantities differ
func (j *ReconcileJob) Run(ctx context.Context) error {
	held, err := j.broker.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("broker positions: %w", err)
	}

	mismatches := Reconcile(held, j.book.Active())
	if len(mismatches) == 0 {
		j.logger.WithField("symbols", len(held)).Info("Positions reconciled")
		return nil
	}

	j.logger.WithField("mismatches", mismatches).Warn("Position mismatch with broker")
	msg := "position mismatch: " + strings.Join(mismatches, ", ")
	if err := j.notifier.Notify(ctx, contracts.CategoryError, msg); err != nil {
		j.logger.WithError(err).Warn("Notification failed")
	}
	return nil
}

// Reconcile returns "SYMBOL broker=x book=y" for every quantity difference
func Reconcile(broker []contracts.BrokerPosition, book []contracts.Position) []string {
	qty := make(map[string][2]float64)
	for _, p := range broker {
		q := qty[p.Symbol]
		q[0] += p.Quantity
		qty[p.Symbol] = q
	}
	for _, p := range book {
		q := qty[p.Symbol]
		q[1] += p.Quantity
		qty[p.Symbol] = q
	}

	var out []string
	for symbol, q := range qty {
		if math.Abs(q[0]-q[1]) > qtyTolerance {
			out = append(out, fmt.Sprintf("%s broker=%g book=%g", symbol, q[0], q[1]))
		}
	}
	sort.Strings(out)
	return out
}
