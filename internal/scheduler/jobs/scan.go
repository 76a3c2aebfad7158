package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/execution"
	"github.com/wonny/aegis-swing/pkg/logger"
)

// ScanJob runs one strategy's weekday scan at its check time.
// 스캔은 재시도하지 않음 (남은 후보는 다음 윈도우로)
type ScanJob struct {
	strategy contracts.StrategyID
	schedule string
	binder   *execution.Binder
	logger   *logger.Logger
}

// NewScanJob creates a Mon–Fri scan job at checkTime (HH:MM exchange time)
func NewScanJob(strategy contracts.StrategyID, checkTime string, binder *execution.Binder, log *logger.Logger) (*ScanJob, error) {
	t, err := time.Parse("15:04", checkTime)
	if err != nil {
		return nil, fmt.Errorf("%w: scan %s check time %q", contracts.ErrConfiguration, strategy, checkTime)
	}
	return &ScanJob{
		strategy: strategy,
		schedule: fmt.Sprintf("0 %d %d * * MON-FRI", t.Minute(), t.Hour()),
		binder:   binder,
		logger:   log,
	}, nil
}

// Name returns the job name
func (j *ScanJob) Name() string {
	return "scan_" + string(j.strategy)
}

// Schedule returns the cron schedule
func (j *ScanJob) Schedule() string {
	return j.schedule
}

// MaxRetries disables scheduler retries
func (j *ScanJob) MaxRetries() int {
	return 0
}

// Run executes the scan against the current frozen week
func (j *ScanJob) Run(ctx context.Context) error {
	ctrl, err := j.binder.Current(ctx)
	if err != nil {
		return fmt.Errorf("scan %s: %w", j.strategy, err)
	}

	report, err := ctrl.RunScan(ctx, j.strategy)
	if err != nil {
		return fmt.Errorf("scan %s: %w", j.strategy, err)
	}

	j.logger.WithFields(map[string]interface{}{
		"strategy": j.strategy,
		"week":     report.Week,
		"orders":   len(report.Orders),
		"skips":    len(report.Skips),
		"deferred": len(report.Deferred),
	}).Info("Scan job finished")
	return nil
}
