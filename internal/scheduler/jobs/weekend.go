package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/aegis-swing/internal/pipeline"
	"github.com/wonny/aegis-swing/pkg/logger"
)

// WeekendJob prepares and freezes next week's universe
// ⭐ SSOT: 주말 파이프라인 스케줄은 이 Job에서만
type WeekendJob struct {
	controller *pipeline.Controller
	schedule   string
	logger     *logger.Logger
}

// NewWeekendJob creates the weekend pipeline job (Saturday 08:00 exchange time)
func NewWeekendJob(controller *pipeline.Controller, log *logger.Logger) *WeekendJob {
	return &WeekendJob{
		controller: controller,
		schedule:   "0 0 8 * * SAT",
		logger:     log,
	}
}

// Name returns the job name
func (j *WeekendJob) Name() string {
	return "weekend_pipeline"
}

// Schedule returns the cron schedule
func (j *WeekendJob) Schedule() string {
	return j.schedule
}

// Run executes one pipeline pass.
// 이미 FROZEN 인 주는 noop (재시도해도 안전)
func (j *WeekendJob) Run(ctx context.Context) error {
	report, err := j.controller.Run(ctx, pipeline.RunOptions{})
	if err != nil {
		return fmt.Errorf("weekend pipeline: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"week":        report.Week,
		"state":       report.State,
		"instruments": report.Instruments,
		"signals":     report.Signals,
		"skipped":     report.Skipped,
	}).Info("Weekend pipeline finished")
	return nil
}
