package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `등록된 작업을 조회하거나 즉시 실행합니다.
스케줄러 자체는 start 명령어에서 함께 실행됩니다.

Subcommands:
  list    - 등록된 작업과 다음 실행 시각
  run     - 특정 작업 즉시 실행 (동기)

Example:
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run weekend_pipeline
  go run ./cmd/quant scheduler run position_reconcile`,
}

var (
	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := buildApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	// Next 는 cron 이 시작된 뒤에만 계산됨
	a.scheduler.Start()
	defer a.scheduler.Stop()

	stats := a.scheduler.GetJobStats()
	loc := a.strategy.Location()

	PrintHeader("Registered jobs (" + loc.String() + ")")
	widths := []int{22, 22, 20}
	PrintTableHeader([]string{"Job", "Schedule", "Next run"}, widths)
	for _, name := range a.scheduler.GetAllJobs() {
		next := "-"
		if s := stats[name]; s.NextRun != nil {
			next = s.NextRun.In(loc).Format("Mon 01-02 15:04")
		}
		PrintTableRow([]string{name, stats[name].Schedule, next}, widths)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	a, err := buildApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	jobName := args[0]
	fmt.Printf("Running job: %s\n", jobName)

	result, err := a.scheduler.RunJobSync(jobName)
	if err != nil {
		return err
	}
	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %s: %s", jobName, result.Duration.Round(time.Millisecond), result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %s", jobName, result.Duration.Round(time.Millisecond)))
	return nil
}
