package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/pipeline"
)

// weekendCmd represents the weekend pipeline command group
var weekendCmd = &cobra.Command{
	Use:   "weekend",
	Short: "주말 파이프라인 (수집 → 채점 → 저장 → 동결)",
}

var weekendRunCmd = &cobra.Command{
	Use:   "run",
	Short: "주말 파이프라인 즉시 실행",
	Long: `다음 거래 주의 유니버스를 수집/채점하고 동결합니다.
이미 동결된 주는 다시 계산하지 않습니다.

Example:
  go run ./cmd/quant weekend run
  go run ./cmd/quant weekend run --week 2026-W43`,
	RunE: runWeekend,
}

var weekendWeek string

func init() {
	rootCmd.AddCommand(weekendCmd)
	weekendCmd.AddCommand(weekendRunCmd)
	weekendRunCmd.Flags().StringVar(&weekendWeek, "week", "", "ISO week (예: 2026-W43, 기본: 다음 거래 주)")
}

func runWeekend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var opts pipeline.RunOptions
	if weekendWeek != "" {
		week, err := contracts.ParseWeekKey(weekendWeek)
		if err != nil {
			return err
		}
		opts.Week = week
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.pipeline.Run(ctx, opts)
	if report != nil {
		PrintRunReport(report)
	}
	if err != nil {
		return fmt.Errorf("weekend pipeline: %w", err)
	}
	return nil
}
