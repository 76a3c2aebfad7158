package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-swing/internal/contracts"
)

// scanCmd runs one strategy scan against the current frozen week
var scanCmd = &cobra.Command{
	Use:   "scan [strategy]",
	Short: "전략 스캔 즉시 실행",
	Long: `현재 주의 동결된 유니버스로 전략 스캔을 한 번 실행합니다.
NO-TRADE 게이트, 사이징, 전략별 한도가 그대로 적용됩니다.

Strategies:
  earnings, sector_momentum, mean_reversion, breakout, gap_fade, vwap, orb

Example:
  go run ./cmd/quant scan breakout
  DRY_RUN=true go run ./cmd/quant scan gap_fade`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	strategy := contracts.StrategyID(args[0])
	if !strategy.Valid() {
		return fmt.Errorf("unknown strategy %q", args[0])
	}

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ctrl, err := a.binder.Current(ctx)
	if err != nil {
		return err
	}
	report, err := ctrl.RunScan(ctx, strategy)
	if err != nil {
		return err
	}
	PrintScanReport(report)
	return nil
}
