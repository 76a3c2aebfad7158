package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-swing/internal/contracts"
)

// statusCmd prints the current week and the position book
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "현재 주 유니버스와 포지션 상태",
	Long: `현재 거래 주의 유니버스 동결 상태, 전략별 후보 수,
보유 포지션과 브로커 현금을 표시합니다.

Example:
  go run ./cmd/quant status
  STORAGE_BACKEND=postgres go run ./cmd/quant status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	week := a.binder.CurrentWeek()
	PrintHeader("Week " + string(week))

	u, err := a.store.LoadUniverse(ctx, week)
	switch {
	case errors.Is(err, contracts.ErrNotFound):
		PrintWarning("No universe stored for this week")
	case err != nil:
		return err
	default:
		PrintKeyValue("Frozen", fmt.Sprintf("%v", u.Frozen), 12)
		PrintKeyValue("Instruments", fmt.Sprintf("%d", len(u.Instruments)), 12)
		PrintKeyValue("Signals", fmt.Sprintf("%d", len(u.Signals)), 12)
		counts := make(map[contracts.StrategyID]int)
		for _, s := range u.Signals {
			if s.Candidate {
				counts[s.Strategy]++
			}
		}
		for _, id := range contracts.AllStrategies {
			PrintKeyValue(string(id), fmt.Sprintf("%d candidates", counts[id]), 12)
		}
	}

	cash, err := a.broker.GetAccountCash(ctx)
	if err != nil {
		PrintError("broker cash: " + err.Error())
	} else {
		PrintKeyValue("Cash", fmt.Sprintf("%.2f", cash), 12)
	}

	active := a.book.Active()
	sort.Slice(active, func(i, j int) bool { return active[i].EntryTime.Before(active[j].EntryTime) })

	fmt.Println()
	widths := []int{16, 8, 10, 10, 10, 14}
	PrintTableHeader([]string{"Strategy", "Symbol", "Qty", "Entry", "HWM", "Status"}, widths)
	for _, p := range active {
		PrintTableRow([]string{
			string(p.Strategy),
			p.Symbol,
			fmt.Sprintf("%g", p.Quantity),
			fmt.Sprintf("%.2f", p.EntryPrice),
			fmt.Sprintf("%.2f", p.HighWaterMark),
			string(p.Status),
		}, widths)
	}
	return nil
}
