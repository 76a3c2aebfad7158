package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Aegis Swing - 미국 주식 멀티 전략 스윙 트레이딩",
	Long: `Aegis Swing Unified CLI

주말에 7개 전략으로 유니버스를 채점/동결하고,
평일에는 전략별 스캔 시각에 진입, 무효화 엔진이 청산을 담당합니다.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant start
  go run ./cmd/quant weekend run
  go run ./cmd/quant scan breakout
  go run ./cmd/quant scheduler list
  go run ./cmd/quant status
  go run ./cmd/quant test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (LOG_LEVEL=debug)")
}
