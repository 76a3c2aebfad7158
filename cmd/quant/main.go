package main

import (
	"os"
	_ "time/tzdata" // America/New_York without a system zoneinfo

	"github.com/wonny/aegis-swing/cmd/quant/commands"
)

// main is the entry point for the Aegis Swing CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/quant [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
