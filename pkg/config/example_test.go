package config_test

import (
	"fmt"

	"github.com/wonny/aegis-swing/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Server running on port: %s\n", cfg.Port)
	fmt.Printf("Storage backend: %s\n", cfg.Trading.StorageBackend)
	fmt.Printf("Strategy config: %s\n", cfg.Trading.StrategyConfigPath)
}
