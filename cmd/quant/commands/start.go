package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-swing/internal/api"
	"github.com/wonny/aegis-swing/internal/scheduler/jobs"
)

// startCmd runs the full trading daemon
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "트레이딩 데몬 시작 (API + 스케줄러 + 무효화 엔진 + 뉴스 모니터)",
	Long: `트레이딩 데몬을 시작합니다.

이 명령어는:
- 저장된 포지션 복원
- 스케줄러 시작 (주말 파이프라인, 전략별 스캔, 세션 리셋, 일일 요약, 대사)
- 무효화 엔진 시작 (30초 주기)
- 뉴스 모니터 시작
- HTTP API 서버 시작

Endpoints:
  GET  /health
  GET  /metrics
  GET  /ws/events
  GET  /api/universe/current
  GET  /api/universe/{week}
  GET  /api/positions
  GET  /api/positions/closed
  GET  /api/exits
  GET  /api/pipeline/last
  GET  /api/scheduler/jobs
  POST /api/scheduler/jobs/{name}/run
  GET  /api/scheduler/jobs/{name}/history

Example:
  go run ./cmd/quant start
  go run ./cmd/quant start --port 8090`,
	RunE: runStart,
}

var apiPort string

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runStart(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Swing ===")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	log := a.logger

	// 0. 세션 시작 평가금액 (일일 손실 한도 기준)
	if equity, err := jobs.SnapshotEquity(ctx, a.broker, a.book); err != nil {
		log.WithError(err).Warn("Session equity snapshot failed, loss limit falls back to cash")
	} else {
		log.WithField("equity", equity).Info("Session equity snapshot")
	}

	// 1. Scheduler
	a.scheduler.Start()
	defer a.scheduler.Stop()

	// 2. Invalidation engine & news monitor
	if err := a.engine.Start(ctx); err != nil {
		return fmt.Errorf("start invalidation engine: %w", err)
	}
	defer a.engine.Stop()

	if err := a.monitor.Start(ctx); err != nil {
		return fmt.Errorf("start news monitor: %w", err)
	}
	defer a.monitor.Stop()

	// 3. API server (SIGINT/SIGTERM 까지)
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(map[string]interface{}{
		"port":     a.cfg.Port,
		"jobs":     len(a.scheduler.GetAllJobs()),
		"paper":    a.cfg.Broker.Paper,
		"dry_run":  a.cfg.Trading.DryRun,
		"strategy": a.cfg.Trading.StrategyConfigPath,
	}).Info("Aegis Swing started")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nRegistered jobs:")
	for _, name := range a.scheduler.GetAllJobs() {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	if err := api.New(a.cfg, log, a.router()).Run(sigCtx); err != nil {
		return err
	}
	log.Info("Shutting down...")
	return nil
}
