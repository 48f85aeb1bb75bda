// Command worker runs the maintenance scheduler outside the API process, for
// deployments that set MAINTENANCE_IN_API=false.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"glucowizard/internal/infra"
	"glucowizard/internal/maintenance"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel, cfg.LogFile).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	scheduler := maintenance.NewScheduler(infra.NewSQLRunner(pool, logger), cfg.MaintenanceSchedule, cfg.StaleReportAfter, logger)

	// One pass at start so a restart after downtime cleans up right away.
	if res, err := scheduler.RunOnce(ctx); err != nil {
		logger.Error().Err(err).Msg("initial maintenance pass failed")
	} else {
		logger.Info().Int64("expired_flows", res.ExpiredFlows).Int64("stale_reports", res.StaleReports).Msg("initial maintenance pass")
	}

	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("worker: scheduler start failed")
	}
	logger.Info().Time("next_run", scheduler.NextRun()).Msg("worker started")

	<-ctx.Done()
	scheduler.Stop()
	logger.Info().Msg("worker stopped")
}
