package main

import (
	"context"
	"os"
	"time"

	"homeledger/internal/cli"
	"homeledger/internal/core"
	applog "homeledger/internal/log"
	"homeledger/internal/services"
	"homeledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting recurring-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	templates, err := services.LoadRecurring(cfg.RecurringFile, core.NewValidator(cfg.HouseholdMembers))
	if err != nil {
		logger.Error("Failed to load recurring templates", "error", err, "path", cfg.RecurringFile)
		os.Exit(1)
	}
	if len(templates) == 0 {
		logger.Warn("No recurring templates configured", "path", cfg.RecurringFile)
	}

	res := cli.InitBackend(context.Background(), logger, cfg)
	svc := cli.BuildServices(cfg, res)
	processor := services.NewRecurringProcessor(res.Store, svc.Ledger, templates)

	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"templates", len(templates),
		"backend", cfg.DataBackend)

	// A zero interval books what is due once, for use from cron
	if cfg.RecurringInterval == 0 {
		count, err := processor.ProcessDue(context.Background(), time.Now())
		if cerr := res.Close(); cerr != nil {
			logger.Error("Backend cleanup error", "error", cerr)
		}
		if err != nil {
			logger.Error("Recurring processing failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Recurring processing complete", "transactions_created", count)
		return
	}

	scheduler := worker.NewScheduler(processor, cfg.RecurringInterval)
	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Error("Scheduler stop error", "error", err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		_ = res.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("recurring-worker stopped")
}
