package main

import (
	"context"
	"errors"
	"os"
	"time"

	"homeledger/internal/cli"
	applog "homeledger/internal/log"
	"homeledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("ledger-worker consumes record events and needs AMQP_URL")
		os.Exit(1)
	}

	res := cli.InitBackend(context.Background(), logger, cfg)
	if res.Events == nil {
		logger.Error("Broker unreachable, nothing to consume", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		_ = res.Close()
		os.Exit(1)
	}
	svc := cli.BuildServices(cfg, res)
	alerts := worker.NewBudgetAlertWorker(svc.Reports, logger.WithComponent(applog.ComponentBudget))

	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx, done := cli.GracefulShutdown(parent, logger, 30*time.Second, func(context.Context) {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	// Events published while the worker was down are gone; evaluate the
	// current month once so existing overruns are still reported.
	if err := alerts.StartupCheck(ctx, time.Now()); err != nil {
		logger.Error("Startup budget check failed", "error", err)
	}

	go func() {
		err := res.Events.ConsumeRecordAppended(ctx, alerts.HandleRecordAppended)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
		cancel()
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("ledger-worker stopped")
}
