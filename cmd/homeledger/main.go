package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"homeledger/internal/amqp"
	"homeledger/internal/backend"
	"homeledger/internal/cli"
	apphttp "homeledger/internal/http"
	applog "homeledger/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.InitBackend(context.Background(), logger, cfg)
	svc := cli.BuildServices(cfg, res)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:                 ":" + cfg.Port,
		Logger:               logger,
		RequestsPerMinute:    cfg.RateLimitPerMinute,
		CacheCleanupInterval: cfg.ReportCacheTTL,
		Checks:               readinessChecks(res),
	}, svc.Ledger, svc.Reports)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting homeledger server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		_ = res.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// readinessChecks probes the store and, when events are enabled, the broker.
func readinessChecks(res *backend.BackendResult) []apphttp.ReadinessCheck {
	var checks []apphttp.ReadinessCheck
	if res.Ping != nil {
		checks = append(checks, apphttp.ReadinessCheck{Name: "store", Check: res.Ping})
	}
	if res.Events != nil {
		events := res.Events
		checks = append(checks, apphttp.ReadinessCheck{Name: "amqp", Check: func(context.Context) error {
			return brokerHealth(events)
		}})
	}
	return checks
}

func brokerHealth(c *amqp.Client) error {
	if !c.Healthy() {
		return errors.New("broker connection is down")
	}
	return nil
}
