// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/homeledger, cmd/ledger-worker, and cmd/recurring-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"homeledger/internal/backend"
	"homeledger/internal/config"
	"homeledger/internal/core"
	"homeledger/internal/ledger"
	applog "homeledger/internal/log"
	"homeledger/internal/services"
)

// SetupLogger initializes structured logging at the given LOG_LEVEL and sets it
// as the default logger. Unknown levels fall back to info.
func SetupLogger(level, component string) *applog.Logger {
	lvl, err := applog.ParseLevel(level)
	logger := applog.New(applog.Config{
		Level:     lvl,
		Component: component,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}),
	}).WithComponent(component)
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info logging", "error", err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend creates the configured store and event client.
// Returns the backend or exits the process on failure.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// Services bundles the write and read paths over one backend.
type Services struct {
	Ledger  *services.LedgerService
	Reports *services.ReportService
}

// BuildServices wires the ledger and report services. Every successful write
// invalidates the report cache.
func BuildServices(cfg *config.Config, res *backend.BackendResult) Services {
	matcher, err := ledger.GetMatcher(cfg.BudgetMatch)
	if err != nil {
		// Validate rejects unknown strategies; fall back for callers that skip it
		matcher = ledger.SubstringMatcher{}
	}
	reports := services.NewReportService(res.Store, services.ReportConfig{
		Budgets:   cfg.BudgetList(),
		Matcher:   matcher,
		CacheSize: cfg.ReportCacheSize,
		CacheTTL:  cfg.ReportCacheTTL,
	})

	var publisher services.Publisher
	if res.Events != nil {
		publisher = res.Events
	}
	ledgerSvc := services.NewLedgerService(res.Store, core.NewValidator(cfg.HouseholdMembers), publisher, cfg.WriteRetries)
	ledgerSvc.OnWrite(reports.Invalidate)

	return Services{Ledger: ledgerSvc, Reports: reports}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals or when parent
// ends, and a channel that signals when cleanup is complete.
func GracefulShutdown(parent context.Context, logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
			logger.Info("Context cancelled")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
