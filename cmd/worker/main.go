package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admin-backend/internal/bootstrap"
	"admin-backend/internal/config"
	"admin-backend/internal/observability"
	"admin-backend/internal/server"
)

func main() {
	// Initialize logger
	logger := observability.NewLogger()
	defer logger.Sync()

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(ctx, "failed to load configuration", err)
	}

	logger.Info(ctx, "Starting admin backend worker...")

	deps, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "failed to initialize dependencies", err)
		os.Exit(1)
	}

	health := server.New(cfg.Server.Port, deps.Checks, logger)
	serverErr := health.Start(ctx)

	// Consume until a signal arrives or the health server fails
	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err, ok := <-serverErr; ok && err != nil {
			logger.Error(ctx, "health server stopped", err)
			cancel()
		}
	}()

	runErr := deps.Dispatcher.Run(runCtx, deps.Source)
	cancel()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error(ctx, "dispatcher stopped with error", runErr)
	}

	logger.Info(ctx, "Shutting down admin backend worker...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancelShutdown()

	if err := health.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "failed to stop health server", err)
	}
	deps.Cleanup(shutdownCtx)

	logger.Info(shutdownCtx, "Admin backend worker stopped")
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}
