package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"attestd/internal/config"
	"attestd/internal/infra/db"
	httpinfra "attestd/internal/infra/http"
	"attestd/internal/infra/logging"
)

func main() {
	cfg := config.FromEnv()

	logger, err := logging.NewLogger(cfg.AttestdEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.NewStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to init store", zap.Error(err))
	}
	if store.Enabled() {
		if err := store.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate", zap.Error(err))
		}
		defer func() { _ = store.Close() }()
	}

	srv := httpinfra.NewServer(ctx, cfg, store, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("server stopped")
}
