package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vizpilot/internal/app"
	"vizpilot/internal/config"
	httpinfra "vizpilot/internal/infra/http"
	"vizpilot/internal/infra/logging"

	"github.com/spf13/afero"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, afero.NewOsFs(), logger)
	if err != nil {
		log.Fatalf("failed to init pipeline: %v", err)
	}
	defer a.Close()

	srv := httpinfra.NewServerWithDeps(cfg, httpinfra.ServerDeps{
		Viz:       a.Orchestrator,
		Metrics:   a.Metrics.Handler(),
		Logger:    logger,
		StoreMode: a.StoreMode,
	})
	logger.WithField("addr", cfg.HTTPAddr).Info("vizpilot listening")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
