package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"movieposter/internal/adapter/repo"
	"movieposter/internal/infra"
	"movieposter/internal/providers/replicate"
	"movieposter/internal/reconcile"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.ParseConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	store := repo.NewPredictionRepository(infra.NewSQLRunner(pool, logger))
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to prepare prediction store")
	}

	client := replicate.NewClient(replicate.Options{
		APIToken:   cfg.Replicate.APIToken,
		BaseURL:    cfg.Replicate.BaseURL,
		Model:      cfg.Replicate.Model,
		HTTPClient: &http.Client{Timeout: cfg.UpstreamTimeout},
		Logger:     &logger,
	})
	if !client.HasCredentials() {
		logger.Fatal().Msg("worker: REPLICATE_API_TOKEN environment variable is not set")
	}

	worker := reconcile.New(store, client, cfg, &logger)
	if err := worker.Run(ctx, cfg.Worker.Interval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
