package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"movieposter/internal/adapter/repo"
	"movieposter/internal/domain"
	"movieposter/internal/http/handlers"
	"movieposter/internal/http/httpapi"
	"movieposter/internal/infra"
	"movieposter/internal/providers/replicate"
	"movieposter/internal/providers/tmdb"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		bootstrap := infra.NewLogger(os.Getenv("APP_ENV"))
		bootstrap.Fatal().Str("detail", domain.Detail(err)).Err(err).Msg("invalid configuration")
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	upstream := &http.Client{Timeout: cfg.UpstreamTimeout}
	search := tmdb.NewClient(tmdb.Options{
		APIKey:     cfg.TMDB.APIKey,
		BaseURL:    cfg.TMDB.BaseURL,
		HTTPClient: upstream,
		Logger:     &logger,
	})
	generator := replicate.NewClient(replicate.Options{
		APIToken:   cfg.Replicate.APIToken,
		BaseURL:    cfg.Replicate.BaseURL,
		Model:      cfg.Replicate.Model,
		WebhookURL: cfg.WebhookURL(),
		HTTPClient: upstream,
		Logger:     &logger,
	})
	verifier, err := replicate.NewWebhookVerifier(cfg.Replicate.WebhookSecret, replicate.DefaultWebhookTolerance)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid REPLICATE_WEBHOOK_SECRET")
	}

	app := handlers.NewApp(search, generator, cfg.Download, &logger)
	app.HTTPClient = upstream
	app.Webhooks = verifier

	pool, err := infra.NewDBPool(ctx, cfg)
	switch {
	case errors.Is(err, infra.ErrDatabaseDisabled):
		logger.Info().Msg("DATABASE_URL not set, prediction store disabled")
	case err != nil:
		logger.Fatal().Err(err).Msg("failed to connect database")
	default:
		defer pool.Close()
		store := repo.NewPredictionRepository(infra.NewSQLRunner(pool, logger))
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare prediction store")
		}
		app.Predictions = store
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr()).
			Str("model", generator.Model()).
			Str("webhook", cfg.WebhookURL()).
			Msg("API listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
