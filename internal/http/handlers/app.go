package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"movieposter/internal/domain"
	"movieposter/internal/infra"
	"movieposter/internal/middleware"
	"movieposter/internal/providers/replicate"
)

const maxRequestBytes = 1 << 20

// ActorSearcher resolves a free-text query to an actor and their credits.
type ActorSearcher interface {
	LookupActor(ctx context.Context, query string) (*domain.Actor, error)
}

// PredictionClient submits and reads generation jobs.
type PredictionClient interface {
	CreatePrediction(ctx context.Context, prompt string) (*domain.Prediction, error)
	GetPrediction(ctx context.Context, id string) (*domain.Prediction, error)
	Model() string
}

// App carries the dependencies shared by all handlers. Predictions and
// Webhooks are optional.
type App struct {
	Search      ActorSearcher
	Generator   PredictionClient
	Predictions domain.PredictionRepository
	Webhooks    *replicate.WebhookVerifier
	Download    infra.DownloadConfig
	HTTPClient  *http.Client
	Logger      infra.Logger
}

func NewApp(search ActorSearcher, generator PredictionClient, download infra.DownloadConfig, logger *infra.Logger) *App {
	return &App{
		Search:     search,
		Generator:  generator,
		Download:   download,
		HTTPClient: &http.Client{},
		Logger:     infra.LoggerOrDiscard(logger),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// error maps err to its status code and writes {"detail": ...}. Errors that
// are not domain errors are logged and reported generically.
func (a *App) error(w http.ResponseWriter, r *http.Request, err error) {
	de, ok := domain.AsError(err)
	if !ok {
		a.Logger.Error().Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("unexpected handler error")
		a.json(w, http.StatusInternalServerError, map[string]string{"detail": "An unexpected error occurred."})
		return
	}
	status := de.HTTPStatus()
	if status >= http.StatusInternalServerError {
		a.Logger.Error().Err(err).
			Str("path", r.URL.Path).
			Int("status", status).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("request failed")
	}
	a.json(w, status, map[string]string{"detail": de.Detail})
}

func (a *App) decode(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.InvalidInput("Request body must be valid JSON.")
	}
	return nil
}

func (a *App) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}
