package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"movieposter/internal/domain"
	"movieposter/internal/metrics"
	"movieposter/internal/poster"
)

type createPredictionRequest struct {
	Actor       *domain.Actor `json:"actor"`
	PosterStyle string        `json:"posterStyle"`
}

// CreatePrediction handles POST /api/predictions. The actor carries the
// selected movies, in the order they were picked.
func (a *App) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	var req createPredictionRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, r, err)
		return
	}
	if req.Actor == nil {
		a.error(w, r, domain.InvalidInput(`Missing "actor" in request body.`))
		return
	}
	style := poster.ParseStyle(req.PosterStyle)
	prompt, err := poster.Compose(req.Actor.Name, req.Actor.Movies, style)
	if err != nil {
		a.error(w, r, err)
		return
	}

	prediction, err := a.Generator.CreatePrediction(r.Context(), prompt)
	if err != nil {
		a.error(w, r, err)
		return
	}
	metrics.PredictionsCreatedTotal.WithLabelValues(style.String()).Inc()

	if a.Predictions != nil {
		rec := &domain.PredictionRecord{
			Prediction: *prediction,
			Prompt:     prompt,
			Style:      style.String(),
			ActorID:    req.Actor.ID,
			ActorName:  req.Actor.Name,
			UpdatedAt:  time.Now().UTC(),
		}
		if rec.Model == "" {
			rec.Model = a.Generator.Model()
		}
		if err := a.Predictions.Create(r.Context(), rec); err != nil {
			a.Logger.Warn().Err(err).Str("prediction_id", prediction.ID).Msg("store prediction")
		}
	}
	a.json(w, http.StatusCreated, prediction)
}

// GetPrediction handles GET /api/predictions/{id}.
func (a *App) GetPrediction(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		a.error(w, r, domain.InvalidInput("Missing prediction id."))
		return
	}
	prediction, err := a.Generator.GetPrediction(r.Context(), id)
	if err != nil {
		a.error(w, r, err)
		return
	}
	if a.Predictions != nil && prediction.Status.Terminal() {
		if err := a.Predictions.UpdateSnapshot(r.Context(), *prediction); err != nil {
			a.Logger.Warn().Err(err).Str("prediction_id", prediction.ID).Msg("update prediction snapshot")
		}
	}
	a.json(w, http.StatusOK, prediction)
}
