package handlers

import (
	"errors"
	"io"
	"net/http"

	"movieposter/internal/domain"
	"movieposter/internal/metrics"
	"movieposter/internal/providers/replicate"
)

// ReceiveWebhook handles POST /api/webhooks, the callback registered with
// each prediction. It only records state; clients keep polling.
func (a *App) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		a.error(w, r, domain.InvalidInput("Unable to read request body."))
		return
	}
	if err := a.Webhooks.Verify(r.Header, body); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("rejected").Inc()
		a.Logger.Warn().Err(err).Str("webhook_id", r.Header.Get("webhook-id")).Msg("webhook rejected")
		status := http.StatusUnauthorized
		if errors.Is(err, replicate.ErrStaleWebhook) {
			status = http.StatusBadRequest
		}
		a.json(w, status, map[string]string{"detail": "Invalid webhook signature."})
		return
	}

	prediction, err := replicate.DecodeWebhook(body)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("malformed").Inc()
		a.error(w, r, err)
		return
	}
	metrics.WebhookEventsTotal.WithLabelValues(webhookStatusLabel(prediction.Status)).Inc()
	a.Logger.Info().
		Str("prediction_id", prediction.ID).
		Str("status", string(prediction.Status)).
		Msg("prediction webhook received")

	if a.Predictions != nil {
		if err := a.Predictions.UpdateSnapshot(r.Context(), *prediction); err != nil && !errors.Is(err, domain.ErrNotFound) {
			a.Logger.Error().Err(err).Str("prediction_id", prediction.ID).Msg("record webhook snapshot")
			a.json(w, http.StatusInternalServerError, map[string]string{"detail": "Failed to record prediction."})
			return
		}
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// webhookStatusLabel bounds the metric label to the statuses the generation
// service sends; the body is client controlled.
func webhookStatusLabel(status domain.PredictionStatus) string {
	switch status {
	case domain.PredictionStarting, domain.PredictionProcessing, domain.PredictionSucceeded,
		domain.PredictionFailed, domain.PredictionCanceled:
		return string(status)
	default:
		return "other"
	}
}
