package handlers

import (
	"net/http"
)

type healthResponse struct {
	Status      string `json:"status"`
	Model       string `json:"model,omitempty"`
	Predictions string `json:"predictions_store"`
	Webhooks    string `json:"webhook_verification"`
}

// Health reports liveness plus which optional components are switched on.
func (a *App) Health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		Predictions: enabled(a.Predictions != nil),
		Webhooks:    enabled(a.Webhooks != nil),
	}
	if a.Generator != nil {
		resp.Model = a.Generator.Model()
	}
	a.json(w, http.StatusOK, resp)
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
