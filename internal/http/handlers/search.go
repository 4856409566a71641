package handlers

import (
	"net/http"
	"strings"

	"movieposter/internal/domain"
)

type searchRequest struct {
	Query string `json:"query"`
}

// SearchActor handles POST /api/tmdb.
func (a *App) SearchActor(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		a.error(w, r, domain.InvalidInput(`Missing "query" in request body.`))
		return
	}
	actor, err := a.Search.LookupActor(r.Context(), req.Query)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, actor)
}
