package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"movieposter/internal/http/handlers"
	"movieposter/internal/infra"
	"movieposter/internal/middleware"
)

// Options tunes the middleware stack.
type Options struct {
	Logger          infra.Logger
	CORSOrigins     []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/webhooks", app.ReceiveWebhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
			r.Post("/tmdb", app.SearchActor)
			r.Post("/predictions", app.CreatePrediction)
			r.Get("/predictions/{id}", app.GetPrediction)
			r.Get("/download", app.DownloadImage)
		})
	})

	return r
}
