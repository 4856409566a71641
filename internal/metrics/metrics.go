// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movieposter_http_requests_total",
		Help: "Total number of HTTP requests served",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "movieposter_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movieposter_upstream_requests_total",
		Help: "Outbound calls to third-party providers by outcome",
	}, []string{"provider", "operation", "outcome"})

	PredictionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movieposter_predictions_created_total",
		Help: "Predictions submitted to the generation service",
	}, []string{"style"})

	LifecycleOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movieposter_lifecycle_outcomes_total",
		Help: "Terminal outcomes reached by the prediction lifecycle",
	}, []string{"outcome"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movieposter_webhook_events_total",
		Help: "Prediction callbacks received by status",
	}, []string{"status"})

	DBQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movieposter_db_queries_total",
		Help: "Statements run by the prediction store by outcome",
	}, []string{"op", "outcome"})

	DBQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "movieposter_db_query_duration_seconds",
		Help:    "Latency of prediction store statements",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"op"})

	DownloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "movieposter_download_bytes_total",
		Help: "Bytes relayed by the download endpoint",
	})
)

// ObserveUpstream records the outcome of a provider call.
func ObserveUpstream(provider, operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	UpstreamRequestsTotal.WithLabelValues(provider, operation, outcome).Inc()
}
