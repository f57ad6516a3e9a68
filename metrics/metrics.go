package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "posterbridge_session_state",
			Help: "Browser session state (0 uninitialized, 1 initializing, 2 ready, 3 failed)",
		},
	)

	SessionInitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posterbridge_session_inits_total",
			Help: "Browser session initialisation attempts by result",
		},
		[]string{"result"},
	)

	TitleResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posterbridge_title_resolutions_total",
			Help: "Title resolutions by outcome (resolved, skipped, fallback)",
		},
		[]string{"outcome"},
	)

	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posterbridge_searches_total",
			Help: "Poster site searches by outcome (matched, first_result, no_results, error)",
		},
		[]string{"outcome"},
	)

	PreviewFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "posterbridge_preview_failures_total",
			Help: "Poster previews that could not be fetched",
		},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posterbridge_uploads_total",
			Help: "Poster uploads by result (uploaded, skipped, download_failed, upload_failed)",
		},
		[]string{"result"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "posterbridge_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posterbridge_http_requests_total",
			Help: "HTTP API requests by route and status",
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveStage records how long a pipeline stage took since start.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
