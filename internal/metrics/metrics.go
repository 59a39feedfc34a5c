package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK         = "ok"
	OutcomeInvalid    = "invalid"
	OutcomeNotFound   = "not_found"
	OutcomeStoreError = "store_error"
	OutcomeDropped    = "dropped"
)

var (
	ReportQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinwatch_report_queries_total",
		Help: "Report, analytics and export queries by outcome",
	}, []string{"kind", "outcome"})

	ReportQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coinwatch_report_query_duration_seconds",
		Help:    "Time spent answering a report query",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	ReportEventsReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coinwatch_report_events_returned",
		Help:    "Events returned by the store per query",
		Buckets: []float64{0, 10, 50, 100, 250, 500, 1000},
	})

	IngestedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinwatch_ingested_events_total",
		Help: "Telemetry messages received from devices by outcome",
	}, []string{"outcome"})
)

// ObserveQuery records one finished query of the given kind.
func ObserveQuery(kind, outcome string, started time.Time, events int) {
	ReportQueries.WithLabelValues(kind, outcome).Inc()
	ReportQueryDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	if outcome == OutcomeOK {
		ReportEventsReturned.Observe(float64(events))
	}
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }
