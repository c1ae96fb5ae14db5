package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CatalogItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studysync_catalog_items_total",
			Help: "Catalog entries processed, by outcome (ingested, skipped, failed)",
		},
		[]string{"outcome"},
	)

	DetailAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studysync_detail_fetch_attempts_total",
			Help: "Detail fetch attempts, by result (ok, transient, incomplete)",
		},
		[]string{"result"},
	)

	SubmissionItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studysync_submissions_total",
			Help: "Submissions reconciled, by outcome (registered, already_registered, failed, duplicate)",
		},
		[]string{"outcome"},
	)

	CoverageGaps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studysync_submission_coverage_gaps_total",
			Help: "Runs where the fetch window was saturated with unseen submissions",
		},
	)

	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studysync_runs_total",
			Help: "Pipeline runs, by job and result",
		},
		[]string{"job", "result"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studysync_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 900, 3600, 14400},
		},
		[]string{"job"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "studysync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
