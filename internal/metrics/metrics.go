package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Reconciliation
	ReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliations_total",
			Help: "Reconciliation outcomes",
		},
		[]string{"outcome"}, // success|failed|replay
	)
	SweepRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciler_sweep_runs_total",
			Help: "Polling sweeps executed",
		},
	)

	// Lifecycle
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_transitions_total",
			Help: "Service request status transitions applied",
		},
		[]string{"to"}, // accepted|declined|completed|deleted
	)

	// Matching
	MatchesServed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "provider_matches_served_total",
			Help: "Provider search results returned",
		},
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(ReconciliationsTotal)
	prometheus.MustRegister(SweepRunsTotal)
	prometheus.MustRegister(TransitionsTotal)
	prometheus.MustRegister(MatchesServed)
	prometheus.MustRegister(WorkerQueueDepth)
}
