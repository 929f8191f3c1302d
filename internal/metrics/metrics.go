// Package metrics provides Prometheus collectors for the botforge pipeline:
// HTTP surface, generation workers, pipeline runs, and deployments.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	// HTTP surface
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Generation workers
	GenerationAttemptsTotal *prometheus.CounterVec
	GenerationResultsTotal  *prometheus.CounterVec
	CompletionDuration      *prometheus.HistogramVec

	// Pipeline runs
	RunsTotal    *prometheus.CounterVec
	RunsInFlight prometheus.Gauge
	RunDuration  *prometheus.HistogramVec

	// Deployments
	DeploysTotal   *prometheus.CounterVec
	DeployDuration prometheus.Histogram
	ServicesUp     *prometheus.GaugeVec
}

// Get returns the singleton Metrics instance.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botforge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by endpoint, method, and status code",
		},
		[]string{"endpoint", "method", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "botforge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "method"},
	)

	m.HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "botforge",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being processed",
		},
	)

	m.GenerationAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botforge",
			Subsystem: "generation",
			Name:      "attempts_total",
			Help:      "Completion attempts issued, by artifact role",
		},
		[]string{"role"},
	)

	m.GenerationResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botforge",
			Subsystem: "generation",
			Name:      "results_total",
			Help:      "Generation results, by artifact role and result kind",
		},
		[]string{"role", "kind"},
	)

	m.CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "botforge",
			Subsystem: "generation",
			Name:      "completion_duration_seconds",
			Help:      "Completion service round-trip duration",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"role"},
	)

	m.RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botforge",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs, by terminal outcome",
		},
		[]string{"outcome"},
	)

	m.RunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "botforge",
			Subsystem: "pipeline",
			Name:      "runs_in_flight",
			Help:      "Pipeline runs currently executing",
		},
	)

	m.RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "botforge",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "End-to-end pipeline run duration",
			Buckets:   []float64{5, 15, 30, 60, 120, 240, 480},
		},
		[]string{"outcome"},
	)

	m.DeploysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botforge",
			Subsystem: "deploy",
			Name:      "deploys_total",
			Help:      "Deployment attempts, by status",
		},
		[]string{"status"},
	)

	m.DeployDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "botforge",
			Subsystem: "deploy",
			Name:      "duration_seconds",
			Help:      "Time from deploy start to both services settled",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40},
		},
	)

	m.ServicesUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "botforge",
			Subsystem: "deploy",
			Name:      "services_up",
			Help:      "Supervised service processes currently running, by role",
		},
		[]string{"role"},
	)

	return m
}
