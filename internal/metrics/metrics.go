// Package metrics exposes the Prometheus metrics of annealing runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
)

// Namespace prefixes every metric name
const Namespace = "anneal"

// Metrics holds the collectors of one process. A nil *Metrics records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	stagesSubmitted *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	runs            *prometheus.CounterVec
	activeRuns      prometheus.Gauge
}

// New creates the collectors on a fresh registry. With runtime set the Go and process
// collectors are registered too.
func New(runtime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if runtime {
		reg.MustRegister(prometheus.NewGoCollector())
		reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{Namespace: Namespace}))
	}

	m := &Metrics{
		registry: reg,
		stagesSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stages_submitted_total",
			Help:      "Simulation stages submitted, by kind.",
		}, []string{"kind"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time from submission to resolution of a simulation stage, by kind.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Annealing runs that reached a terminal status, by status.",
		}, []string{"status"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_runs",
			Help:      "Annealing runs currently executing.",
		}),
	}
	reg.MustRegister(m.stagesSubmitted, m.stageDuration, m.runs, m.activeRuns)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StageSubmitted counts one submission
func (m *Metrics) StageSubmitted(kind models.StageKind) {
	if m == nil {
		return
	}
	m.stagesSubmitted.WithLabelValues(string(kind)).Inc()
}

// StageResolved records how long a stage took
func (m *Metrics) StageResolved(kind models.StageKind, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// RunStarted marks a run as executing
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
}

// RunFinished records a run's terminal status
func (m *Metrics) RunFinished(status models.RunStatus) {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
	m.runs.WithLabelValues(string(status)).Inc()
}
