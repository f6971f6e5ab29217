// Package metrics exposes job counters and timings in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"mxfedl/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry; create one per process and pass it around.
type Metrics struct {
	registry     *prometheus.Registry
	jobs         *prometheus.CounterVec
	duration     prometheus.Histogram
	active       prometheus.Gauge
	recognitions *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mxfedl_jobs_total",
				Help: "Finished jobs by terminal status",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mxfedl_job_duration_seconds",
				Help:    "Time from processing to terminal status",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400},
			},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mxfedl_jobs_active",
				Help: "Jobs currently processing",
			},
		),
		recognitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mxfedl_recognitions_total",
				Help: "Recognized results by ladder strategy",
			},
			[]string{"strategy"},
		),
	}
	m.registry.MustRegister(
		m.jobs, m.duration, m.active, m.recognitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// JobStarted marks a job as processing.
func (m *Metrics) JobStarted() {
	m.active.Inc()
}

// JobFinished records a terminal status. recognized counts results per strategy.
func (m *Metrics) JobFinished(status model.MediaStatus, elapsed time.Duration, recognized map[string]int) {
	m.active.Dec()
	m.jobs.WithLabelValues(string(status)).Inc()
	m.duration.Observe(elapsed.Seconds())
	for strategy, n := range recognized {
		m.recognitions.WithLabelValues(strategy).Add(float64(n))
	}
}
