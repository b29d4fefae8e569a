// Package metrics holds the Prometheus collectors for scans and outreach.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inclusiv"

type Metrics struct {
	ScansTotal    *prometheus.CounterVec // label: status
	ScanDuration  prometheus.Histogram
	ScanScore     prometheus.Histogram
	EmailsTotal   *prometheus.CounterVec // labels: sequence, status
	SweepDuration prometheus.Histogram

	registry *prometheus.Registry
}

// New registers all collectors on a fresh registry so tests can build as
// many instances as they like.
func New() *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scans that reached a terminal status.",
		}, []string{"status"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of the page audit step.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		}),
		ScanScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_score",
			Help:      "Scores of completed scans.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		EmailsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_emails_total",
			Help:      "Scheduled emails processed by the sweep.",
		}, []string{"sequence", "status"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one email sweep.",
			Buckets:   prometheus.DefBuckets,
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.ScansTotal, m.ScanDuration, m.ScanScore, m.EmailsTotal, m.SweepDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
