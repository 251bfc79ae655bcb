package agent

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metrics for the zone agent.
// It uses a standalone registry served by Handler.
type Metrics struct {
	registry *prometheus.Registry

	CycleDuration       prometheus.Histogram
	PushTotal           *prometheus.CounterVec
	CommandFailures     *prometheus.CounterVec
	ConsecutiveFailures prometheus.Gauge
	SyncErrors          prometheus.Gauge
	BucketsReported     prometheus.Gauge
	LastPushTimestamp   prometheus.Gauge
	LastPushSuccess     prometheus.Gauge
}

// NewMetrics creates and registers all agent metrics on a standalone registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: reg,

		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "rgwsync",
				Subsystem: "agent",
				Name:      "cycle_duration_seconds",
				Help:      "Duration of collect-and-push cycles in seconds.",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		PushTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rgwsync",
				Subsystem: "agent",
				Name:      "push_total",
				Help:      "Total number of pushes to the primary.",
			},
			[]string{"result"},
		),
		CommandFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rgwsync",
				Subsystem: "agent",
				Name:      "command_failures_total",
				Help:      "Admin tool failures by step and kind.",
			},
			[]string{"step", "kind"},
		),
		ConsecutiveFailures: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rgwsync",
				Subsystem: "agent",
				Name:      "consecutive_push_failures",
				Help:      "Push failures since the last successful push.",
			},
		),
		SyncErrors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rgwsync",
				Subsystem: "agent",
				Name:      "sync_errors",
				Help:      "Entries in this zone's sync error list at the last cycle.",
			},
		),
		BucketsReported: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rgwsync",
				Subsystem: "agent",
				Name:      "buckets_reported",
				Help:      "Buckets whose sync status was included in the last payload.",
			},
		),
		LastPushTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rgwsync",
				Subsystem: "agent",
				Name:      "last_push_timestamp_seconds",
				Help:      "Unix timestamp of the last successful push.",
			},
		),
		LastPushSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rgwsync",
				Subsystem: "agent",
				Name:      "last_push_success",
				Help:      "Whether the last push was successful (1=success, 0=error).",
			},
		),
	}

	reg.MustRegister(
		m.CycleDuration,
		m.PushTotal,
		m.CommandFailures,
		m.ConsecutiveFailures,
		m.SyncErrors,
		m.BucketsReported,
		m.LastPushTimestamp,
		m.LastPushSuccess,
	)

	return m
}

// Handler returns an http.Handler that serves the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) commandFailed(step, kind string) {
	if m == nil {
		return
	}
	m.CommandFailures.WithLabelValues(step, kind).Inc()
}
