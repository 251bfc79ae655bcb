package coordinator

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreamware/rgwsync/internal/model"
)

// Metrics holds Prometheus metrics for the primary monitor.
// It uses a standalone registry served by Handler.
type Metrics struct {
	registry *prometheus.Registry

	CycleDuration          prometheus.Histogram
	CycleTotal             *prometheus.CounterVec
	CommandFailures        *prometheus.CounterVec
	BucketProgress         *prometheus.GaugeVec
	BucketDeltaObjects     *prometheus.GaugeVec
	BucketDeltaBytes       *prometheus.GaugeVec
	BucketErrors           *prometheus.GaugeVec
	SyncErrors             prometheus.Gauge
	SecondaryDataAvailable prometheus.Gauge
	LastCycleTimestamp     prometheus.Gauge
	AgentPushes            *prometheus.CounterVec
}

// NewMetrics creates and registers all monitor metrics on a standalone registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: reg,

		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "rgwsync",
				Subsystem: "monitor",
				Name:      "cycle_duration_seconds",
				Help:      "Duration of collection cycles in seconds.",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		CycleTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rgwsync",
				Subsystem: "monitor",
				Name:      "cycle_total",
				Help:      "Total number of collection cycles.",
			},
			[]string{"result"},
		),
		CommandFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rgwsync",
				Subsystem: "monitor",
				Name:      "command_failures_total",
				Help:      "Admin tool and REST failures by step and kind.",
			},
			[]string{"step", "kind"},
		),
		BucketProgress: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rgwsync",
				Subsystem: "bucket",
				Name:      "sync_progress_percent",
				Help:      "Worst replication progress across secondaries (absent without secondary data).",
			},
			[]string{"bucket"},
		),
		BucketDeltaObjects: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rgwsync",
				Subsystem: "bucket",
				Name:      "delta_objects",
				Help:      "Objects present on the primary but missing on secondaries, summed.",
			},
			[]string{"bucket"},
		),
		BucketDeltaBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rgwsync",
				Subsystem: "bucket",
				Name:      "delta_bytes",
				Help:      "Bytes present on the primary but missing on secondaries, summed.",
			},
			[]string{"bucket"},
		),
		BucketErrors: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rgwsync",
				Subsystem: "bucket",
				Name:      "sync_errors",
				Help:      "Sync errors attributed to the bucket in the last cycle that reported it.",
			},
			[]string{"bucket"},
		),
		SyncErrors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rgwsync",
				Subsystem: "monitor",
				Name:      "sync_errors",
				Help:      "Entries in the sync error list at the last cycle.",
			},
		),
		SecondaryDataAvailable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rgwsync",
				Subsystem: "monitor",
				Name:      "secondary_data_available",
				Help:      "Whether any secondary returned bucket stats in the last cycle (1=yes, 0=no).",
			},
		),
		LastCycleTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rgwsync",
				Subsystem: "monitor",
				Name:      "last_cycle_timestamp_seconds",
				Help:      "Unix timestamp of the last completed collection cycle.",
			},
		),
		AgentPushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rgwsync",
				Subsystem: "monitor",
				Name:      "agent_pushes_total",
				Help:      "Payloads received from secondary agents.",
			},
			[]string{"zone", "result"},
		),
	}

	reg.MustRegister(
		m.CycleDuration,
		m.CycleTotal,
		m.CommandFailures,
		m.BucketProgress,
		m.BucketDeltaObjects,
		m.BucketDeltaBytes,
		m.BucketErrors,
		m.SyncErrors,
		m.SecondaryDataAvailable,
		m.LastCycleTimestamp,
		m.AgentPushes,
	)

	return m
}

// Handler returns an http.Handler that serves the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSnapshot exports one bucket snapshot.
func (m *Metrics) ObserveSnapshot(bucket string, snap model.BucketSnapshot) {
	if m == nil {
		return
	}
	if snap.SyncProgressPct != nil {
		m.BucketProgress.WithLabelValues(bucket).Set(*snap.SyncProgressPct)
	} else {
		m.BucketProgress.DeleteLabelValues(bucket)
	}
	m.BucketDeltaObjects.WithLabelValues(bucket).Set(float64(snap.DeltaObjects))
	m.BucketDeltaBytes.WithLabelValues(bucket).Set(float64(snap.DeltaSize))
}

func (m *Metrics) commandFailed(step, kind string) {
	if m == nil {
		return
	}
	m.CommandFailures.WithLabelValues(step, kind).Inc()
}
