package prometheus

import (
	"time"

	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type gcMetrics struct {
	runsTotal            *prometheus.CounterVec
	runDuration          prometheus.Histogram
	orphansDeleted       prometheus.Counter
	reservationsReleased prometheus.Counter
	lastRun              prometheus.Gauge
}

// NewGCMetrics creates GCMetrics on the global registry. Returns a no-op
// implementation if metrics are not enabled.
func NewGCMetrics() metrics.GCMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopGCMetrics()
	}
	return NewGCMetricsWith(metrics.GetRegistry())
}

// NewGCMetricsWith registers GCMetrics on reg.
func NewGCMetricsWith(reg prometheus.Registerer) metrics.GCMetrics {
	factory := promauto.With(reg)

	return &gcMetrics{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodrive_gc_runs_total",
				Help: "Orphan collector passes by status",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dittodrive_gc_run_duration_seconds",
				Help:    "Duration of orphan collector passes in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		orphansDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dittodrive_gc_orphan_blobs_deleted_total",
				Help: "Blobs deleted because no reservation referenced them",
			},
		),
		reservationsReleased: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dittodrive_gc_reservations_released_total",
				Help: "Stale pending reservations released",
			},
		),
		lastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dittodrive_gc_last_run_timestamp_seconds",
				Help: "Unix time of the last completed pass",
			},
		),
	}
}

func (m *gcMetrics) RecordRun(duration time.Duration, orphansDeleted, reservationsReleased int, err error) {
	st := "success"
	if err != nil {
		st = "error"
	}
	m.runsTotal.WithLabelValues(st).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.orphansDeleted.Add(float64(orphansDeleted))
	m.reservationsReleased.Add(float64(reservationsReleased))
	m.lastRun.SetToCurrentTime()
}
