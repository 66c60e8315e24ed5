package prometheus

import (
	"time"

	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// blobMetrics is the Prometheus implementation of metrics.BlobMetrics.
type blobMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

// NewBlobMetrics creates BlobMetrics for the named backend on the global
// registry. Returns a no-op implementation if metrics are not enabled.
func NewBlobMetrics(backend string) metrics.BlobMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopBlobMetrics()
	}
	return NewBlobMetricsWith(metrics.GetRegistry(), backend)
}

// NewBlobMetricsWith registers BlobMetrics on reg. backend becomes a
// constant label.
func NewBlobMetricsWith(reg prometheus.Registerer, backend string) metrics.BlobMetrics {
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"backend": backend}, reg))

	return &blobMetrics{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodrive_blob_operations_total",
				Help: "Total number of blob store operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittodrive_blob_operation_duration_seconds",
				Help: "Duration of blob store operations in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.25,  // 250ms
					1,     // 1s
					5,     // 5s
					30,    // 30s
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodrive_blob_bytes_transferred_total",
				Help: "Total bytes written to or read from the blob store",
			},
			[]string{"operation"},
		),
	}
}

func (m *blobMetrics) RecordBlobOperation(operation string, duration time.Duration, err error) {
	st := "success"
	if err != nil {
		st = "error"
	}
	m.operationsTotal.WithLabelValues(operation, st).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *blobMetrics) RecordBlobBytes(operation string, bytes int64) {
	m.bytesTransferred.WithLabelValues(operation).Add(float64(bytes))
}
