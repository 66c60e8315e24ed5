package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFileMetricsWith(reg).(*fileMetrics)

	m.RecordOperationStart(metrics.OpUpload)
	m.RecordOperation(metrics.OpUpload, 20*time.Millisecond, "")
	m.RecordOperation(metrics.OpDownload, time.Millisecond, "not_found")
	m.RecordUploadItem("")
	m.RecordUploadItem("resolution_exhausted")
	m.RecordBytes(metrics.DirectionIn, 1024)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("upload", "success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("download", "error", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsInFlight.WithLabelValues("upload")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploadItems.WithLabelValues("error", "resolution_exhausted")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.bytesTotal.WithLabelValues("in")))

	m.RecordOperationEnd(metrics.OpUpload)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.operationsInFlight.WithLabelValues("upload")))
}

func TestBlobMetrics_BackendLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBlobMetricsWith(reg, "s3")

	m.RecordBlobOperation("write", 5*time.Millisecond, nil)
	m.RecordBlobOperation("read", time.Millisecond, errors.New("boom"))
	m.RecordBlobBytes("write", 42)

	families, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() != "dittodrive_blob_bytes_transferred_total" {
			continue
		}
		found = true
		require.Len(t, mf.GetMetric(), 1)
		labels := map[string]string{}
		for _, lp := range mf.GetMetric()[0].GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		assert.Equal(t, "s3", labels["backend"])
		assert.Equal(t, 42.0, mf.GetMetric()[0].GetCounter().GetValue())
	}
	assert.True(t, found)
}

func TestGCMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGCMetricsWith(reg).(*gcMetrics)

	m.RecordRun(time.Second, 3, 2, nil)
	m.RecordRun(time.Second, 0, 0, errors.New("list failed"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.orphansDeleted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reservationsReleased))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("error")))
}

func TestConstructors_DisabledAreNoop(t *testing.T) {
	if metrics.IsEnabled() {
		t.Skip("global registry already initialized")
	}
	assert.Equal(t, metrics.NewNoopFileMetrics(), NewFileMetrics())
	assert.Equal(t, metrics.NewNoopBlobMetrics(), NewBlobMetrics("memory"))
	assert.Equal(t, metrics.NewNoopGCMetrics(), NewGCMetrics())
}
