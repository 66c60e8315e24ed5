package metrics

import "time"

// GCMetrics provides observability for the orphan collector.
type GCMetrics interface {
	// RecordRun records one collection pass.
	//
	// Parameters:
	//   - duration: wall time of the pass
	//   - orphansDeleted: blobs removed because no reservation referenced them
	//   - reservationsReleased: stale pending reservations dropped
	//   - err: error if the pass aborted, nil otherwise
	RecordRun(duration time.Duration, orphansDeleted, reservationsReleased int, err error)
}

// NewNoopGCMetrics returns a GCMetrics that records nothing.
func NewNoopGCMetrics() GCMetrics {
	return noopGCMetrics{}
}

type noopGCMetrics struct{}

func (noopGCMetrics) RecordRun(time.Duration, int, int, error) {}
