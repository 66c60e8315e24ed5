package metrics

import "time"

// BlobMetrics provides observability for blob store calls.
//
// Implementations collect operation counts, latency and bytes moved for
// whichever backend is configured (memory, filesystem, s3).
type BlobMetrics interface {
	// RecordBlobOperation records one blob store call.
	//
	// Parameters:
	//   - operation: "exists", "write", "read", "delete" or "list"
	//   - duration: time taken
	//   - err: error if the call failed, nil on success
	RecordBlobOperation(operation string, duration time.Duration, err error)

	// RecordBlobBytes counts bytes written to or read from the backend.
	RecordBlobBytes(operation string, bytes int64)
}

// NewNoopBlobMetrics returns a BlobMetrics that records nothing.
func NewNoopBlobMetrics() BlobMetrics {
	return noopBlobMetrics{}
}

type noopBlobMetrics struct{}

func (noopBlobMetrics) RecordBlobOperation(string, time.Duration, error) {}
func (noopBlobMetrics) RecordBlobBytes(string, int64)                    {}
