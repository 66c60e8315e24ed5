package metrics

import "time"

// Operation names used as the "operation" label.
const (
	OpUpload     = "upload"
	OpRename     = "rename"
	OpDelete     = "delete"
	OpDownload   = "download"
	OpListOwned  = "list_owned"
	OpListShared = "list_shared"
)

// Byte directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// FileMetrics provides observability for file service operations.
//
// This interface is optional - if not provided to the file service, a no-op
// implementation is used.
type FileMetrics interface {
	// RecordOperation records a completed operation.
	//
	// Parameters:
	//   - operation: one of the Op* constants
	//   - duration: time taken, including registry and blob calls
	//   - errorKind: service error kind, empty on success
	RecordOperation(operation string, duration time.Duration, errorKind string)

	// RecordOperationStart increments the in-flight gauge.
	RecordOperationStart(operation string)

	// RecordOperationEnd decrements the in-flight gauge.
	RecordOperationEnd(operation string)

	// RecordUploadItem counts one payload of an upload batch.
	//
	// Parameters:
	//   - errorKind: service error kind, empty when the item was stored
	RecordUploadItem(errorKind string)

	// RecordBytes counts payload bytes accepted (in) or served (out).
	RecordBytes(direction string, bytes int64)
}

// NewNoopFileMetrics returns a FileMetrics that records nothing.
func NewNoopFileMetrics() FileMetrics {
	return noopFileMetrics{}
}

type noopFileMetrics struct{}

func (noopFileMetrics) RecordOperation(string, time.Duration, string) {}
func (noopFileMetrics) RecordOperationStart(string)                   {}
func (noopFileMetrics) RecordOperationEnd(string)                     {}
func (noopFileMetrics) RecordUploadItem(string)                       {}
func (noopFileMetrics) RecordBytes(string, int64)                     {}
