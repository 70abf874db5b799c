package metrics

import "time"

// VFSMetrics provides observability for virtual filesystem operations.
//
// Example usage:
//
//	fsys := vfs.New(session, vfs.Options{Metrics: prometheus.NewVFSMetrics()})
type VFSMetrics interface {
	// RecordOperation records a completed filesystem operation.
	//
	// Parameters:
	//   - op: Operation name (e.g., "stat", "open", "list")
	//   - duration: Time taken by the operation
	//   - errorKind: Error kind name, or "" on success
	RecordOperation(op string, duration time.Duration, errorKind string)

	// RecordBytesTransferred records bytes moved to or from storage.
	//
	// Parameters:
	//   - direction: "upload" or "download"
	//   - bytes: Number of bytes transferred
	RecordBytesTransferred(direction string, bytes int64)

	// RecordListingTruncated counts listings cut off at the entry limit.
	RecordListingTruncated()

	// RecordVanishedContainer counts uploads dropped because the container
	// was deleted while the write was staged.
	RecordVanishedContainer()
}

// NewNoopVFSMetrics returns a VFSMetrics that discards everything.
func NewNoopVFSMetrics() VFSMetrics {
	return noopVFSMetrics{}
}

type noopVFSMetrics struct{}

func (noopVFSMetrics) RecordOperation(op string, duration time.Duration, errorKind string) {}
func (noopVFSMetrics) RecordBytesTransferred(direction string, bytes int64)                {}
func (noopVFSMetrics) RecordListingTruncated()                                             {}
func (noopVFSMetrics) RecordVanishedContainer()                                            {}
