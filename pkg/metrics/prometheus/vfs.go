// Package prometheus implements the metrics interfaces on
// prometheus/client_golang.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittoftp/pkg/metrics"
)

// vfsMetrics is the Prometheus implementation of metrics.VFSMetrics.
type vfsMetrics struct {
	operationsTotal    *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	bytesTransferred   *prometheus.CounterVec
	listingsTruncated  prometheus.Counter
	vanishedContainers prometheus.Counter
}

// NewVFSMetrics creates a Prometheus-backed VFSMetrics on the global registry.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewVFSMetrics() metrics.VFSMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopVFSMetrics()
	}
	return NewVFSMetricsWith(metrics.GetRegistry())
}

// NewVFSMetricsWith registers the VFS metrics on reg.
func NewVFSMetricsWith(reg prometheus.Registerer) metrics.VFSMetrics {
	return &vfsMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoftp_vfs_operations_total",
				Help: "Total number of filesystem operations by operation and status",
			},
			[]string{"operation", "status", "error_kind"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittoftp_vfs_operation_duration_seconds",
				Help: "Duration of filesystem operations in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					5.0,   // 5s
					30.0,  // 30s
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoftp_vfs_bytes_transferred_total",
				Help: "Total bytes moved to and from storage",
			},
			[]string{"direction"}, // upload or download
		),
		listingsTruncated: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittoftp_vfs_listings_truncated_total",
				Help: "Total number of directory listings cut off at the entry limit",
			},
		),
		vanishedContainers: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittoftp_vfs_vanished_container_uploads_total",
				Help: "Total number of uploads dropped because the container disappeared",
			},
		),
	}
}

func (m *vfsMetrics) RecordOperation(op string, duration time.Duration, errorKind string) {
	status := "success"
	if errorKind != "" {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(op, status, errorKind).Inc()
	m.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *vfsMetrics) RecordBytesTransferred(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *vfsMetrics) RecordListingTruncated() {
	m.listingsTruncated.Inc()
}

func (m *vfsMetrics) RecordVanishedContainer() {
	m.vanishedContainers.Inc()
}
