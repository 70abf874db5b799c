package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoftp/pkg/metrics"
)

func TestVFSMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewVFSMetricsWith(reg).(*vfsMetrics)

	m.RecordOperation("stat", 5*time.Millisecond, "")
	m.RecordOperation("stat", time.Millisecond, "not_found")
	m.RecordBytesTransferred("upload", 128)
	m.RecordListingTruncated()
	m.RecordVanishedContainer()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("stat", "success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("stat", "error", "not_found")))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues("upload")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.listingsTruncated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.vanishedContainers))

	count, err := testutil.GatherAndCount(reg, "dittoftp_vfs_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAuthMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAuthMetricsWith(reg).(*authMetrics)

	m.RecordLogin(metrics.LoginSuccess)
	m.RecordLogin(metrics.LoginSuccess)
	m.RecordLogin(metrics.LoginRateLimited)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.logins.WithLabelValues(metrics.LoginSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues(metrics.LoginRateLimited)))
}

func TestFTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFTPMetricsWith(reg).(*ftpMetrics)

	m.RecordConnectionAccepted()
	m.RecordConnectionAccepted()
	m.RecordConnectionClosed()
	m.SetActiveSessions(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionsAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsClosed))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeSessions))
}

func TestConstructorsWithoutRegistry(t *testing.T) {
	if metrics.IsEnabled() {
		t.Skip("global registry already initialized")
	}
	assert.NotPanics(t, func() {
		NewVFSMetrics().RecordOperation("stat", time.Second, "")
		NewAuthMetrics().RecordLogin(metrics.LoginSuccess)
		NewFTPMetrics().SetActiveSessions(1)
	})
}
