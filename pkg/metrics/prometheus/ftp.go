package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittoftp/pkg/metrics"
)

type ftpMetrics struct {
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
	activeSessions      prometheus.Gauge
}

// NewFTPMetrics creates a Prometheus-backed FTPMetrics on the global registry.
func NewFTPMetrics() metrics.FTPMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopFTPMetrics()
	}
	return NewFTPMetricsWith(metrics.GetRegistry())
}

// NewFTPMetricsWith registers the FTP metrics on reg.
func NewFTPMetricsWith(reg prometheus.Registerer) metrics.FTPMetrics {
	return &ftpMetrics{
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittoftp_ftp_connections_accepted_total",
				Help: "Total number of FTP connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittoftp_ftp_connections_closed_total",
				Help: "Total number of FTP connections closed",
			},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittoftp_ftp_active_sessions",
				Help: "Current number of authenticated FTP sessions",
			},
		),
	}
}

func (m *ftpMetrics) RecordConnectionAccepted() { m.connectionsAccepted.Inc() }

func (m *ftpMetrics) RecordConnectionClosed() { m.connectionsClosed.Inc() }

func (m *ftpMetrics) SetActiveSessions(count int) { m.activeSessions.Set(float64(count)) }
