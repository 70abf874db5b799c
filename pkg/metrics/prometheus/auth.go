package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittoftp/pkg/metrics"
)

type authMetrics struct {
	logins *prometheus.CounterVec
}

// NewAuthMetrics creates a Prometheus-backed AuthMetrics on the global registry.
func NewAuthMetrics() metrics.AuthMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopAuthMetrics()
	}
	return NewAuthMetricsWith(metrics.GetRegistry())
}

// NewAuthMetricsWith registers the auth metrics on reg.
func NewAuthMetricsWith(reg prometheus.Registerer) metrics.AuthMetrics {
	return &authMetrics{
		logins: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoftp_auth_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *authMetrics) RecordLogin(outcome string) {
	m.logins.WithLabelValues(outcome).Inc()
}
