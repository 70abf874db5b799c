// Package metrics defines the observation interfaces used by the virtual
// filesystem, the authenticator and the FTP adapter, their no-op
// implementations, and the /metrics HTTP endpoint.
//
// Collection is off unless InitRegistry is called. The Prometheus-backed
// collectors live in metrics/prometheus and register on the registry held
// here:
//
//	metrics.InitRegistry()
//	opts := vfs.Options{Metrics: prometheus.NewVFSMetrics()}
//	auth.New(service, authCfg, prometheus.NewAuthMetrics())
//
// Passing nil wherever a collector is accepted selects the no-op one.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry is written once by InitRegistry and read afterwards.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the process-wide registry, pre-loaded with the Go
// runtime and process collectors. Later calls do nothing. Collectors built
// before it runs are no-ops.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the registry, or nil while metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has run.
func IsEnabled() bool {
	return GetRegistry() != nil
}
