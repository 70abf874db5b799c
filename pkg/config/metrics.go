package config

import (
	"github.com/marmos91/dittoftp/pkg/metrics"
	promMetrics "github.com/marmos91/dittoftp/pkg/metrics/prometheus"
)

// MetricsResult holds the collectors handed to each component and the
// optional /metrics server.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// VFS observes filesystem operations (never nil, uses noop if disabled)
	VFS metrics.VFSMetrics

	// Auth counts login outcomes (never nil, uses noop if disabled)
	Auth metrics.AuthMetrics

	// FTP observes the FTP adapter's connections (never nil, uses noop if disabled)
	FTP metrics.FTPMetrics
}

// InitializeMetrics returns Prometheus collectors and an HTTP server on
// metrics.port when metrics.enabled is set, and no-op collectors with no
// server otherwise.
//
// Prometheus collectors register on the process-wide registry, so this
// must run at most once per process with metrics enabled.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			VFS:  metrics.NewNoopVFSMetrics(),
			Auth: metrics.NewNoopAuthMetrics(),
			FTP:  metrics.NewNoopFTPMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Metrics.Port,
	})

	return &MetricsResult{
		Server: server,
		VFS:    promMetrics.NewVFSMetrics(),
		Auth:   promMetrics.NewAuthMetrics(),
		FTP:    promMetrics.NewFTPMetrics(),
	}
}
