package config

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/marmos91/dittoftp/internal/logger"
	"github.com/marmos91/dittoftp/pkg/adapter"
	"github.com/marmos91/dittoftp/pkg/auth"
	"github.com/marmos91/dittoftp/pkg/server"
	"github.com/marmos91/dittoftp/pkg/storage"
)

// Runtime is everything the start command needs, built from one Config.
type Runtime struct {
	Storage       storage.Service
	Authenticator *auth.Authenticator
	Adapters      []adapter.Adapter
	Metrics       *MetricsResult
}

// Build wires the configured storage backend, authenticator, metrics and
// adapters together.
//
// On error, anything already opened is closed.
func Build(ctx context.Context, cfg *Config) (*Runtime, error) {
	metricsResult := InitializeMetrics(cfg)

	service, err := CreateStorageService(ctx, &cfg.Storage)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Storage: service, Metrics: metricsResult}

	rt.Authenticator = CreateAuthenticator(cfg, service, metricsResult.Auth)

	fsOpts, err := CreateFilesystemOptions(cfg, metricsResult.VFS)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.Adapters, err = CreateAdapters(cfg, rt.Authenticator, fsOpts, metricsResult.FTP)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	return rt, nil
}

// NewServer registers the runtime's adapters and metrics server on a new
// orchestrator.
func (rt *Runtime) NewServer(cfg *Config) (*server.Server, error) {
	srv := server.New(server.Config{ShutdownTimeout: cfg.Server.ShutdownTimeout})

	for _, a := range rt.Adapters {
		if err := srv.AddAdapter(a); err != nil {
			return nil, fmt.Errorf("failed to register %s adapter: %w", a.Protocol(), err)
		}
	}
	if rt.Metrics != nil && rt.Metrics.Server != nil {
		srv.SetMetricsServer(rt.Metrics.Server)
	}
	return srv, nil
}

// Close releases the storage backend if it holds resources.
func (rt *Runtime) Close() error {
	closer, ok := rt.Storage.(io.Closer)
	if !ok {
		return nil
	}
	if err := closer.Close(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Failed to close storage backend", logger.KeyError, err)
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
