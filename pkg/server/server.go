package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittoftp/internal/logger"
	"github.com/marmos91/dittoftp/pkg/adapter"
	"github.com/marmos91/dittoftp/pkg/metrics"
)

// DefaultShutdownTimeout bounds the Stop() calls issued during shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// ErrAlreadyServed is returned by a second call to Serve.
var ErrAlreadyServed = errors.New("server has already been started")

// Server manages the lifecycle of protocol adapters and the optional
// metrics endpoint.
//
// Lifecycle:
//  1. Creation: New() with shutdown settings
//  2. Registration: AddAdapter() for each protocol, SetMetricsServer() if enabled
//  3. Startup: Serve() starts everything concurrently
//  4. Shutdown: context cancellation or the first adapter failure stops all
//     adapters in reverse registration order
//
// Thread safety:
// Server is safe for concurrent use. Serve() may only be called once.
//
// Example usage:
//
//	srv := server.New(server.Config{ShutdownTimeout: 30 * time.Second})
//	if err := srv.AddAdapter(ftpAdapter); err != nil {
//	    return err
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && err != context.Canceled {
//	    log.Fatal(err)
//	}
type Server struct {
	shutdownTimeout time.Duration

	// mu protects adapters, metricsServer and served
	mu            sync.RWMutex
	adapters      []adapter.Adapter
	metricsServer *metrics.Server
	served        bool
}

// Config holds orchestration settings.
type Config struct {
	// ShutdownTimeout bounds the graceful stop of all adapters. Zero uses
	// DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
}

// New creates a Server with no adapters.
func New(cfg Config) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{
		shutdownTimeout: cfg.ShutdownTimeout,
		adapters:        make([]adapter.Adapter, 0, 2),
	}
}

// AddAdapter registers a protocol adapter.
//
// Returns an error if another adapter already serves the same protocol or
// listens on the same address, or if Serve has been called.
//
// Panics if a is nil (programmer error).
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return ErrAlreadyServed
	}

	protocol := a.Protocol()
	addr := a.Addr()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if existing.Addr() == addr {
			return fmt.Errorf("address %s already in use by %s adapter", addr, existing.Protocol())
		}
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered adapter", logger.KeyProtocol, protocol, logger.KeyAddr, addr)
	return nil
}

// SetMetricsServer attaches the metrics HTTP server, started alongside the
// adapters. Its failure is logged, never fatal.
func (s *Server) SetMetricsServer(m *metrics.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricsServer = m
}

// Serve starts all registered adapters and blocks until the context is
// cancelled or an adapter fails.
//
// Returns:
//   - context.Canceled (or the context's error) after a signalled shutdown
//   - the failing adapter's error, wrapped, if one stopped on its own
//   - an error if no adapters are registered or Serve was already called
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}
	s.served = true
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	metricsServer := s.metricsServer
	s.mu.Unlock()

	logger.Info("Starting server", logger.KeyCount, len(adapters))

	// runCtx ends on shutdown for adapters and the metrics server alike.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var wg sync.WaitGroup

	if metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Start(runCtx); err != nil {
				logger.Error("Metrics server failed", logger.KeyError, err)
			}
		}()
	}

	// Buffered so that simultaneous failures never block.
	errChan := make(chan adapterError, len(adapters))

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting adapter", logger.KeyProtocol, protocol, logger.KeyAddr, a.Addr())

			err := a.Serve(runCtx)
			switch {
			case runCtx.Err() != nil:
				logger.Debug("Adapter stopped gracefully", logger.KeyProtocol, protocol)
			case err == nil:
				errChan <- adapterError{protocol: protocol, err: errors.New("stopped unexpectedly")}
			default:
				logger.Error("Adapter failed", logger.KeyProtocol, protocol, logger.KeyError, err)
				errChan <- adapterError{protocol: protocol, err: err}
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", logger.KeyError, ctx.Err())
		shutdownErr = ctx.Err()

	case failed := <-errChan:
		logger.Error("Adapter failed, shutting down all adapters",
			logger.KeyProtocol, failed.protocol,
			logger.KeyError, failed.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", failed.protocol, failed.err)
	}

	cancelRun()
	s.stopAllAdapters(adapters)

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("Server stopped")
	return shutdownErr
}

// adapterError pairs an adapter protocol name with its error.
type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters stops adapters in reverse registration order under the
// shutdown timeout. Errors are logged and do not stop the sequence.
func (s *Server) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown", logger.KeyCount, len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping adapter", logger.KeyProtocol, protocol, logger.KeyError, err)
		} else {
			logger.Debug("Adapter stopped", logger.KeyProtocol, protocol)
		}
	}
}

// Adapters returns a snapshot of registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
