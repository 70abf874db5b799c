package ftp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	ftpserver "github.com/fclairamb/ftpserverlib"

	"github.com/marmos91/dittoftp/internal/logger"
	"github.com/marmos91/dittoftp/pkg/auth"
	"github.com/marmos91/dittoftp/pkg/metrics"
	"github.com/marmos91/dittoftp/pkg/vfs"
)

// FTPAdapter implements the adapter.Adapter interface for the FTP protocol.
//
// The protocol engine is ftpserverlib. The adapter owns the listener and the
// engine's lifecycle, and plugs the storage-backed virtual filesystem into it
// through a MainDriver (authentication, session bookkeeping) and an afero.Fs
// bridge per authenticated client.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. Session context cancelled (in-flight storage calls abort)
//  4. Wait for connected clients to leave (up to ShutdownTimeout)
//  5. Force-close any remaining clients after timeout
//
// Thread safety:
// All methods are safe for concurrent use. Shutdown is guarded by sync.Once
// so Stop() may be called any number of times.
type FTPAdapter struct {
	config  FTPConfig
	auth    *auth.Authenticator
	fsOpts  vfs.Options
	metrics metrics.FTPMetrics

	driver *mainDriver

	// mu guards server and listener, which are set by Serve.
	mu       sync.Mutex
	server   *ftpserver.FtpServer
	listener net.Listener

	// ready is closed once the listener is bound.
	ready chan struct{}

	shutdownOnce sync.Once
	shutdown     chan struct{}

	// sessionCtx is the parent of every client's storage context. It is
	// cancelled during shutdown.
	sessionCtx     context.Context
	cancelSessions context.CancelFunc

	// activeClients tracks connected clients for graceful shutdown.
	activeClients sync.WaitGroup
	clientCount   atomic.Int32
}

// FTPConfig holds configuration parameters for the FTP server.
//
// Default values (applied by New if zero):
//   - ListenAddr: 0.0.0.0:2121
//   - IdleTimeout: 15m
//   - ConnectionTimeout: 30s
//   - ShutdownTimeout: 30s
//   - Banner: "DittoFTP ready"
type FTPConfig struct {
	// Enabled controls whether the FTP adapter is active.
	Enabled bool `mapstructure:"enabled"`

	// ListenAddr is the host:port of the control connection listener.
	ListenAddr string `mapstructure:"listen_addr" validate:"omitempty,hostname_port"`

	// PublicHost is the address announced to clients for passive transfers.
	// Empty lets the engine use the control connection's local address.
	PublicHost string `mapstructure:"public_host"`

	// IdleTimeout closes control connections idle for longer than this.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// ConnectionTimeout bounds the establishment of data connections.
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout" validate:"min=0"`

	// ShutdownTimeout is how long Stop waits for clients to disconnect
	// before force-closing them.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// Banner is the greeting sent on connect.
	Banner string `mapstructure:"banner"`
}

const (
	DefaultListenAddr        = "0.0.0.0:2121"
	DefaultIdleTimeout       = 15 * time.Minute
	DefaultConnectionTimeout = 30 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultBanner            = "DittoFTP ready"
)

// applyDefaults fills in zero values with sensible defaults.
func (c *FTPConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ConnectionTimeout == 0 {
		c.ConnectionTimeout = DefaultConnectionTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Banner == "" {
		c.Banner = DefaultBanner
	}
}

// validate checks that the configuration is usable.
func (c *FTPConfig) validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.ListenAddr, err)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("invalid IdleTimeout %v: must be >= 0", c.IdleTimeout)
	}
	if c.ConnectionTimeout < 0 {
		return fmt.Errorf("invalid ConnectionTimeout %v: must be >= 0", c.ConnectionTimeout)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be >= 0", c.ShutdownTimeout)
	}
	return nil
}

// New creates an FTP adapter.
//
// Parameters:
//   - config: Server configuration (zero values get defaults)
//   - authenticator: Validates logins and opens storage sessions (required)
//   - fsOpts: Options for every client's virtual filesystem
//   - ftpMetrics: Optional metrics sink (nil disables)
//
// Returns an error if the configuration is invalid.
func New(config FTPConfig, authenticator *auth.Authenticator, fsOpts vfs.Options, ftpMetrics metrics.FTPMetrics) (*FTPAdapter, error) {
	if authenticator == nil {
		return nil, errors.New("ftp adapter requires an authenticator")
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid FTP config: %w", err)
	}

	if ftpMetrics == nil {
		ftpMetrics = metrics.NewNoopFTPMetrics()
	}

	sessionCtx, cancel := context.WithCancel(context.Background())

	a := &FTPAdapter{
		config:         config,
		auth:           authenticator,
		fsOpts:         fsOpts,
		metrics:        ftpMetrics,
		ready:          make(chan struct{}),
		shutdown:       make(chan struct{}),
		sessionCtx:     sessionCtx,
		cancelSessions: cancel,
	}
	a.driver = newMainDriver(a)
	return a, nil
}

// Serve binds the listener and runs the FTP engine until ctx is cancelled or
// Stop is called.
func (a *FTPAdapter) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to create FTP listener on %s: %w", a.config.ListenAddr, err)
	}

	server := ftpserver.NewFtpServer(a.driver)

	a.mu.Lock()
	a.listener = listener
	a.server = server
	a.mu.Unlock()

	// Listen loads the driver settings, which hand over our listener.
	if err := server.Listen(); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to start FTP engine: %w", err)
	}
	close(a.ready)

	logger.Info("FTP server listening",
		logger.KeyProtocol, a.Protocol(),
		logger.KeyAddr, listener.Addr().String())

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("FTP shutdown signal received", logger.KeyError, ctx.Err())
			a.initiateShutdown()
		case <-a.shutdown:
		}
	}()

	err = server.Serve()

	select {
	case <-a.shutdown:
		return a.gracefulShutdown()
	default:
	}

	if err != nil {
		return fmt.Errorf("FTP server failed: %w", err)
	}
	return errors.New("FTP server stopped unexpectedly")
}

// initiateShutdown closes the listener and cancels session contexts. It is
// safe to call more than once.
func (a *FTPAdapter) initiateShutdown() {
	a.shutdownOnce.Do(func() {
		logger.Debug("FTP shutdown initiated")
		close(a.shutdown)

		a.mu.Lock()
		server := a.server
		a.mu.Unlock()

		if server != nil {
			if err := server.Stop(); err != nil {
				logger.Debug("Error stopping FTP engine", logger.KeyError, err)
			}
		}

		a.cancelSessions()
	})
}

// gracefulShutdown waits up to ShutdownTimeout for clients to leave.
func (a *FTPAdapter) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()
	return a.waitForClients(ctx)
}

func (a *FTPAdapter) waitForClients(ctx context.Context) error {
	logger.Info("FTP graceful shutdown: waiting for clients",
		logger.KeyCount, a.clientCount.Load())

	done := make(chan struct{})
	go func() {
		a.activeClients.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("FTP graceful shutdown complete")
		return nil

	case <-ctx.Done():
		remaining := a.clientCount.Load()
		logger.Warn("FTP shutdown timeout exceeded, forcing closure",
			logger.KeyCount, remaining)
		a.driver.closeAll()
		return fmt.Errorf("FTP shutdown timeout: %d clients force-closed", remaining)
	}
}

// Stop initiates shutdown and waits for connected clients under ctx.
func (a *FTPAdapter) Stop(ctx context.Context) error {
	a.initiateShutdown()

	if ctx == nil {
		return a.gracefulShutdown()
	}
	return a.waitForClients(ctx)
}

// Protocol returns "FTP".
func (a *FTPAdapter) Protocol() string {
	return "FTP"
}

// Addr returns the bound address once listening, else the configured one.
func (a *FTPAdapter) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.config.ListenAddr
}

// Ready is closed once the adapter accepts connections.
func (a *FTPAdapter) Ready() <-chan struct{} {
	return a.ready
}

// ActiveSessions returns the number of authenticated sessions.
func (a *FTPAdapter) ActiveSessions() int {
	return a.driver.sessionCount()
}

func (a *FTPAdapter) settings() *ftpserver.Settings {
	a.mu.Lock()
	listener := a.listener
	a.mu.Unlock()

	return &ftpserver.Settings{
		Listener:          listener,
		ListenAddr:        a.config.ListenAddr,
		PublicHost:        a.config.PublicHost,
		IdleTimeout:       int(a.config.IdleTimeout / time.Second),
		ConnectionTimeout: int(a.config.ConnectionTimeout / time.Second),
	}
}
