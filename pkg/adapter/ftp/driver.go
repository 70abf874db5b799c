package ftp

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"

	ftpserver "github.com/fclairamb/ftpserverlib"

	"github.com/marmos91/dittoftp/internal/logger"
	"github.com/marmos91/dittoftp/pkg/auth"
	"github.com/marmos91/dittoftp/pkg/vfs"
)

// ErrTLSNotConfigured is returned when a client asks for AUTH TLS.
var ErrTLSNotConfigured = errors.New("TLS is not configured")

// mainDriver implements ftpserver.MainDriver on top of the adapter.
//
// It keeps one clientSession per connection id: the client context (for
// forced closure) and, once authenticated, the storage session and its
// filesystem.
type mainDriver struct {
	adapter *FTPAdapter

	mu      sync.Mutex
	clients map[uint32]*clientSession
}

type clientSession struct {
	cc      ftpserver.ClientContext
	session *vfs.Session
	fs      *vfs.FS
	cancel  context.CancelFunc
}

func newMainDriver(a *FTPAdapter) *mainDriver {
	return &mainDriver{
		adapter: a,
		clients: make(map[uint32]*clientSession),
	}
}

// GetSettings hands the adapter's listener and timeouts to the engine.
func (d *mainDriver) GetSettings() (*ftpserver.Settings, error) {
	return d.adapter.settings(), nil
}

// ClientConnected registers the connection and returns the banner.
func (d *mainDriver) ClientConnected(cc ftpserver.ClientContext) (string, error) {
	d.mu.Lock()
	d.clients[cc.ID()] = &clientSession{cc: cc}
	d.mu.Unlock()

	d.adapter.activeClients.Add(1)
	count := d.adapter.clientCount.Add(1)
	d.adapter.metrics.RecordConnectionAccepted()

	logger.Debug("FTP connection accepted",
		logger.KeyClientIP, remoteHost(cc.RemoteAddr()),
		logger.KeyCount, count)

	return d.adapter.config.Banner, nil
}

// ClientDisconnected drops the connection's session.
func (d *mainDriver) ClientDisconnected(cc ftpserver.ClientContext) {
	d.mu.Lock()
	client, ok := d.clients[cc.ID()]
	delete(d.clients, cc.ID())
	sessions := d.authenticatedLocked()
	d.mu.Unlock()

	if !ok {
		return
	}

	if client.cancel != nil {
		client.cancel()
	}

	d.adapter.metrics.SetActiveSessions(sessions)
	if client.cc == nil {
		return
	}

	d.adapter.activeClients.Done()
	count := d.adapter.clientCount.Add(-1)
	d.adapter.metrics.RecordConnectionClosed()

	args := []any{logger.KeyClientIP, remoteHost(cc.RemoteAddr()), logger.KeyCount, count}
	if client.session != nil {
		args = append(args,
			logger.KeySession, client.session.ID,
			logger.KeyPrincipal, client.session.Principal)
	}
	logger.Debug("FTP connection closed", args...)
}

// AuthUser authenticates the login and returns the client's filesystem.
func (d *mainDriver) AuthUser(cc ftpserver.ClientContext, user, pass string) (ftpserver.ClientDriver, error) {
	cfs, home, err := d.authenticate(cc.ID(), remoteHost(cc.RemoteAddr()), user, pass)
	if err != nil {
		return nil, err
	}
	cc.SetPath(home)
	return cfs, nil
}

// authenticate opens a storage session for connection id and builds its
// filesystem bridge. It returns the directory the client starts in, the
// principal's home directory, where its containers are listed.
func (d *mainDriver) authenticate(id uint32, host, user, pass string) (*clientFs, string, error) {
	ctx := auth.WithClientHost(d.adapter.sessionCtx, host)

	session, err := d.adapter.auth.Authenticate(ctx, user, pass)
	if err != nil {
		return nil, "", err
	}

	sessionCtx, cancel := context.WithCancel(d.adapter.sessionCtx)
	fsys := vfs.New(session, d.adapter.fsOpts)

	d.mu.Lock()
	client, ok := d.clients[id]
	if !ok {
		client = &clientSession{}
		d.clients[id] = client
	}
	client.session = session
	client.fs = fsys
	client.cancel = cancel
	sessions := d.authenticatedLocked()
	d.mu.Unlock()

	d.adapter.metrics.SetActiveSessions(sessions)

	home := d.adapter.auth.HomeDirectory(user)
	if err := fsys.ChangeDirectory(sessionCtx, home); err != nil {
		logger.Debug("Home directory not usable", logger.KeyPath, home, logger.KeyError, err)
	}

	logger.Info("FTP session established",
		logger.KeySession, session.ID,
		logger.KeyPrincipal, user,
		logger.KeyClientIP, host,
		logger.KeyPath, home)

	return newClientFs(sessionCtx, fsys), home, nil
}

// GetTLSConfig reports that TLS is not available.
func (d *mainDriver) GetTLSConfig() (*tls.Config, error) {
	return nil, ErrTLSNotConfigured
}

// session returns the authenticated session of connection id, if any.
func (d *mainDriver) session(id uint32) *vfs.Session {
	d.mu.Lock()
	defer d.mu.Unlock()

	if client, ok := d.clients[id]; ok {
		return client.session
	}
	return nil
}

func (d *mainDriver) sessionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.authenticatedLocked()
}

// authenticatedLocked counts authenticated clients. Must hold d.mu.
func (d *mainDriver) authenticatedLocked() int {
	n := 0
	for _, client := range d.clients {
		if client.session != nil {
			n++
		}
	}
	return n
}

// closeAll force-closes every connected client.
func (d *mainDriver) closeAll() {
	d.mu.Lock()
	clients := make([]*clientSession, 0, len(d.clients))
	for _, client := range d.clients {
		clients = append(clients, client)
	}
	d.mu.Unlock()

	closed := 0
	for _, client := range clients {
		if client.cc == nil {
			continue
		}
		if err := client.cc.Close(); err != nil {
			logger.Debug("Error force-closing FTP client", logger.KeyError, err)
			continue
		}
		closed++
	}
	if closed > 0 {
		logger.Info("Force-closed FTP clients", logger.KeyCount, closed)
	}
}

func remoteHost(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
