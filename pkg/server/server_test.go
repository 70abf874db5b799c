package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter blocks in Serve until its context ends or fail is signalled.
type fakeAdapter struct {
	protocol string
	addr     string

	started chan struct{}
	fail    chan error

	mu      sync.Mutex
	stops   int
	stopLog *[]string
}

func newFakeAdapter(protocol, addr string, stopLog *[]string) *fakeAdapter {
	return &fakeAdapter{
		protocol: protocol,
		addr:     addr,
		started:  make(chan struct{}),
		fail:     make(chan error, 1),
		stopLog:  stopLog,
	}
}

func (f *fakeAdapter) Serve(ctx context.Context) error {
	close(f.started)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-f.fail:
		return err
	}
}

func (f *fakeAdapter) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	if f.stopLog != nil {
		*f.stopLog = append(*f.stopLog, f.protocol)
	}
	return nil
}

func (f *fakeAdapter) Protocol() string { return f.protocol }
func (f *fakeAdapter) Addr() string     { return f.addr }

func (f *fakeAdapter) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func waitStarted(t *testing.T, adapters ...*fakeAdapter) {
	t.Helper()
	for _, a := range adapters {
		select {
		case <-a.started:
		case <-time.After(5 * time.Second):
			t.Fatalf("%s adapter did not start", a.protocol)
		}
	}
}

func TestAddAdapter(t *testing.T) {
	s := New(Config{})

	require.NoError(t, s.AddAdapter(newFakeAdapter("FTP", ":2121", nil)))
	assert.Error(t, s.AddAdapter(newFakeAdapter("FTP", ":2122", nil)), "duplicate protocol")
	assert.Error(t, s.AddAdapter(newFakeAdapter("SFTP", ":2121", nil)), "duplicate address")
	require.NoError(t, s.AddAdapter(newFakeAdapter("SFTP", ":2222", nil)))

	assert.Len(t, s.Adapters(), 2)
	assert.Panics(t, func() { _ = s.AddAdapter(nil) })
}

func TestServeWithoutAdapters(t *testing.T) {
	err := New(Config{}).Serve(context.Background())
	require.Error(t, err)
}

func TestServe_ContextCancellation(t *testing.T) {
	var stopLog []string
	first := newFakeAdapter("FTP", ":2121", &stopLog)
	second := newFakeAdapter("SFTP", ":2222", &stopLog)

	s := New(Config{ShutdownTimeout: time.Second})
	require.NoError(t, s.AddAdapter(first))
	require.NoError(t, s.AddAdapter(second))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx) }()

	waitStarted(t, first, second)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}

	assert.Equal(t, []string{"SFTP", "FTP"}, stopLog, "adapters stop in reverse order")
	assert.ErrorIs(t, s.Serve(context.Background()), ErrAlreadyServed)
	assert.ErrorIs(t, s.AddAdapter(newFakeAdapter("X", ":1", nil)), ErrAlreadyServed)
}

func TestServe_AdapterFailureStopsOthers(t *testing.T) {
	failing := newFakeAdapter("FTP", ":2121", nil)
	healthy := newFakeAdapter("SFTP", ":2222", nil)

	s := New(Config{ShutdownTimeout: time.Second})
	require.NoError(t, s.AddAdapter(failing))
	require.NoError(t, s.AddAdapter(healthy))

	errc := make(chan error, 1)
	go func() { errc <- s.Serve(context.Background()) }()

	waitStarted(t, failing, healthy)
	boom := errors.New("listener exploded")
	failing.fail <- boom

	select {
	case err := <-errc:
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "FTP adapter error")
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}

	assert.Equal(t, 1, healthy.stopCount())
	assert.Equal(t, 1, failing.stopCount())
}

func TestServe_UnexpectedCleanExit(t *testing.T) {
	quitter := newFakeAdapter("FTP", ":2121", nil)
	s := New(Config{ShutdownTimeout: time.Second})
	require.NoError(t, s.AddAdapter(quitter))

	errc := make(chan error, 1)
	go func() { errc <- s.Serve(context.Background()) }()

	waitStarted(t, quitter)
	quitter.fail <- nil

	select {
	case err := <-errc:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stopped unexpectedly")
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}
