package ftp

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoftp/pkg/auth"
	"github.com/marmos91/dittoftp/pkg/storage/memory"
	"github.com/marmos91/dittoftp/pkg/vfs"
)

const (
	testUser   = "alice"
	testSecret = "alice-secret"
)

func newTestService() *memory.Service {
	return memory.New(memory.Config{Accounts: map[string]string{testUser: testSecret}})
}

func testFSOptions(t *testing.T) vfs.Options {
	t.Helper()
	staging := afero.NewMemMapFs()
	require.NoError(t, staging.MkdirAll("/staging", 0o755))
	return vfs.Options{
		MaxListingEntries: vfs.DefaultMaxListingEntries,
		Staging:           staging,
		StagingDir:        "/staging",
	}
}

// newTestClientFs logs alice in and returns her bridged filesystem.
func newTestClientFs(t *testing.T) *clientFs {
	t.Helper()

	a := auth.New(newTestService(), auth.Config{}, nil)
	session, err := a.Authenticate(context.Background(), testUser, testSecret)
	require.NoError(t, err)

	return newClientFs(context.Background(), vfs.New(session, testFSOptions(t)))
}

func newTestAdapter(t *testing.T, svc *memory.Service) *FTPAdapter {
	t.Helper()

	a, err := New(FTPConfig{
		Enabled:         true,
		ListenAddr:      "127.0.0.1:0",
		ShutdownTimeout: 5 * time.Second,
	}, auth.New(svc, auth.Config{}, nil), testFSOptions(t), nil)
	require.NoError(t, err)
	return a
}
