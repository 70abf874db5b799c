package vfs

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoftp/pkg/storage"
)

func TestParseOpenMode(t *testing.T) {
	for _, s := range []string{"r", "rb", "r+", "br"} {
		assert.Equal(t, ModeRead, ParseOpenMode(s), s)
	}
	for _, s := range []string{"w", "wb", "a", ""} {
		assert.Equal(t, ModeWrite, ParseOpenMode(s), s)
	}
	assert.Equal(t, "read", ModeRead.String())
	assert.Equal(t, "write", ModeWrite.String())
}

func TestWriteIsStagedUntilClose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mustMkdir(t, "/alice/b")

	f, err := env.fs.Open(ctx, "/alice/b/new.txt", ModeWrite)
	require.NoError(t, err)
	assert.Equal(t, "/alice/b/new.txt", f.Name())
	assert.Equal(t, Address{"alice", "b", "new.txt"}, f.Address())
	assert.Equal(t, ModeWrite, f.Mode())

	_, err = f.Write([]byte("Hel"))
	require.NoError(t, err)
	_, err = f.Write([]byte("lo"))
	require.NoError(t, err)

	staged := f.StagingPath()
	require.NotEmpty(t, staged)
	exists, err := afero.Exists(env.staging, staged)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = env.client.GetKey(ctx, "b", "new.txt")
	assert.ErrorIs(t, err, storage.ErrKeyNotFound, "nothing uploaded before close")

	require.NoError(t, f.Close())
	assert.True(t, f.Closed())
	assert.Empty(t, f.StagingPath())

	exists, err = afero.Exists(env.staging, staged)
	require.NoError(t, err)
	assert.False(t, exists, "staging file removed after close")

	assert.Equal(t, []byte("Hello"), env.mustReadFile(t, "/alice/b/new.txt"))
	assert.Equal(t, int64(5), env.metrics.bytes["upload"])
	assert.Equal(t, int64(5), env.metrics.bytes["download"])
}

func TestWriteReplacesExistingObject(t *testing.T) {
	env := newTestEnv(t)
	env.mustMkdir(t, "/alice/b")
	env.mustPut(t, "b", "k", []byte("old contents"))

	env.mustWriteFile(t, "/alice/b/k", []byte("new"))
	assert.Equal(t, []byte("new"), env.mustReadFile(t, "/alice/b/k"))
}

func TestWriteAfterCloseNotPermitted(t *testing.T) {
	env := newTestEnv(t)
	env.mustMkdir(t, "/alice/b")

	f, err := env.fs.Open(context.Background(), "/alice/b/k", ModeWrite)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = f.Write([]byte("late"))
	assert.ErrorIs(t, err, ErrNotPermitted)
	assert.NoError(t, f.Close(), "close is idempotent")
}

func TestReadHandleRejectsWrites(t *testing.T) {
	env := newTestEnv(t)
	env.mustMkdir(t, "/alice/b")
	env.mustPut(t, "b", "k", []byte("data"))

	f, err := env.fs.Open(context.Background(), "/alice/b/k", ModeRead)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrNotPermitted)
	assert.Empty(t, env.stagingFiles(t), "read handles never stage")
}

func TestWriteHandleRejectsReads(t *testing.T) {
	env := newTestEnv(t)
	env.mustMkdir(t, "/alice/b")

	f, err := env.fs.Open(context.Background(), "/alice/b/k", ModeWrite)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrNotPermitted)
}

func TestReadReturnsPlainEOF(t *testing.T) {
	env := newTestEnv(t)
	env.mustMkdir(t, "/alice/b")
	env.mustPut(t, "b", "k", []byte("ab"))

	f, err := env.fs.Open(context.Background(), "/alice/b/k", ModeRead)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 8)
	n, _ := f.Read(buf)
	assert.Equal(t, 2, n)

	_, err = f.Read(buf)
	assert.Equal(t, io.EOF, err)
}

func TestSeekNotPermitted(t *testing.T) {
	env := newTestEnv(t)
	env.mustMkdir(t, "/alice/b")
	env.mustPut(t, "b", "k", []byte("data"))

	for _, mode := range []OpenMode{ModeRead, ModeWrite} {
		f, err := env.fs.Open(context.Background(), "/alice/b/k", mode)
		require.NoError(t, err)

		_, err = f.Seek(2, io.SeekStart)
		assert.ErrorIs(t, err, ErrNotPermitted)
		require.NoError(t, f.Close())
	}
}

func TestCloseSwallowsVanishedContainer(t *testing.T) {
	logs := captureLogs(t)
	env := newTestEnv(t)
	ctx := context.Background()
	env.mustMkdir(t, "/alice/b")

	f, err := env.fs.Open(ctx, "/alice/b/k", ModeWrite)
	require.NoError(t, err)
	_, err = f.Write([]byte("orphan"))
	require.NoError(t, err)

	require.NoError(t, env.client.DeleteContainer(ctx, "b"))

	assert.NoError(t, f.Close())
	assert.Equal(t, 1, env.metrics.vanished)
	assert.Contains(t, logs.String(), "Container vanished")
	assert.Empty(t, env.stagingFiles(t))
}

func TestCloseReportsUploadFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mustMkdir(t, "/alice/b")

	env.fs.session.Client = &failingClient{Client: env.client, uploadErr: errors.New("503 slow down")}

	f, err := env.fs.Open(ctx, "/alice/b/k", ModeWrite)
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	require.NoError(t, err)

	err = f.Close()
	assert.ErrorIs(t, err, ErrIO)
	assert.NotContains(t, err.Error(), "503", "storage errors do not leak")
	assert.Empty(t, env.stagingFiles(t), "staging removed on failure too")
	assert.Equal(t, []string{"io"}, env.metrics.ops[opClose])
}

func TestOpenWriteSurfacesLookupFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mustMkdir(t, "/alice/b")

	env.fs.session.Client = &failingClient{Client: env.client, getKeyErr: errors.New("timeout")}

	_, err := env.fs.Open(context.Background(), "/alice/b/k", ModeWrite)
	assert.ErrorIs(t, err, ErrIO)
	assert.Empty(t, env.stagingFiles(t))
}

func TestOpenWriteStagingFailure(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.Staging = afero.NewReadOnlyFs(afero.NewMemMapFs()) })
	env.mustMkdir(t, "/alice/b")

	_, err := env.fs.Open(context.Background(), "/alice/b/k", ModeWrite)
	assert.ErrorIs(t, err, ErrIO)
}
