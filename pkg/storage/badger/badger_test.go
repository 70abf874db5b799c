package badger

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoftp/pkg/storage"
	"github.com/marmos91/dittoftp/pkg/storage/storagetest"
)

func newTestService(t *testing.T, path string) *Service {
	t.Helper()
	svc, err := Open(Config{Path: path, Accounts: storagetest.Accounts()})
	require.NoError(t, err)
	return svc
}

func TestBadgerService(t *testing.T) {
	suite := &storagetest.Suite{
		NewService: func(t *testing.T) storage.Service {
			svc := newTestService(t, t.TempDir())
			t.Cleanup(func() { _ = svc.Close() })
			return svc
		},
	}
	suite.Run(t)
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	svc := newTestService(t, dir)
	client, err := svc.Open(ctx, storagetest.Owner)
	require.NoError(t, err)
	require.NoError(t, client.CreateContainer(ctx, "photos"))
	require.NoError(t, client.Upload(ctx, "photos", "2024/a.jpg", bytes.NewReader([]byte("jpeg")), 4))
	require.NoError(t, svc.Close())

	svc = newTestService(t, dir)
	defer svc.Close()
	client, err = svc.Open(ctx, storagetest.Owner)
	require.NoError(t, err)

	obj, err := client.GetKey(ctx, "photos", "2024/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(4), obj.Size)
}

func TestContainerPrefixesDoNotOverlap(t *testing.T) {
	ctx := context.Background()
	svc, err := Open(Config{InMemory: true, Accounts: storagetest.Accounts()})
	require.NoError(t, err)
	defer svc.Close()

	client, err := svc.Open(ctx, storagetest.Owner)
	require.NoError(t, err)
	require.NoError(t, client.CreateContainer(ctx, "a"))
	require.NoError(t, client.CreateContainer(ctx, "ab"))
	require.NoError(t, client.Upload(ctx, "ab", "k", bytes.NewReader([]byte("x")), 1))

	it, err := client.ListKeys(ctx, "a", storage.ListOptions{})
	require.NoError(t, err)
	assert.False(t, it.Next())

	assert.NoError(t, client.DeleteContainer(ctx, "a"))
}

func uploadKeys(t *testing.T, client storage.Client, container string, keys []string) {
	t.Helper()
	ctx := context.Background()
	for _, key := range keys {
		require.NoError(t, client.Upload(ctx, container, key, bytes.NewReader([]byte("x")), 1))
	}
}

func TestListKeysAcrossPages(t *testing.T) {
	ctx := context.Background()
	svc, err := Open(Config{InMemory: true, Accounts: storagetest.Accounts()})
	require.NoError(t, err)
	defer svc.Close()

	client, err := svc.Open(ctx, storagetest.Owner)
	require.NoError(t, err)
	require.NoError(t, client.CreateContainer(ctx, "bulk"))

	total := 2*listPageSize + 10
	keys := make([]string, 0, total+2)
	for i := 0; i < total; i++ {
		keys = append(keys, fmt.Sprintf("flat/%04d.txt", i))
	}
	keys = append(keys, "top.txt", "zeta/one.txt")
	uploadKeys(t, client, "bulk", keys)

	it, err := client.ListKeys(ctx, "bulk", storage.ListOptions{Prefix: "flat/", Delimiter: "/"})
	require.NoError(t, err)
	count := 0
	prev := ""
	for it.Next() {
		name := it.Entry().Name
		assert.Greater(t, name, prev)
		prev = name
		count++
	}
	require.NoError(t, it.Err())
	assert.Equal(t, total, count)

	it, err = client.ListKeys(ctx, "bulk", storage.ListOptions{Delimiter: "/"})
	require.NoError(t, err)
	var got []string
	for it.Next() {
		got = append(got, it.Entry().Name)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"flat/", "top.txt", "zeta/"}, got)
}

func TestKeyPagerLoadsOnePageAtATime(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := Open(Config{InMemory: true, Accounts: storagetest.Accounts()})
	require.NoError(t, err)
	defer svc.Close()

	client, err := svc.Open(ctx, storagetest.Owner)
	require.NoError(t, err)
	require.NoError(t, client.CreateContainer(ctx, "bulk"))

	keys := make([]string, 0, listPageSize+5)
	for i := 0; i < listPageSize+5; i++ {
		keys = append(keys, fmt.Sprintf("%04d", i))
	}
	uploadKeys(t, client, "bulk", keys)

	prefix := keyMetaPrefix("bulk")
	p := &keyPager{ctx: ctx, db: svc.db, container: "bulk", trim: len(prefix), prefix: prefix, seek: prefix}

	obj, ok, err := p.next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0000", obj.Key)
	assert.Len(t, p.buf, listPageSize)
	assert.False(t, p.exhausted)

	for i := 1; i < listPageSize; i++ {
		_, ok, err = p.next()
		require.NoError(t, err)
		require.True(t, ok)
	}

	// The next page is only read on demand, so a cancelled caller stops here.
	cancel()
	_, ok, err = p.next()
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
