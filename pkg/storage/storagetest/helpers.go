package storagetest

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoftp/pkg/storage"
)

// open opens the Owner account and fails the test on error.
func (s *Suite) open(t *testing.T) storage.Client {
	t.Helper()
	client, err := s.NewService(t).Open(testContext(), Owner)
	require.NoError(t, err, "Open should accept owner credentials")
	return client
}

// containerName returns a unique, S3-valid container name.
func containerName() string {
	return "st-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// mustCreateContainer creates a uniquely named container and removes it (and
// its keys) when the test ends.
func mustCreateContainer(t *testing.T, client storage.Client) string {
	t.Helper()
	name := containerName()
	require.NoError(t, client.CreateContainer(testContext(), name))

	t.Cleanup(func() {
		it, err := client.ListKeys(testContext(), name, storage.ListOptions{})
		if err != nil {
			return
		}
		for it.Next() {
			_ = client.DeleteKey(testContext(), name, it.Entry().Name)
		}
		_ = client.DeleteContainer(testContext(), name)
	})
	return name
}

// mustUpload uploads data and fails the test if it errors.
func mustUpload(t *testing.T, client storage.Client, container, key string, data []byte) {
	t.Helper()
	err := client.Upload(testContext(), container, key, bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err, "Upload should succeed")
}

// mustRead reads a key fully and fails the test if it errors.
func mustRead(t *testing.T, client storage.Client, container, key string) []byte {
	t.Helper()
	rc, err := client.Read(testContext(), container, key)
	require.NoError(t, err, "Read should succeed")
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

// collect drains an iterator.
func collect(t *testing.T, it storage.KeyIterator) []storage.ListEntry {
	t.Helper()
	var entries []storage.ListEntry
	for it.Next() {
		entries = append(entries, it.Entry())
	}
	require.NoError(t, it.Err())
	return entries
}

func entryNames(entries []storage.ListEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}
