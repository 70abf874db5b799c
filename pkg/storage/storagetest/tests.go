package storagetest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoftp/pkg/storage"
)

// RunCredentialTests checks Open.
func (s *Suite) RunCredentialTests(t *testing.T) {
	if s.SkipAccountChecks {
		t.Skip("backend does not enforce credentials")
	}

	t.Run("ValidCredentials", func(t *testing.T) {
		_, err := s.NewService(t).Open(testContext(), Owner)
		assert.NoError(t, err)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		_, err := s.NewService(t).Open(testContext(), storage.Credentials{
			AccessKeyID:     Owner.AccessKeyID,
			SecretAccessKey: "wrong",
		})
		assert.ErrorIs(t, err, storage.ErrInvalidCredentials)
	})

	t.Run("UnknownAccount", func(t *testing.T) {
		_, err := s.NewService(t).Open(testContext(), storage.Credentials{
			AccessKeyID:     "nobody",
			SecretAccessKey: "nothing",
		})
		assert.ErrorIs(t, err, storage.ErrInvalidCredentials)
	})
}

// RunContainerTests checks the container lifecycle.
func (s *Suite) RunContainerTests(t *testing.T) {
	t.Run("CreateGetDelete", func(t *testing.T) {
		client := s.open(t)
		name := containerName()

		require.NoError(t, client.CreateContainer(testContext(), name))

		c, err := client.GetContainer(testContext(), name)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name)

		require.NoError(t, client.DeleteContainer(testContext(), name))

		_, err = client.GetContainer(testContext(), name)
		assert.ErrorIs(t, err, storage.ErrContainerNotFound)
	})

	t.Run("ListIncludesCreated", func(t *testing.T) {
		client := s.open(t)
		name := mustCreateContainer(t, client)

		containers, err := client.ListContainers(testContext())
		require.NoError(t, err)

		var names []string
		for _, c := range containers {
			names = append(names, c.Name)
		}
		assert.Contains(t, names, name)
	})

	t.Run("GetMissing", func(t *testing.T) {
		client := s.open(t)
		_, err := client.GetContainer(testContext(), containerName())
		assert.ErrorIs(t, err, storage.ErrContainerNotFound)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		client := s.open(t)
		err := client.DeleteContainer(testContext(), containerName())
		assert.ErrorIs(t, err, storage.ErrContainerNotFound)
	})

	t.Run("DeleteNotEmpty", func(t *testing.T) {
		client := s.open(t)
		name := mustCreateContainer(t, client)
		mustUpload(t, client, name, "file.txt", []byte("x"))

		err := client.DeleteContainer(testContext(), name)
		assert.ErrorIs(t, err, storage.ErrContainerNotEmpty)
	})

	t.Run("CreateTwice", func(t *testing.T) {
		if s.SkipAccountChecks {
			t.Skip("backend treats re-creation by the owner as success")
		}
		client := s.open(t)
		name := mustCreateContainer(t, client)

		err := client.CreateContainer(testContext(), name)
		assert.ErrorIs(t, err, storage.ErrContainerExists)
	})

	t.Run("AccountsAreIsolated", func(t *testing.T) {
		if s.SkipAccountChecks {
			t.Skip("backend does not isolate accounts")
		}
		svc := s.NewService(t)
		owner, err := svc.Open(testContext(), Owner)
		require.NoError(t, err)
		other, err := svc.Open(testContext(), Other)
		require.NoError(t, err)

		name := mustCreateContainer(t, owner)

		_, err = other.GetContainer(testContext(), name)
		assert.ErrorIs(t, err, storage.ErrContainerNotFound)

		containers, err := other.ListContainers(testContext())
		require.NoError(t, err)
		assert.Empty(t, containers)

		err = other.CreateContainer(testContext(), name)
		assert.ErrorIs(t, err, storage.ErrContainerExists)
	})
}

// RunKeyTests checks key CRUD.
func (s *Suite) RunKeyTests(t *testing.T) {
	t.Run("UploadReadStat", func(t *testing.T) {
		client := s.open(t)
		name := mustCreateContainer(t, client)
		data := []byte("hello, object storage")

		mustUpload(t, client, name, "docs/hello.txt", data)

		assert.Equal(t, data, mustRead(t, client, name, "docs/hello.txt"))

		obj, err := client.GetKey(testContext(), name, "docs/hello.txt")
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), obj.Size)
		assert.False(t, obj.LastModified.IsZero())
	})

	t.Run("UploadReplaces", func(t *testing.T) {
		client := s.open(t)
		name := mustCreateContainer(t, client)

		mustUpload(t, client, name, "a", []byte("first version"))
		mustUpload(t, client, name, "a", []byte("second"))

		assert.Equal(t, []byte("second"), mustRead(t, client, name, "a"))
	})

	t.Run("EmptyObject", func(t *testing.T) {
		client := s.open(t)
		name := mustCreateContainer(t, client)

		mustUpload(t, client, name, "empty", nil)

		obj, err := client.GetKey(testContext(), name, "empty")
		require.NoError(t, err)
		assert.Zero(t, obj.Size)
		assert.Empty(t, mustRead(t, client, name, "empty"))
	})

	t.Run("MissingKey", func(t *testing.T) {
		client := s.open(t)
		name := mustCreateContainer(t, client)

		_, err := client.GetKey(testContext(), name, "nope")
		assert.ErrorIs(t, err, storage.ErrKeyNotFound)

		_, err = client.Read(testContext(), name, "nope")
		assert.ErrorIs(t, err, storage.ErrKeyNotFound)

		err = client.DeleteKey(testContext(), name, "nope")
		assert.ErrorIs(t, err, storage.ErrKeyNotFound)
	})

	t.Run("DeleteTwice", func(t *testing.T) {
		client := s.open(t)
		name := mustCreateContainer(t, client)
		mustUpload(t, client, name, "k", []byte("v"))

		require.NoError(t, client.DeleteKey(testContext(), name, "k"))
		assert.ErrorIs(t, client.DeleteKey(testContext(), name, "k"), storage.ErrKeyNotFound)
	})

	t.Run("UploadToMissingContainer", func(t *testing.T) {
		client := s.open(t)
		err := client.Upload(testContext(), containerName(), "k", bytes.NewReader(nil), 0)
		assert.ErrorIs(t, err, storage.ErrContainerNotFound)
	})
}

// RunListingTests checks delimiter grouping.
func (s *Suite) RunListingTests(t *testing.T) {
	setup := func(t *testing.T) (storage.Client, string) {
		client := s.open(t)
		name := mustCreateContainer(t, client)
		for _, key := range []string{"a.txt", "b.txt", "docs/one.txt", "docs/two.txt", "docs/sub/three.txt"} {
			mustUpload(t, client, name, key, []byte(key))
		}
		return client, name
	}

	t.Run("Flat", func(t *testing.T) {
		client, name := setup(t)
		it, err := client.ListKeys(testContext(), name, storage.ListOptions{})
		require.NoError(t, err)

		assert.ElementsMatch(t,
			[]string{"a.txt", "b.txt", "docs/one.txt", "docs/two.txt", "docs/sub/three.txt"},
			entryNames(collect(t, it)))
	})

	t.Run("Delimited", func(t *testing.T) {
		client, name := setup(t)
		it, err := client.ListKeys(testContext(), name, storage.ListOptions{Delimiter: "/"})
		require.NoError(t, err)

		entries := collect(t, it)
		assert.ElementsMatch(t, []string{"a.txt", "b.txt", "docs/"}, entryNames(entries))

		for _, e := range entries {
			if e.Name == "docs/" {
				assert.True(t, e.IsPrefix)
			} else {
				assert.False(t, e.IsPrefix)
				assert.Equal(t, int64(len(e.Name)), e.Size)
				assert.NotEmpty(t, e.LastModified)
			}
		}
	})

	t.Run("PrefixDelimited", func(t *testing.T) {
		client, name := setup(t)
		it, err := client.ListKeys(testContext(), name, storage.ListOptions{Prefix: "docs/", Delimiter: "/"})
		require.NoError(t, err)

		assert.ElementsMatch(t,
			[]string{"docs/one.txt", "docs/two.txt", "docs/sub/"},
			entryNames(collect(t, it)))
	})

	t.Run("EmptyContainer", func(t *testing.T) {
		client := s.open(t)
		name := mustCreateContainer(t, client)

		it, err := client.ListKeys(testContext(), name, storage.ListOptions{Delimiter: "/"})
		require.NoError(t, err)
		assert.Empty(t, collect(t, it))
	})

	t.Run("MissingContainer", func(t *testing.T) {
		client := s.open(t)
		it, err := client.ListKeys(testContext(), containerName(), storage.ListOptions{})
		if err == nil {
			// Lazy iterators report the failure on the first page.
			assert.False(t, it.Next())
			err = it.Err()
		}
		assert.ErrorIs(t, err, storage.ErrContainerNotFound)
	})
}
