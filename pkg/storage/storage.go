// Package storage defines the boundary between the virtual filesystem and the
// object-storage service.
//
// The service is modeled as a set of containers (buckets) each holding a flat
// namespace of keys. There is no nesting: a key such as "photos/2024/a.jpg" is a
// single opaque name, and any hierarchy is an illusion produced at listing time
// by grouping keys on a delimiter.
//
// Implementations:
//   - s3:     Amazon S3 and S3-compatible services (aws-sdk-go-v2)
//   - memory: in-process store for tests and demos
//   - badger: embedded persistent store on BadgerDB
//
// A Service authenticates credentials and hands out a Client. A Client is bound
// to the credentials it was opened with and must not be shared between
// sessions of different principals.
package storage

import (
	"context"
	"io"
	"time"
)

// Credentials identify an account on the storage service.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Container is a top-level namespace (bucket).
type Container struct {
	Name      string
	CreatedAt time.Time
}

// Object describes a stored key.
type Object struct {
	Container    string
	Key          string
	Size         int64
	LastModified time.Time
}

// ListEntry is one row of a key listing.
//
// When the listing uses a delimiter, keys sharing a prefix up to the delimiter
// collapse into a single entry with IsPrefix set and Name ending in the
// delimiter. LastModified is the service's own timestamp representation
// (ISO-8601 with fractional seconds, see FormatTimestamp); it is empty for
// prefix entries.
type ListEntry struct {
	Name         string
	Size         int64
	LastModified string
	IsPrefix     bool
}

// ListOptions scopes a key listing.
type ListOptions struct {
	// Prefix restricts the listing to keys starting with it.
	Prefix string

	// Delimiter, when non-empty, groups keys into common prefixes.
	Delimiter string
}

// KeyIterator is a forward-only cursor over a key listing.
//
// Implementations may fetch pages lazily, so a caller that stops early never
// pays for the rest of the listing.
//
//	it, err := client.ListKeys(ctx, "photos", storage.ListOptions{Delimiter: "/"})
//	for it.Next() {
//	    entry := it.Entry()
//	}
//	if err := it.Err(); err != nil { ... }
type KeyIterator interface {
	Next() bool
	Entry() ListEntry
	Err() error
}

// Service opens authenticated sessions against the storage service.
type Service interface {
	// Open verifies the credentials and returns a client bound to them.
	// Returns ErrInvalidCredentials (possibly wrapped) when the service rejects them.
	Open(ctx context.Context, creds Credentials) (Client, error)

	// Name returns the backend name ("s3", "memory", "badger").
	Name() string
}

// Client performs container and key operations for one account.
//
// Error contract (all errors may be wrapped, test with errors.Is):
//   - ErrContainerNotFound: the named container does not exist
//   - ErrContainerExists: CreateContainer on a taken name
//   - ErrContainerNotEmpty: DeleteContainer on a container holding keys
//   - ErrKeyNotFound: GetKey, DeleteKey or Read on a missing key
type Client interface {
	ListContainers(ctx context.Context) ([]Container, error)
	CreateContainer(ctx context.Context, name string) error
	GetContainer(ctx context.Context, name string) (*Container, error)
	DeleteContainer(ctx context.Context, name string) error

	ListKeys(ctx context.Context, container string, opts ListOptions) (KeyIterator, error)
	GetKey(ctx context.Context, container, key string) (*Object, error)
	DeleteKey(ctx context.Context, container, key string) error

	// Upload stores body as the complete content of key, replacing any
	// previous object. size is the exact body length.
	Upload(ctx context.Context, container, key string, body io.ReadSeeker, size int64) error

	// Read streams the content of key. The caller closes the reader.
	Read(ctx context.Context, container, key string) (io.ReadCloser, error)
}
