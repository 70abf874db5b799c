package storage

import "errors"

// Standard storage errors. Implementations wrap these with context:
//
//	return fmt.Errorf("container %q: %w", name, storage.ErrContainerNotFound)
var (
	// ErrInvalidCredentials indicates the service rejected the access key or secret.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrContainerNotFound indicates the container does not exist.
	//
	// Also returned by Upload when the container disappears while the upload
	// is in flight.
	ErrContainerNotFound = errors.New("container not found")

	// ErrContainerExists indicates the container name is already taken.
	ErrContainerExists = errors.New("container already exists")

	// ErrContainerNotEmpty indicates a container still holds keys.
	ErrContainerNotEmpty = errors.New("container not empty")

	// ErrKeyNotFound indicates the key does not exist in the container.
	ErrKeyNotFound = errors.New("key not found")
)

// IsNotFound reports whether err means a missing container or key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContainerNotFound) || errors.Is(err, ErrKeyNotFound)
}
