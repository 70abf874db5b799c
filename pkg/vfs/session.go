package vfs

import (
	"github.com/google/uuid"

	"github.com/marmos91/dittoftp/pkg/storage"
)

// Session is the state of one authenticated connection.
//
// A session owns its storage client exclusively; it must never be shared
// with another connection. The current directory is per session.
type Session struct {
	// ID identifies the session in logs.
	ID string

	// Principal is the username the client logged in with, before any
	// credential transform.
	Principal string

	// Credentials are the storage credentials the principal mapped to.
	Credentials storage.Credentials

	// Client is the storage client opened with Credentials.
	Client storage.Client

	cwd string
}

// NewSession creates a session with a fresh ID.
func NewSession(principal string, creds storage.Credentials, client storage.Client) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Principal:   principal,
		Credentials: creds,
		Client:      client,
	}
}
