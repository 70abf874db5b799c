// Package adapter defines the contract between the server orchestrator and
// the protocol front-ends that expose the virtual filesystem.
package adapter

import (
	"context"
)

// Adapter is one protocol front-end (FTP today) run by pkg/server.
//
// An adapter owns its listener and its client sessions. Sessions are
// authenticated through the shared auth.Authenticator and each gets its own
// vfs.FS, so adapters never share per-client state.
//
// Serve and Stop may run concurrently; Stop must be idempotent.
type Adapter interface {
	// Serve binds the listener and handles clients until ctx is cancelled or
	// the listener fails.
	//
	// On cancellation Serve refuses new clients, waits for open sessions up
	// to the adapter's own shutdown timeout, then closes what is left. It
	// returns nil or context.Canceled in that case. Returning early with any
	// other outcome makes the orchestrator stop every other adapter.
	Serve(ctx context.Context) error

	// Stop shuts the adapter down, bounded by ctx. Calling it more than once,
	// or before Serve has bound its listener, is allowed.
	Stop(ctx context.Context) error

	// Protocol names the protocol in logs and metrics, e.g. "FTP".
	Protocol() string

	// Addr is the bound listen address once Serve is listening (so port 0
	// resolves), otherwise the configured one.
	Addr() string
}
