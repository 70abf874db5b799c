// Package vfs presents an object-storage account as a hierarchical filesystem.
//
// A protocol path has the shape
//
//	/<principal>/<container>/<key...>
//
// The first component names the logged-in principal, the second a container
// (bucket), and everything after that is joined with the storage delimiter
// into a single key. Containers behave as directories. Keys behave as files,
// and keys sharing a prefix up to the delimiter are shown as virtual
// directories in listings even though nothing exists at that name in storage.
//
// Writes are staged in a local temporary file and uploaded as one complete
// object when the handle is closed, since object stores do not support
// appends or partial writes.
//
// Every exported operation of FS returns either nil or a *Error whose Kind
// belongs to a small filesystem-style taxonomy; storage errors never cross
// this package's boundary.
package vfs
