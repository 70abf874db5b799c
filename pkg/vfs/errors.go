package vfs

import (
	"errors"
	"io/fs"
)

// Kind classifies filesystem errors.
type Kind int

const (
	// KindInvalidPath indicates a malformed protocol path.
	KindInvalidPath Kind = iota + 1

	// KindAuth indicates bad credentials or a principal that is not allowed.
	KindAuth

	// KindNotPermitted indicates an operation that is structurally disallowed,
	// e.g. writing to a container, removing a key as a directory, renaming.
	KindNotPermitted

	// KindNotFound indicates a resolution miss at any level.
	KindNotFound

	// KindNotADirectory indicates a change-directory target that is not a directory.
	KindNotADirectory

	// KindDirectoryNotEmpty indicates container deletion blocked by existing keys.
	KindDirectoryNotEmpty

	// KindUnsupported indicates an explicitly unimplemented operation.
	KindUnsupported

	// KindIO indicates a storage transport failure that fits no other kind.
	KindIO
)

// String returns the kind name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindInvalidPath:
		return "invalid_path"
	case KindAuth:
		return "auth"
	case KindNotPermitted:
		return "not_permitted"
	case KindNotFound:
		return "not_found"
	case KindNotADirectory:
		return "not_a_directory"
	case KindDirectoryNotEmpty:
		return "directory_not_empty"
	case KindUnsupported:
		return "unsupported"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

func (k Kind) defaultMessage() string {
	switch k {
	case KindInvalidPath:
		return "invalid path"
	case KindAuth:
		return "authentication failed"
	case KindNotPermitted:
		return "operation not permitted"
	case KindNotFound:
		return "no such file or directory"
	case KindNotADirectory:
		return "not a directory"
	case KindDirectoryNotEmpty:
		return "directory not empty"
	case KindUnsupported:
		return "operation not supported"
	case KindIO:
		return "input/output error"
	default:
		return "unknown error"
	}
}

// Error is the error type returned by every FS operation.
//
// Errors match by kind:
//
//	if errors.Is(err, vfs.ErrNotFound) { ... }
//
// They also unwrap to the closest io/fs sentinel so callers that only know
// the standard library (fs.ErrNotExist, fs.ErrPermission, ...) can classify
// them.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Msg  string
}

// Error implements error.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.defaultMessage()
	}
	switch {
	case e.Op != "" && e.Path != "":
		return e.Op + " " + e.Path + ": " + msg
	case e.Op != "":
		return e.Op + ": " + msg
	default:
		return msg
	}
}

// Is reports whether target is a *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Unwrap maps the kind onto the standard library's filesystem errors.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindNotFound:
		return fs.ErrNotExist
	case KindNotPermitted, KindAuth:
		return fs.ErrPermission
	case KindInvalidPath, KindNotADirectory:
		return fs.ErrInvalid
	case KindDirectoryNotEmpty:
		return fs.ErrExist
	case KindUnsupported:
		return errors.ErrUnsupported
	default:
		return nil
	}
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidPath       = &Error{Kind: KindInvalidPath}
	ErrAuth              = &Error{Kind: KindAuth}
	ErrNotPermitted      = &Error{Kind: KindNotPermitted}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrNotADirectory     = &Error{Kind: KindNotADirectory}
	ErrDirectoryNotEmpty = &Error{Kind: KindDirectoryNotEmpty}
	ErrUnsupported       = &Error{Kind: KindUnsupported}
	ErrIO                = &Error{Kind: KindIO}
)

// NewError builds an Error. An empty msg uses the kind's default message.
func NewError(kind Kind, op, path, msg string) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Msg: msg}
}

// KindOf returns the kind of err, or 0 if err is nil or not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
