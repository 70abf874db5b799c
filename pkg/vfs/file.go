package vfs

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/marmos91/dittoftp/internal/logger"
	"github.com/marmos91/dittoftp/pkg/storage"
)

// OpenMode selects read or write access.
type OpenMode int

const (
	ModeRead OpenMode = iota
	ModeWrite
)

func (m OpenMode) String() string {
	if m == ModeRead {
		return "read"
	}
	return "write"
}

// ParseOpenMode maps a stdio-style mode string ("r", "rb", "w", "wb", ...)
// onto an OpenMode: anything containing 'r' reads, everything else writes.
func ParseOpenMode(s string) OpenMode {
	if strings.Contains(s, "r") {
		return ModeRead
	}
	return ModeWrite
}

// File is an open key.
//
// A write handle buffers everything in a private staging file and uploads it
// as one object on Close; nothing reaches storage before that. A read handle
// streams the object. Neither supports seeking.
//
// The context given to Open governs the handle's storage calls, including
// the upload performed by Close.
type File struct {
	fs   *FS
	ctx  context.Context
	addr Address
	path string
	mode OpenMode

	// write mode
	staging     afero.File
	stagingPath string
	written     int64

	// read mode
	reader io.ReadCloser
	read   int64

	closed bool
}

// Name returns the protocol path the file was opened with.
func (f *File) Name() string { return f.path }

// Address returns the resolved address of the file.
func (f *File) Address() Address { return f.addr }

// Mode returns the access mode.
func (f *File) Mode() OpenMode { return f.mode }

// Closed reports whether Close has been called.
func (f *File) Closed() bool { return f.closed }

// StagingPath returns the staging file path of an open write handle, or "".
func (f *File) StagingPath() string { return f.stagingPath }

// Write appends p to the staging file.
func (f *File) Write(p []byte) (int, error) {
	if f.mode != ModeWrite || f.closed {
		return 0, f.fs.fail(KindNotPermitted, opWrite, f.path, nil, "file not open for writing")
	}

	n, err := f.staging.Write(p)
	f.written += int64(n)
	if err != nil {
		return n, f.fs.fail(KindIO, opWrite, f.path, err, "")
	}
	return n, nil
}

// Read reads from the remote object. io.EOF is returned unwrapped.
func (f *File) Read(p []byte) (int, error) {
	if f.mode != ModeRead || f.closed {
		return 0, f.fs.fail(KindNotPermitted, opRead, f.path, nil, "file not open for reading")
	}

	n, err := f.reader.Read(p)
	f.read += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, f.fs.fail(KindIO, opRead, f.path, err, "")
	}
	return n, err
}

// Seek is not supported: objects are written whole and read as a stream.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	return 0, f.fs.fail(KindNotPermitted, opSeek, f.path, nil, "seek is not supported")
}

// Close finishes the handle. For a write handle it uploads the staged bytes
// as the complete object and deletes the staging file, whatever the outcome.
// Close is idempotent.
//
// If the container disappeared while the write was staged, the upload is
// dropped with an error log and Close returns nil: the race is detected, not
// a failure of the write itself.
func (f *File) Close() (err error) {
	if f.closed {
		return nil
	}
	f.closed = true

	if f.mode == ModeRead {
		f.fs.metrics.RecordBytesTransferred("download", f.read)
		if cerr := f.reader.Close(); cerr != nil {
			logger.Debug("Closing object stream failed", logger.KeyPath, f.path, logger.KeyError, cerr)
		}
		return nil
	}

	defer f.fs.track(opClose, time.Now(), &err)

	stagingPath := f.stagingPath
	uploadErr := f.upload()

	if rmErr := f.fs.staging.Remove(stagingPath); rmErr != nil {
		logger.Warn("Failed to remove staging file",
			"staging", stagingPath,
			logger.KeySession, f.fs.session.ID,
			logger.KeyError, rmErr)
	}
	f.staging = nil
	f.stagingPath = ""

	return uploadErr
}

func (f *File) upload() error {
	if err := f.staging.Close(); err != nil {
		return f.fs.fail(KindIO, opClose, f.path, err, "")
	}

	body, err := f.fs.staging.Open(f.stagingPath)
	if err != nil {
		return f.fs.fail(KindIO, opClose, f.path, err, "")
	}
	defer body.Close()

	info, err := body.Stat()
	if err != nil {
		return f.fs.fail(KindIO, opClose, f.path, err, "")
	}
	size := info.Size()

	err = f.fs.client().Upload(f.ctx, f.addr.Container, f.addr.Key, body, size)
	if errors.Is(err, storage.ErrContainerNotFound) {
		logger.Error("Container vanished during upload, object dropped",
			logger.KeyPath, f.path,
			logger.KeyContainer, f.addr.Container,
			logger.KeyKey, f.addr.Key,
			logger.KeySession, f.fs.session.ID,
			logger.KeyPrincipal, f.fs.session.Principal)
		f.fs.metrics.RecordVanishedContainer()
		return nil
	}
	if err != nil {
		return f.fs.fail(KindIO, opClose, f.path, err, "upload failed")
	}

	f.fs.metrics.RecordBytesTransferred("upload", size)
	logger.Debug("Object uploaded",
		logger.KeyPath, f.path,
		logger.KeySize, size,
		logger.KeySession, f.fs.session.ID)
	return nil
}
