package ftp

import (
	"context"
	"io"
	"os"
	"time"

	ftpserver "github.com/fclairamb/ftpserverlib"
	"github.com/spf13/afero"

	"github.com/marmos91/dittoftp/pkg/vfs"
)

// ============================================================================
// Filesystem
// ============================================================================

// clientFs exposes one session's virtual filesystem as an afero.Fs, which is
// what ftpserverlib drives. Every call runs under the session context.
type clientFs struct {
	ctx context.Context
	fs  *vfs.FS
}

var (
	_ afero.Fs                                 = (*clientFs)(nil)
	_ ftpserver.ClientDriverExtensionRemoveDir = (*clientFs)(nil)
	_ ftpserver.ClientDriverExtensionFileList  = (*clientFs)(nil)
	_ afero.File                               = (*clientFile)(nil)
	_ afero.File                               = (*dirFile)(nil)
)

func newClientFs(ctx context.Context, fsys *vfs.FS) *clientFs {
	return &clientFs{ctx: ctx, fs: fsys}
}

func unsupported(op, name string) error {
	return vfs.NewError(vfs.KindUnsupported, op, name, "")
}

// Name identifies the filesystem.
func (c *clientFs) Name() string { return "dittoftp" }

// Create opens name for writing, replacing any existing object on close.
func (c *clientFs) Create(name string) (afero.File, error) {
	return c.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
}

// Open opens name for reading. Directories open as listable handles.
func (c *clientFs) Open(name string) (afero.File, error) {
	return c.OpenFile(name, os.O_RDONLY, 0)
}

// OpenFile maps access flags onto a read or write handle. Appending is not
// possible on an object store.
func (c *clientFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&os.O_APPEND != 0 {
		return nil, unsupported("open", name)
	}

	writing := flag&(os.O_WRONLY|os.O_RDWR) != 0
	if !writing && c.fs.IsDirectory(name) {
		if _, err := c.Stat(name); err != nil {
			return nil, err
		}
		return &dirFile{ctx: c.ctx, fs: c.fs, name: name}, nil
	}

	mode := vfs.ModeRead
	if writing {
		mode = vfs.ModeWrite
	}

	f, err := c.fs.Open(c.ctx, name, mode)
	if err != nil {
		return nil, err
	}
	return &clientFile{ctx: c.ctx, fs: c.fs, file: f}, nil
}

// Mkdir creates a container.
func (c *clientFs) Mkdir(name string, perm os.FileMode) error {
	return c.fs.MakeDirectory(c.ctx, name)
}

// MkdirAll creates a container unless it already exists.
func (c *clientFs) MkdirAll(name string, perm os.FileMode) error {
	if c.fs.IsDirectory(name) {
		if ok, err := c.fs.Exists(c.ctx, name); err == nil && ok {
			return nil
		}
	}
	return c.fs.MakeDirectory(c.ctx, name)
}

// Remove deletes a key (DELE). Containers are refused with NotPermitted.
func (c *clientFs) Remove(name string) error {
	return c.fs.Remove(c.ctx, name)
}

// RemoveDir deletes a container (RMD). Paths naming a key are refused with
// NotPermitted.
func (c *clientFs) RemoveDir(name string) error {
	return c.fs.RemoveDirectory(c.ctx, name)
}

// RemoveAll removes a container or a key. Deletions never cascade.
func (c *clientFs) RemoveAll(name string) error {
	if c.fs.IsDirectory(name) {
		return c.RemoveDir(name)
	}
	return c.Remove(name)
}

// Rename always fails with NotPermitted.
func (c *clientFs) Rename(oldname, newname string) error {
	return c.fs.Rename(c.ctx, oldname, newname)
}

// Stat returns file information for name. Unlike vfs Stat, directories must
// exist: FTP clients probe paths with CWD and SIZE before using them.
func (c *clientFs) Stat(name string) (os.FileInfo, error) {
	if c.fs.IsDirectory(name) {
		ok, err := c.fs.Exists(c.ctx, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, vfs.NewError(vfs.KindNotFound, "stat", name, "")
		}
	}
	return c.fs.Stat(c.ctx, name)
}

// LstatIfPossible is Stat: there are no links.
func (c *clientFs) LstatIfPossible(name string) (os.FileInfo, bool, error) {
	info, err := c.Stat(name)
	return info, false, err
}

// ReadDir lists a directory. ftpserverlib prefers it to opening the
// directory and calling Readdir.
func (c *clientFs) ReadDir(name string) ([]os.FileInfo, error) {
	entries, err := c.fs.ReadDirectory(c.ctx, name)
	if err != nil {
		return nil, err
	}

	infos := make([]os.FileInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, e.FileInfo())
	}
	return infos, nil
}

func (c *clientFs) Chmod(name string, mode os.FileMode) error {
	return unsupported("chmod", name)
}

func (c *clientFs) Chown(name string, uid, gid int) error {
	return unsupported("chown", name)
}

func (c *clientFs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return unsupported("chtimes", name)
}

// ============================================================================
// Files
// ============================================================================

// clientFile adapts a vfs.File to afero.File.
type clientFile struct {
	ctx  context.Context
	fs   *vfs.FS
	file *vfs.File
}

func (f *clientFile) Name() string { return f.file.Name() }

func (f *clientFile) Read(p []byte) (int, error) { return f.file.Read(p) }

func (f *clientFile) Write(p []byte) (int, error) { return f.file.Write(p) }

func (f *clientFile) WriteString(s string) (int, error) { return f.file.Write([]byte(s)) }

func (f *clientFile) Seek(offset int64, whence int) (int64, error) {
	return f.file.Seek(offset, whence)
}

func (f *clientFile) Close() error { return f.file.Close() }

func (f *clientFile) ReadAt(p []byte, off int64) (int, error) {
	return 0, unsupported("readat", f.Name())
}

func (f *clientFile) WriteAt(p []byte, off int64) (int, error) {
	return 0, unsupported("writeat", f.Name())
}

func (f *clientFile) Readdir(count int) ([]os.FileInfo, error) {
	return nil, vfs.NewError(vfs.KindNotADirectory, "readdir", f.Name(), "")
}

func (f *clientFile) Readdirnames(n int) ([]string, error) {
	return nil, vfs.NewError(vfs.KindNotADirectory, "readdir", f.Name(), "")
}

func (f *clientFile) Stat() (os.FileInfo, error) {
	return f.fs.Stat(f.ctx, f.Name())
}

func (f *clientFile) Sync() error { return nil }

func (f *clientFile) Truncate(size int64) error {
	return unsupported("truncate", f.Name())
}

// dirFile is an opened directory. It lists lazily on the first Readdir and
// hands out entries in order across calls.
type dirFile struct {
	ctx  context.Context
	fs   *vfs.FS
	name string

	entries []os.FileInfo
	loaded  bool
	offset  int
}

func (d *dirFile) load() error {
	if d.loaded {
		return nil
	}
	entries, err := d.fs.ReadDirectory(d.ctx, d.name)
	if err != nil {
		return err
	}
	d.entries = make([]os.FileInfo, 0, len(entries))
	for _, e := range entries {
		d.entries = append(d.entries, e.FileInfo())
	}
	d.loaded = true
	return nil
}

func (d *dirFile) Name() string { return d.name }

// Readdir follows os.File semantics: count <= 0 returns everything left,
// otherwise at most count entries and io.EOF once exhausted.
func (d *dirFile) Readdir(count int) ([]os.FileInfo, error) {
	if err := d.load(); err != nil {
		return nil, err
	}

	rest := d.entries[d.offset:]
	if count <= 0 {
		d.offset = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if count > len(rest) {
		count = len(rest)
	}
	d.offset += count
	return rest[:count], nil
}

func (d *dirFile) Readdirnames(n int) ([]string, error) {
	infos, err := d.Readdir(n)
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	return names, err
}

func (d *dirFile) Stat() (os.FileInfo, error) {
	return d.fs.Stat(d.ctx, d.name)
}

func (d *dirFile) Close() error { return nil }

func (d *dirFile) Read(p []byte) (int, error) {
	return 0, vfs.NewError(vfs.KindNotPermitted, "read", d.name, "is a directory")
}

func (d *dirFile) ReadAt(p []byte, off int64) (int, error) {
	return 0, vfs.NewError(vfs.KindNotPermitted, "read", d.name, "is a directory")
}

func (d *dirFile) Write(p []byte) (int, error) {
	return 0, vfs.NewError(vfs.KindNotPermitted, "write", d.name, "is a directory")
}

func (d *dirFile) WriteAt(p []byte, off int64) (int, error) {
	return 0, vfs.NewError(vfs.KindNotPermitted, "write", d.name, "is a directory")
}

func (d *dirFile) WriteString(s string) (int, error) {
	return d.Write([]byte(s))
}

func (d *dirFile) Seek(offset int64, whence int) (int64, error) {
	return 0, vfs.NewError(vfs.KindNotPermitted, "seek", d.name, "")
}

func (d *dirFile) Sync() error { return nil }

func (d *dirFile) Truncate(size int64) error {
	return unsupported("truncate", d.name)
}
