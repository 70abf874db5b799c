package vfs

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/marmos91/dittoftp/internal/logger"
	"github.com/marmos91/dittoftp/pkg/metrics"
	"github.com/marmos91/dittoftp/pkg/storage"
)

// FileSystem is the full verb set a protocol engine needs from the virtual
// filesystem. Operations that reach the storage service take a context;
// the pure path predicates do not.
type FileSystem interface {
	Open(ctx context.Context, p string, mode OpenMode) (*File, error)
	ChangeDirectory(ctx context.Context, p string) error
	CurrentDirectory() string
	MakeDirectory(ctx context.Context, p string) error
	RemoveDirectory(ctx context.Context, p string) error
	Remove(ctx context.Context, p string) error
	Rename(ctx context.Context, src, dst string) error

	ListDirectory(ctx context.Context, p string) ([]string, error)
	ListFormatted(ctx context.Context, p string) (*Listing, error)
	ReadDirectory(ctx context.Context, p string) ([]DirectoryEntry, error)

	Stat(ctx context.Context, p string) (fs.FileInfo, error)
	Lstat(ctx context.Context, p string) (fs.FileInfo, error)
	StatDirectory(ctx context.Context, p string) error
	GetSize(ctx context.Context, p string) (int64, error)
	GetModTime(ctx context.Context, p string) (time.Time, error)

	IsDirectory(p string) bool
	IsFile(p string) bool
	IsLink(p string) bool
	Exists(ctx context.Context, p string) (bool, error)
	Lexists(ctx context.Context, p string) (bool, error)
	RealPath(p string) string
	ValidPath(p string) bool
}

// Operation names used in errors, logs and metrics.
const (
	opOpen    = "open"
	opChdir   = "chdir"
	opMkdir   = "mkdir"
	opRmdir   = "rmdir"
	opRemove  = "remove"
	opRename  = "rename"
	opList    = "list"
	opStat    = "stat"
	opExists  = "exists"
	opStatDir = "statdir"
	opWrite   = "write"
	opRead    = "read"
	opSeek    = "seek"
	opClose   = "close"
)

// FS implements FileSystem for one session.
//
// Thread Safety:
// An FS is driven by a single connection and is not safe for concurrent use.
type FS struct {
	session *Session

	sep        string
	delim      string
	maxEntries int
	staging    afero.Fs
	stagingDir string
	metrics    metrics.VFSMetrics
}

// New creates the filesystem view of session.
func New(session *Session, opts Options) *FS {
	opts.applyDefaults()
	return &FS{
		session:    session,
		sep:        opts.Separator,
		delim:      opts.Delimiter,
		maxEntries: opts.MaxListingEntries,
		staging:    opts.Staging,
		stagingDir: opts.StagingDir,
		metrics:    opts.Metrics,
	}
}

// Session returns the session this filesystem serves.
func (f *FS) Session() *Session { return f.session }

func (f *FS) client() storage.Client { return f.session.Client }

func (f *FS) parse(op, p string) (Address, error) {
	addr, err := ParsePath(p, f.sep, f.delim)
	if err != nil {
		return Address{}, f.fail(KindInvalidPath, op, p, nil, "")
	}
	return addr, nil
}

// fail logs a failure with session context and returns the translated error.
// Routine misses are logged at debug level.
func (f *FS) fail(kind Kind, op, p string, cause error, msg string) *Error {
	args := []any{
		logger.KeyOperation, op,
		logger.KeyPath, p,
		logger.KeySession, f.session.ID,
		logger.KeyPrincipal, f.session.Principal,
		"kind", kind.String(),
	}
	if cause != nil {
		args = append(args, logger.KeyError, cause)
	}

	switch kind {
	case KindNotFound, KindNotADirectory, KindInvalidPath:
		logger.Debug("Filesystem operation failed", args...)
	default:
		logger.Warn("Filesystem operation failed", args...)
	}
	return NewError(kind, op, p, msg)
}

// track reports the outcome of an operation to metrics. Use with defer:
//
//	defer f.track(opStat, time.Now(), &err)
func (f *FS) track(op string, start time.Time, errp *error) {
	kind := ""
	if errp != nil && *errp != nil {
		kind = KindOf(*errp).String()
	}
	f.metrics.RecordOperation(op, time.Since(start), kind)
}

// storageKind classifies a storage error for verbs where a miss is the
// expected failure.
func storageKind(err error) Kind {
	if storage.IsNotFound(err) {
		return KindNotFound
	}
	return KindIO
}

// ============================================================================
// Open
// ============================================================================

// Open opens the key at p for reading or writing.
//
// Only keys can be opened: an address with an empty principal, container or
// key fails with ErrNotPermitted. Writes are buffered in a staging file and
// uploaded on Close.
func (f *FS) Open(ctx context.Context, p string, mode OpenMode) (file *File, err error) {
	defer f.track(opOpen, time.Now(), &err)

	addr, err := f.parse(opOpen, p)
	if err != nil {
		return nil, err
	}
	if addr.Principal == "" || addr.Container == "" || addr.Key == "" {
		return nil, f.fail(KindNotPermitted, opOpen, p, nil, "not a file")
	}

	if _, err := f.client().GetContainer(ctx, addr.Container); err != nil {
		return nil, f.fail(KindNotFound, opOpen, p, err, "")
	}

	if mode == ModeRead {
		return f.openRead(ctx, p, addr)
	}
	return f.openWrite(ctx, p, addr)
}

func (f *FS) openRead(ctx context.Context, p string, addr Address) (*File, error) {
	if _, err := f.client().GetKey(ctx, addr.Container, addr.Key); err != nil {
		return nil, f.fail(KindNotFound, opOpen, p, err, "")
	}

	reader, err := f.client().Read(ctx, addr.Container, addr.Key)
	if err != nil {
		return nil, f.fail(KindNotFound, opOpen, p, err, "")
	}

	return &File{fs: f, ctx: ctx, addr: addr, path: p, mode: ModeRead, reader: reader}, nil
}

func (f *FS) openWrite(ctx context.Context, p string, addr Address) (*File, error) {
	// An absent key is fine: the object is created by the upload on Close.
	_, err := f.client().GetKey(ctx, addr.Container, addr.Key)
	existed := err == nil
	if err != nil && !storage.IsNotFound(err) {
		return nil, f.fail(KindIO, opOpen, p, err, "")
	}

	staging, err := afero.TempFile(f.staging, f.stagingDir, "dittoftp-upload-*")
	if err != nil {
		return nil, f.fail(KindIO, opOpen, p, err, "cannot create staging file")
	}

	logger.Debug("Opened staging file",
		logger.KeyPath, p,
		logger.KeySession, f.session.ID,
		"staging", staging.Name(),
		"replace", existed)

	return &File{
		fs:          f,
		ctx:         ctx,
		addr:        addr,
		path:        p,
		mode:        ModeWrite,
		staging:     staging,
		stagingPath: staging.Name(),
	}, nil
}

// ============================================================================
// Directories
// ============================================================================

// CurrentDirectory returns the session's working directory.
func (f *FS) CurrentDirectory() string {
	if f.session.cwd == "" {
		return f.sep
	}
	return f.session.cwd
}

// ChangeDirectory makes p the working directory. Only the root, the
// principal's directory and existing containers qualify.
func (f *FS) ChangeDirectory(ctx context.Context, p string) (err error) {
	defer f.track(opChdir, time.Now(), &err)

	addr, err := f.parse(opChdir, p)
	if err != nil {
		return err
	}

	switch {
	case addr.Container == "":
		ok, err := f.Exists(ctx, p)
		if err != nil || !ok || !f.IsDirectory(p) {
			return f.fail(KindNotADirectory, opChdir, p, err, "")
		}
	case addr.Key == "":
		if _, err := f.client().GetContainer(ctx, addr.Container); err != nil {
			return f.fail(KindNotADirectory, opChdir, p, err, "")
		}
	default:
		return f.fail(KindNotADirectory, opChdir, p, nil, "")
	}

	f.session.cwd = f.clean(p)
	return nil
}

// clean normalizes p when the separator is the slash.
func (f *FS) clean(p string) string {
	if f.sep != "/" {
		return p
	}
	return path.Clean(p)
}

// MakeDirectory creates the container named by p.
func (f *FS) MakeDirectory(ctx context.Context, p string) (err error) {
	defer f.track(opMkdir, time.Now(), &err)

	addr, err := f.parse(opMkdir, p)
	if err != nil {
		return err
	}
	if addr.Key != "" || addr.Container == "" {
		return f.fail(KindNotPermitted, opMkdir, p, nil, "only containers can be created")
	}

	if err := f.client().CreateContainer(ctx, addr.Container); err != nil {
		return f.fail(KindNotPermitted, opMkdir, p, err, "")
	}

	logger.Info("Container created",
		logger.KeyContainer, addr.Container,
		logger.KeySession, f.session.ID,
		logger.KeyPrincipal, f.session.Principal)
	return nil
}

// RemoveDirectory deletes the empty container named by p.
//
// A path with a key is always refused, whether or not the key exists:
// removing what looks like a nested directory must never fall through to
// deleting the whole container.
func (f *FS) RemoveDirectory(ctx context.Context, p string) (err error) {
	defer f.track(opRmdir, time.Now(), &err)

	addr, err := f.parse(opRmdir, p)
	if err != nil {
		return err
	}
	if addr.Key != "" || addr.Container == "" {
		return f.fail(KindNotPermitted, opRmdir, p, nil, "only containers can be removed")
	}

	if _, err := f.client().GetContainer(ctx, addr.Container); err != nil {
		return f.fail(KindNotFound, opRmdir, p, err, "")
	}

	if err := f.client().DeleteContainer(ctx, addr.Container); err != nil {
		switch {
		case errors.Is(err, storage.ErrContainerNotEmpty):
			return f.fail(KindDirectoryNotEmpty, opRmdir, p, err, "")
		default:
			return f.fail(storageKind(err), opRmdir, p, err, "")
		}
	}

	logger.Info("Container removed",
		logger.KeyContainer, addr.Container,
		logger.KeySession, f.session.ID,
		logger.KeyPrincipal, f.session.Principal)
	return nil
}

// ============================================================================
// Files
// ============================================================================

// Remove deletes the key named by p. Any failure, including a key that is
// already gone, is reported as ErrNotFound.
func (f *FS) Remove(ctx context.Context, p string) (err error) {
	defer f.track(opRemove, time.Now(), &err)

	addr, err := f.parse(opRemove, p)
	if err != nil {
		return err
	}
	if addr.Key == "" {
		return f.fail(KindNotPermitted, opRemove, p, nil, "not a file")
	}

	if _, err := f.client().GetKey(ctx, addr.Container, addr.Key); err != nil {
		return f.fail(KindNotFound, opRemove, p, err, "")
	}
	if err := f.client().DeleteKey(ctx, addr.Container, addr.Key); err != nil {
		return f.fail(KindNotFound, opRemove, p, err, "")
	}
	return nil
}

// Rename is not supported by object storage.
func (f *FS) Rename(ctx context.Context, src, dst string) (err error) {
	defer f.track(opRename, time.Now(), &err)
	return f.fail(KindNotPermitted, opRename, src, nil, "rename is not supported")
}

// ============================================================================
// Listings
// ============================================================================

// ListDirectory returns the entry names of the directory p.
func (f *FS) ListDirectory(ctx context.Context, p string) (names []string, err error) {
	defer f.track(opList, time.Now(), &err)

	it, _, err := f.entries(ctx, p)
	if err != nil {
		return nil, err
	}

	names = make([]string, 0)
	for it.next() {
		names = append(names, it.cur.Name)
	}
	if it.err != nil {
		return nil, it.err
	}
	return names, nil
}

// ReadDirectory returns the entries of the directory p.
func (f *FS) ReadDirectory(ctx context.Context, p string) (entries []DirectoryEntry, err error) {
	defer f.track(opList, time.Now(), &err)

	it, _, err := f.entries(ctx, p)
	if err != nil {
		return nil, err
	}

	entries = make([]DirectoryEntry, 0)
	for it.next() {
		entries = append(entries, it.cur)
	}
	if it.err != nil {
		return nil, it.err
	}
	return entries, nil
}

// ListFormatted returns the directory p as lazily rendered LIST lines.
func (f *FS) ListFormatted(ctx context.Context, p string) (listing *Listing, err error) {
	defer f.track(opList, time.Now(), &err)

	it, render, err := f.entries(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Listing{it: it, render: render}, nil
}

// entries resolves p and returns an iterator over its entries together with
// the LIST renderer for them.
//
//   - root: every container of the principal
//   - container: keys grouped on the delimiter
//   - container + key: the same, scoped to the prefix key+delimiter, with
//     names relative to that prefix
func (f *FS) entries(ctx context.Context, p string) (*entryIterator, func(DirectoryEntry) string, error) {
	addr, err := f.parse(opList, p)
	if err != nil {
		return nil, nil, err
	}

	owner := f.session.Principal

	if addr.Container == "" {
		containers, err := f.client().ListContainers(ctx)
		if err != nil {
			return nil, nil, f.fail(KindNotFound, opList, p, err, "")
		}

		i := 0
		it := &entryIterator{
			pull: func() (DirectoryEntry, bool) {
				if i >= len(containers) {
					return DirectoryEntry{}, false
				}
				c := containers[i]
				i++
				return DirectoryEntry{Name: c.Name, IsDirectory: true, ModifiedTime: Epoch}, true
			},
			limit:      f.maxEntries,
			onTruncate: f.truncated(p),
		}
		render := func(e DirectoryEntry) string { return formatContainerLine(owner, e.Name) }
		return it, render, nil
	}

	if _, err := f.client().GetContainer(ctx, addr.Container); err != nil {
		return nil, nil, f.fail(KindNotFound, opList, p, err, "")
	}

	prefix := ""
	if addr.Key != "" {
		prefix = addr.Key
		if !strings.HasSuffix(prefix, f.delim) {
			prefix += f.delim
		}
	}

	keys, err := f.client().ListKeys(ctx, addr.Container, storage.ListOptions{Prefix: prefix, Delimiter: f.delim})
	if err != nil {
		return nil, nil, f.fail(KindNotFound, opList, p, err, "")
	}

	it := &entryIterator{
		pull: func() (DirectoryEntry, bool) {
			for keys.Next() {
				e := keys.Entry()
				name := strings.TrimPrefix(e.Name, prefix)
				if name == "" {
					// Directory marker object for the prefix itself.
					continue
				}
				size := e.Size
				if size < 0 {
					size = 0
				}
				return DirectoryEntry{
					Name:         name,
					IsDirectory:  e.IsPrefix || classify(name, f.delim),
					Size:         uint64(size),
					ModifiedTime: parseServiceTime(e.LastModified),
					delim:        f.delim,
				}, true
			}
			return DirectoryEntry{}, false
		},
		fail: func() error {
			if err := keys.Err(); err != nil {
				return f.fail(KindNotFound, opList, p, err, "")
			}
			return nil
		},
		limit:      f.maxEntries,
		onTruncate: f.truncated(p),
	}
	render := func(e DirectoryEntry) string { return formatEntryLine(owner, e) }
	return it, render, nil
}

func (f *FS) truncated(p string) func(limit int) {
	return func(limit int) {
		logger.Warn("Too many entries to list, listing truncated",
			logger.KeyPath, p,
			logger.KeyLimit, limit,
			logger.KeySession, f.session.ID,
			logger.KeyPrincipal, f.session.Principal)
		f.metrics.RecordListingTruncated()
	}
}

// ============================================================================
// Stat
// ============================================================================

// Stat synthesizes file information for p.
//
// Directories (the root, containers and keys ending in the delimiter) report
// directory mode, size 0 and Epoch. Keys report their object size and last
// modification time. If a key misses, the lookup is retried once with the
// delimiter rewritten to the path separator, for clients whose paths were
// normalized with a different separator than the storage delimiter.
func (f *FS) Stat(ctx context.Context, p string) (info fs.FileInfo, err error) {
	defer f.track(opStat, time.Now(), &err)

	addr, err := f.parse(opStat, p)
	if err != nil {
		return nil, err
	}

	if addr.Key == "" {
		return &fileInfo{name: f.baseName(p), mode: dirMode, modTime: Epoch}, nil
	}

	if _, err := f.client().GetContainer(ctx, addr.Container); err != nil {
		return nil, f.fail(KindNotFound, opStat, p, err, "")
	}

	if classify(addr.Key, f.delim) {
		return &fileInfo{name: f.baseName(p), mode: dirMode, modTime: Epoch}, nil
	}

	obj, err := f.client().GetKey(ctx, addr.Container, addr.Key)
	if err != nil && f.delim != f.sep {
		alt := strings.ReplaceAll(addr.Key, f.delim, f.sep)
		obj, err = f.client().GetKey(ctx, addr.Container, alt)
	}
	if err != nil {
		return nil, f.fail(KindNotFound, opStat, p, err, "")
	}

	size := obj.Size
	if size < 0 {
		size = 0
	}
	return &fileInfo{
		name:    f.baseName(p),
		size:    size,
		mode:    fileMode,
		modTime: obj.LastModified,
	}, nil
}

// Lstat is Stat: there are no links.
func (f *FS) Lstat(ctx context.Context, p string) (fs.FileInfo, error) {
	return f.Stat(ctx, p)
}

// StatDirectory is not supported.
func (f *FS) StatDirectory(ctx context.Context, p string) (err error) {
	defer f.track(opStatDir, time.Now(), &err)
	return f.fail(KindUnsupported, opStatDir, p, nil, "")
}

// GetSize returns the size reported by Stat.
func (f *FS) GetSize(ctx context.Context, p string) (int64, error) {
	info, err := f.Stat(ctx, p)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// GetModTime returns the modification time reported by Stat.
func (f *FS) GetModTime(ctx context.Context, p string) (time.Time, error) {
	info, err := f.Stat(ctx, p)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (f *FS) baseName(p string) string {
	trimmed := strings.TrimRight(p, f.sep)
	if trimmed == "" {
		return f.sep
	}
	if idx := strings.LastIndex(trimmed, f.sep); idx >= 0 {
		return trimmed[idx+len(f.sep):]
	}
	return trimmed
}

// ============================================================================
// Predicates
// ============================================================================

// IsDirectory reports whether p names a directory (has no key).
// Invalid paths are neither directories nor files.
func (f *FS) IsDirectory(p string) bool {
	addr, err := ParsePath(p, f.sep, f.delim)
	return err == nil && addr.Key == ""
}

// IsFile reports whether p names a key.
func (f *FS) IsFile(p string) bool {
	addr, err := ParsePath(p, f.sep, f.delim)
	return err == nil && addr.Key != ""
}

// IsLink always reports false.
func (f *FS) IsLink(p string) bool { return false }

// Exists reports whether p resolves. The root always exists; a container
// exists if it can be fetched; a key exists if it resolves to an object.
// Only invalid paths and storage failures other than a miss are errors.
func (f *FS) Exists(ctx context.Context, p string) (ok bool, err error) {
	defer f.track(opExists, time.Now(), &err)

	addr, err := f.parse(opExists, p)
	if err != nil {
		return false, err
	}

	switch {
	case addr.Container == "":
		return true, nil
	case addr.Key == "":
		_, err = f.client().GetContainer(ctx, addr.Container)
	default:
		_, err = f.client().GetKey(ctx, addr.Container, addr.Key)
	}

	if err == nil {
		return true, nil
	}
	if storage.IsNotFound(err) {
		return false, nil
	}
	return false, f.fail(KindIO, opExists, p, err, "")
}

// Lexists is Exists: there are no links.
func (f *FS) Lexists(ctx context.Context, p string) (bool, error) {
	return f.Exists(ctx, p)
}

// RealPath returns p unchanged.
func (f *FS) RealPath(p string) string { return p }

// ValidPath always reports true.
func (f *FS) ValidPath(p string) bool { return true }

var _ FileSystem = (*FS)(nil)
