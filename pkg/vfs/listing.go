package vfs

import (
	"fmt"
	"io/fs"
	"strings"
	"time"
)

// Epoch is the modification time reported for directories, whose times are
// not tracked by the storage service.
var Epoch = time.Unix(0, 0).UTC()

const (
	listTimeLayout    = "Jan 02 15:04"
	serviceTimeLayout = "2006-01-02T15:04:05"

	// Permission bits reported for every entry. They describe nothing real:
	// access control belongs to the storage service.
	fileMode = fs.FileMode(0o600)
	dirMode  = fs.ModeDir | fileMode
)

// DirectoryEntry is one entry of a directory listing. Entries are produced
// lazily per listing and never cached.
type DirectoryEntry struct {
	// Name is the entry name relative to the listed directory. Virtual
	// directories keep their trailing delimiter.
	Name         string
	IsDirectory  bool
	Size         uint64
	ModifiedTime time.Time

	delim string
}

// FileInfo adapts the entry to fs.FileInfo. The trailing delimiter of a
// virtual directory is dropped from the name.
func (e DirectoryEntry) FileInfo() fs.FileInfo {
	name := e.Name
	if e.IsDirectory && e.delim != "" {
		name = strings.TrimSuffix(name, e.delim)
	}
	info := &fileInfo{name: name, size: int64(e.Size), mode: fileMode, modTime: e.ModifiedTime}
	if e.IsDirectory {
		info.mode = dirMode
	}
	return info
}

// classify reports whether a listed name is a virtual directory.
func classify(name, delim string) bool {
	return delim != "" && strings.HasSuffix(name, delim)
}

// parseServiceTime parses the storage service's ISO-8601 timestamp.
// Fractional seconds and the zone designator are dropped; anything
// unparsable yields Epoch.
func parseServiceTime(s string) time.Time {
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSuffix(s, "Z")

	t, err := time.Parse(serviceTimeLayout, s)
	if err != nil {
		return Epoch
	}
	return t
}

// formatListTime renders t in the fixed-width LIST format.
func formatListTime(t time.Time) string {
	return t.UTC().Format(listTimeLayout)
}

// formatEntryLine renders a key or virtual directory as a LIST line.
func formatEntryLine(owner string, e DirectoryEntry) string {
	flag := "-"
	if e.IsDirectory {
		flag = "d"
	}
	return fmt.Sprintf("%srw------   1 %s   group  %8d %s %s\r\n",
		flag, owner, e.Size, formatListTime(e.ModifiedTime), e.Name)
}

// formatContainerLine renders a container as a LIST line.
func formatContainerLine(owner, name string) string {
	return fmt.Sprintf("drwx------   1 %s   group  %8d Jan 01 00:00 %s\r\n", owner, 0, name)
}

// ============================================================================
// Lazy listing
// ============================================================================

// entryIterator pulls entries from a source and enforces the entry limit.
type entryIterator struct {
	pull  func() (DirectoryEntry, bool)
	fail  func() error
	limit int

	// onTruncate runs once when the limit cuts the listing short.
	onTruncate func(limit int)

	count int
	cur   DirectoryEntry
	done  bool
	err   error
}

func (it *entryIterator) next() bool {
	if it.done {
		return false
	}

	e, ok := it.pull()
	if !ok {
		it.done = true
		if it.fail != nil {
			it.err = it.fail()
		}
		return false
	}

	if it.limit > 0 && it.count >= it.limit {
		it.done = true
		if it.onTruncate != nil {
			it.onTruncate(it.limit)
		}
		return false
	}

	it.count++
	it.cur = e
	return true
}

func (it *entryIterator) close() {
	it.done = true
}

// Listing is a lazy, one-shot, forward-only sequence of LIST lines.
//
//	listing, err := fsys.ListFormatted(ctx, "/alice/photos")
//	defer listing.Close()
//	for listing.Next() {
//	    io.WriteString(w, listing.Line())
//	}
//	if err := listing.Err(); err != nil { ... }
type Listing struct {
	it     *entryIterator
	render func(DirectoryEntry) string
	line   string
}

// Next advances to the next line.
func (l *Listing) Next() bool {
	if !l.it.next() {
		l.line = ""
		return false
	}
	l.line = l.render(l.it.cur)
	return true
}

// Line returns the current line, CRLF-terminated.
func (l *Listing) Line() string { return l.line }

// Err returns the error that ended the listing early, if any.
func (l *Listing) Err() error { return l.it.err }

// Close abandons the listing. Further calls to Next return false.
func (l *Listing) Close() { l.it.close() }
