package vfs

import "strings"

// Address is a parsed protocol path. Any component may be empty; a non-empty
// Key always comes with a non-empty Container.
type Address struct {
	Principal string
	Container string
	Key       string
}

// IsRoot reports whether the address names the principal's root, where
// containers appear as directories.
func (a Address) IsRoot() bool {
	return a.Container == "" && a.Key == ""
}

// IsContainer reports whether the address names a container.
func (a Address) IsContainer() bool {
	return a.Container != "" && a.Key == ""
}

// IsKey reports whether the address names a key.
func (a Address) IsKey() bool {
	return a.Key != ""
}

func (a Address) String() string {
	return a.Principal + "/" + a.Container + "/" + a.Key
}

// ParsePath splits p into principal, container and key.
//
// p must start with sep. The first component is the principal, the second
// the container, and every remaining component is joined with delim to form
// the key, so "/alice/bucket1/dir/file.txt" yields
// {"alice", "bucket1", "dir/file.txt"}. A trailing separator after the key
// keeps a trailing delimiter on the key ("/a/b/dir/" yields key "dir/").
func ParsePath(p, sep, delim string) (Address, error) {
	if sep == "" || !strings.HasPrefix(p, sep) {
		return Address{}, NewError(KindInvalidPath, "parse", p, "path must be absolute")
	}

	parts := strings.SplitN(p[len(sep):], sep, 3)

	var addr Address
	addr.Principal = parts[0]
	if len(parts) > 1 {
		addr.Container = parts[1]
	}
	if len(parts) > 2 {
		addr.Key = parts[2]
		if delim != sep {
			addr.Key = strings.ReplaceAll(addr.Key, sep, delim)
		}
	}

	// "/alice//key" would otherwise produce a key without a container.
	if addr.Container == "" && addr.Key != "" {
		return Address{}, NewError(KindInvalidPath, "parse", p, "key without container")
	}
	return addr, nil
}
