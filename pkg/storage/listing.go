package storage

import (
	"strings"
	"time"
)

// TimestampLayout is the service-side representation of object timestamps in
// listings: ISO-8601, millisecond precision, UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t the way listings report LastModified.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

// ObjectSource yields a container's objects in ascending key order. ok is
// false once the source is exhausted.
type ObjectSource func() (obj Object, ok bool, err error)

// NewGroupingIterator returns a KeyIterator that pulls from next only as far
// as the caller reads.
//
// Only objects whose key starts with opts.Prefix are reported. With a
// delimiter, every key containing the delimiter after the prefix is replaced
// by a single prefix entry (prefix + segment + delimiter). Keys sharing such a
// prefix are contiguous in key order, so each prefix is reported once and the
// entries come out sorted by name.
func NewGroupingIterator(next ObjectSource, opts ListOptions) KeyIterator {
	return &groupingIterator{next: next, opts: opts}
}

type groupingIterator struct {
	next       ObjectSource
	opts       ListOptions
	cur        ListEntry
	lastPrefix string
	err        error
	done       bool
}

func (it *groupingIterator) Next() bool {
	for !it.done {
		obj, ok, err := it.next()
		if err != nil {
			it.err = err
		}
		if err != nil || !ok {
			it.done = true
			break
		}

		if !strings.HasPrefix(obj.Key, it.opts.Prefix) {
			continue
		}

		if it.opts.Delimiter != "" {
			rest := obj.Key[len(it.opts.Prefix):]
			if idx := strings.Index(rest, it.opts.Delimiter); idx >= 0 {
				name := it.opts.Prefix + rest[:idx+len(it.opts.Delimiter)]
				if name == it.lastPrefix {
					continue
				}
				it.lastPrefix = name
				it.cur = ListEntry{Name: name, IsPrefix: true}
				return true
			}
		}

		it.cur = ListEntry{
			Name:         obj.Key,
			Size:         obj.Size,
			LastModified: FormatTimestamp(obj.LastModified),
		}
		return true
	}

	it.cur = ListEntry{}
	return false
}

func (it *groupingIterator) Entry() ListEntry { return it.cur }

func (it *groupingIterator) Err() error { return it.err }
