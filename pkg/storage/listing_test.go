package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource serves objects in order and records how many were pulled.
type countingSource struct {
	objects []Object
	pulled  int
	err     error
}

func (s *countingSource) next() (Object, bool, error) {
	if s.pulled >= len(s.objects) {
		return Object{}, false, s.err
	}
	obj := s.objects[s.pulled]
	s.pulled++
	return obj, true, nil
}

func drain(t *testing.T, it KeyIterator) []ListEntry {
	t.Helper()
	entries := []ListEntry{}
	for it.Next() {
		entries = append(entries, it.Entry())
	}
	return entries
}

func names(entries []ListEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestGroupingIterator(t *testing.T) {
	mtime := time.Date(2024, 3, 9, 14, 5, 6, 789_000_000, time.UTC)
	objects := []Object{
		{Key: "a.txt", Size: 3},
		{Key: "b.txt", Size: 2, LastModified: mtime},
		{Key: "docs/a.txt", Size: 1},
		{Key: "docs/b.txt", Size: 1},
		{Key: "docs/deep/c.txt", Size: 1},
		{Key: "docs2.txt", Size: 1},
	}

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"NoDelimiter", ListOptions{}, []string{"a.txt", "b.txt", "docs/a.txt", "docs/b.txt", "docs/deep/c.txt", "docs2.txt"}},
		{"RootWithDelimiter", ListOptions{Delimiter: "/"}, []string{"a.txt", "b.txt", "docs/", "docs2.txt"}},
		{"PrefixWithDelimiter", ListOptions{Prefix: "docs/", Delimiter: "/"}, []string{"docs/a.txt", "docs/b.txt", "docs/deep/"}},
		{"PrefixWithoutMatches", ListOptions{Prefix: "nope/", Delimiter: "/"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &countingSource{objects: objects}
			assert.Equal(t, tt.want, names(drain(t, NewGroupingIterator(src.next, tt.opts))))
		})
	}

	t.Run("EntriesCarryMetadata", func(t *testing.T) {
		src := &countingSource{objects: objects}
		entries := drain(t, NewGroupingIterator(src.next, ListOptions{Delimiter: "/"}))
		require.Len(t, entries, 4)
		assert.Equal(t, int64(2), entries[1].Size)
		assert.Equal(t, "2024-03-09T14:05:06.789Z", entries[1].LastModified)
		assert.True(t, entries[2].IsPrefix)
		assert.Empty(t, entries[2].LastModified)
	})
}

func TestGroupingIterator_PullsOnlyWhatIsRead(t *testing.T) {
	objects := make([]Object, 10000)
	for i := range objects {
		objects[i] = Object{Key: fmt.Sprintf("k%05d", i)}
	}
	src := &countingSource{objects: objects}

	it := NewGroupingIterator(src.next, ListOptions{Delimiter: "/"})
	for i := 0; i < 3; i++ {
		require.True(t, it.Next())
	}

	assert.Equal(t, "k00002", it.Entry().Name)
	assert.Equal(t, 3, src.pulled)
}

func TestGroupingIterator_Exhausted(t *testing.T) {
	src := &countingSource{objects: []Object{{Key: "a"}, {Key: "b"}}}
	it := NewGroupingIterator(src.next, ListOptions{})

	assert.Equal(t, []string{"a", "b"}, names(drain(t, it)))
	assert.False(t, it.Next())
	assert.Equal(t, ListEntry{}, it.Entry())
	assert.NoError(t, it.Err())
}

func TestGroupingIterator_SourceError(t *testing.T) {
	boom := errors.New("backend unavailable")
	src := &countingSource{objects: []Object{{Key: "a"}}, err: boom}
	it := NewGroupingIterator(src.next, ListOptions{})

	require.True(t, it.Next())
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), boom)
}

func TestFormatTimestampZero(t *testing.T) {
	assert.Empty(t, FormatTimestamp(time.Time{}))
}
