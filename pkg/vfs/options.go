package vfs

import (
	"github.com/spf13/afero"

	"github.com/marmos91/dittoftp/pkg/metrics"
)

// DefaultMaxListingEntries bounds a single listing. Containers can hold
// arbitrarily many keys and the listing API returns them all.
const DefaultMaxListingEntries = 1000

// Options configures an FS.
type Options struct {
	// Separator is the protocol path separator. Default "/".
	Separator string

	// Delimiter is the storage key delimiter used to emulate directories. Default "/".
	Delimiter string

	// MaxListingEntries truncates listings. 0 disables the limit.
	MaxListingEntries int

	// Staging holds write buffers until upload. Default: the OS filesystem.
	Staging afero.Fs

	// StagingDir is the directory for staging files inside Staging.
	// Empty uses the OS temporary directory.
	StagingDir string

	// Metrics receives per-operation observations. nil disables metrics.
	Metrics metrics.VFSMetrics
}

// DefaultOptions returns options with the default separators, the default
// listing limit and OS-backed staging.
func DefaultOptions() Options {
	opts := Options{MaxListingEntries: DefaultMaxListingEntries}
	opts.applyDefaults()
	return opts
}

func (o *Options) applyDefaults() {
	if o.Separator == "" {
		o.Separator = "/"
	}
	if o.Delimiter == "" {
		o.Delimiter = "/"
	}
	if o.Staging == nil {
		o.Staging = afero.NewOsFs()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewNoopVFSMetrics()
	}
}
