package config

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/marmos91/dittoftp/pkg/auth"
	"github.com/marmos91/dittoftp/pkg/metrics"
	"github.com/marmos91/dittoftp/pkg/storage"
	"github.com/marmos91/dittoftp/pkg/vfs"
)

// CreateAuthenticator builds the login authenticator over service.
func CreateAuthenticator(cfg *Config, service storage.Service, authMetrics metrics.AuthMetrics) *auth.Authenticator {
	return auth.New(service, auth.Config{
		AllowedUsers: cfg.Auth.AllowedUsers,
		UsernameMap:  cfg.Auth.UsernameMap,
		PasswordMap:  cfg.Auth.PasswordMap,
		RateLimit: auth.RateLimitConfig{
			RequestsPerSecond: cfg.Auth.RateLimit.RequestsPerSecond,
			Burst:             cfg.Auth.RateLimit.Burst,
		},
		PathSeparator: cfg.Filesystem.PathSeparator,
	}, authMetrics)
}

// CreateFilesystemOptions builds the options shared by every session's
// virtual filesystem. Staging files live on the OS filesystem; the staging
// directory is created if configured and missing.
func CreateFilesystemOptions(cfg *Config, vfsMetrics metrics.VFSMetrics) (vfs.Options, error) {
	return createFilesystemOptions(cfg, afero.NewOsFs(), vfsMetrics)
}

func createFilesystemOptions(cfg *Config, staging afero.Fs, vfsMetrics metrics.VFSMetrics) (vfs.Options, error) {
	limit := cfg.Filesystem.MaxListingEntries
	if limit < 0 {
		limit = 0
	}

	if dir := cfg.Filesystem.StagingDir; dir != "" {
		if err := staging.MkdirAll(dir, 0o700); err != nil {
			return vfs.Options{}, fmt.Errorf("failed to create staging directory %s: %w", dir, err)
		}
	}

	return vfs.Options{
		Separator:         cfg.Filesystem.PathSeparator,
		Delimiter:         cfg.Filesystem.Delimiter,
		MaxListingEntries: limit,
		Staging:           staging,
		StagingDir:        cfg.Filesystem.StagingDir,
		Metrics:           vfsMetrics,
	}, nil
}
