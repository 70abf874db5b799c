package config

import (
	"fmt"

	"github.com/marmos91/dittoftp/pkg/adapter"
	"github.com/marmos91/dittoftp/pkg/adapter/ftp"
	"github.com/marmos91/dittoftp/pkg/auth"
	"github.com/marmos91/dittoftp/pkg/metrics"
	"github.com/marmos91/dittoftp/pkg/vfs"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// Parameters:
//   - cfg: The complete configuration
//   - authenticator: Shared login authenticator
//   - fsOpts: Options for every session's virtual filesystem
//   - ftpMetrics: Optional FTP metrics collector (nil = no metrics)
//
// Returns:
//   - []adapter.Adapter: List of enabled adapters ready to be added to the server
//   - error: Any error during adapter creation
func CreateAdapters(cfg *Config, authenticator *auth.Authenticator, fsOpts vfs.Options, ftpMetrics metrics.FTPMetrics) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.FTP.Enabled {
		ftpAdapter, err := ftp.New(cfg.Adapters.FTP, authenticator, fsOpts, ftpMetrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create FTP adapter: %w", err)
		}
		adapters = append(adapters, ftpAdapter)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}
