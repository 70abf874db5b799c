package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"
)

// configTemplate is the commented sample configuration written by init.
var configTemplate = template.Must(template.New("config").Parse(`# DittoFTP Configuration File
#
# Every option can be overridden with an environment variable:
#   DITTOFTP_<SECTION>_<KEY>, e.g. DITTOFTP_LOGGING_LEVEL=DEBUG

logging:
  # DEBUG, INFO, WARN or ERROR
  level: {{ .Logging.Level }}
  # text or json
  format: {{ .Logging.Format }}
  # stdout, stderr or a file path
  output: {{ .Logging.Output }}

server:
  shutdown_timeout: {{ .Server.ShutdownTimeout }}

metrics:
  enabled: {{ .Metrics.Enabled }}
  port: {{ .Metrics.Port }}

auth:
  # Restrict logins to these FTP usernames. Leave commented out to let the
  # storage service decide; an empty list ([]) rejects everyone.
  # allowed_users: [alice]

  # FTP username -> storage access key ID (unmapped names pass through)
  username_map: {}
  # FTP password -> storage secret key (unmapped passwords pass through)
  password_map: {}

  # Login attempts per second per client host (0 disables throttling)
  rate_limit:
    requests_per_second: {{ .Auth.RateLimit.RequestsPerSecond }}
    burst: {{ .Auth.RateLimit.Burst }}

storage:
  # s3, memory or badger
  type: {{ .Storage.Type }}

  s3:
    region: {{ index .Storage.S3 "region" }}
    # Custom endpoint for S3-compatible services (MinIO, LocalStack, ...)
    endpoint: ""
    force_path_style: false
    max_retries: {{ index .Storage.S3 "max_retries" }}

  # Development backends: accounts map access key IDs to secret keys.
  memory:
    accounts:
      test: test

  badger:
    path: {{ index .Storage.Badger "path" }}
    accounts:
      test: test

filesystem:
  # Listings stop after this many entries (-1 disables the limit)
  max_listing_entries: {{ .Filesystem.MaxListingEntries }}
  # Directory for upload buffers (empty uses the OS temporary directory)
  staging_dir: ""
  delimiter: "{{ .Filesystem.Delimiter }}"
  path_separator: "{{ .Filesystem.PathSeparator }}"

adapters:
  ftp:
    enabled: {{ .Adapters.FTP.Enabled }}
    listen_addr: "{{ .Adapters.FTP.ListenAddr }}"
    # Address announced for passive transfers (empty uses the local address)
    public_host: ""
    idle_timeout: {{ .Adapters.FTP.IdleTimeout }}
    connection_timeout: {{ .Adapters.FTP.ConnectionTimeout }}
    shutdown_timeout: {{ .Adapters.FTP.ShutdownTimeout }}
    banner: "{{ .Adapters.FTP.Banner }}"
`))

// ErrConfigExists is returned by init when the target file exists and
// force is not set.
var ErrConfigExists = errors.New("config file already exists")

// GenerateConfig renders the sample configuration with default values.
func GenerateConfig() ([]byte, error) {
	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, GetDefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to render config template: %w", err)
	}
	return buf.Bytes(), nil
}

// InitConfig writes the sample configuration to the default location and
// returns its path.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the sample configuration to path, creating parent
// directories. An existing file is only replaced when force is set.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w at %s (use --force to overwrite)", ErrConfigExists, path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to check config file: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := GenerateConfig()
	if err != nil {
		return err
	}

	// The file may end up holding credential maps.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
