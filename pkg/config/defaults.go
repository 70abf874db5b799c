package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittoftp/pkg/adapter/ftp"
	"github.com/marmos91/dittoftp/pkg/storage/s3"
	"github.com/marmos91/dittoftp/pkg/vfs"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific defaults are filled into every backend section so a
//     generated config file documents them all
//   - auth.allowed_users is left alone: nil and empty mean different things
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMetricsDefaults(&cfg.Metrics)
	applyAuthDefaults(&cfg.Auth)
	applyStorageDefaults(&cfg.Storage)
	applyFilesystemDefaults(&cfg.Filesystem)
	applyAdaptersDefaults(&cfg.Adapters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyMetricsDefaults sets metrics defaults. Metrics stay disabled unless
// explicitly enabled.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyAuthDefaults initializes the credential maps.
func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.UsernameMap == nil {
		cfg.UsernameMap = make(map[string]string)
	}
	if cfg.PasswordMap == nil {
		cfg.PasswordMap = make(map[string]string)
	}
}

// applyStorageDefaults sets storage backend defaults.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Type == "" {
		cfg.Type = "s3"
	}

	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	if _, ok := cfg.S3["region"]; !ok {
		cfg.S3["region"] = "us-east-1"
	}
	if _, ok := cfg.S3["max_retries"]; !ok {
		cfg.S3["max_retries"] = s3.DefaultMaxRetries
	}
	if _, ok := cfg.Badger["path"]; !ok {
		cfg.Badger["path"] = "/tmp/dittoftp-badger"
	}
}

// applyFilesystemDefaults sets virtual filesystem defaults.
func applyFilesystemDefaults(cfg *FilesystemConfig) {
	if cfg.MaxListingEntries == 0 {
		cfg.MaxListingEntries = vfs.DefaultMaxListingEntries
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = "/"
	}
	if cfg.PathSeparator == "" {
		cfg.PathSeparator = "/"
	}
}

// applyAdaptersDefaults sets adapter defaults. Whether FTP is enabled is
// decided by Load (or GetDefaultConfig), since a zero Enabled cannot tell
// "unset" from "false".
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	applyFTPDefaults(&cfg.FTP)
}

// applyFTPDefaults sets FTP adapter defaults.
func applyFTPDefaults(cfg *ftp.FTPConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ftp.DefaultListenAddr
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = ftp.DefaultIdleTimeout
	}
	if cfg.ConnectionTimeout == 0 {
		cfg.ConnectionTimeout = ftp.DefaultConnectionTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = ftp.DefaultShutdownTimeout
	}
	if cfg.Banner == "" {
		cfg.Banner = ftp.DefaultBanner
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		Adapters: AdaptersConfig{
			FTP: ftp.FTPConfig{Enabled: true},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
