package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/marmos91/dittoftp/pkg/adapter/ftp"
)

// EnvPrefix prefixes every environment override (DITTOFTP_LOGGING_LEVEL, ...).
const EnvPrefix = "DITTOFTP"

// Config represents the complete DittoFTP configuration.
//
// This structure captures all configurable aspects of the server including:
//   - Logging configuration
//   - Server-wide settings and the metrics endpoint
//   - Login policy (allow-list, credential maps, throttling)
//   - Storage backend selection and configuration (backend-specific)
//   - Virtual filesystem tuning
//   - Protocol adapter configurations
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTOFTP_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Storage Configuration Pattern:
// Each backend defines its own configuration type. The Config struct holds
// type-specific sections (storage.s3, storage.memory, storage.badger) and only
// the section matching storage.type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Auth configures how logins become storage credentials
	Auth AuthConfig `mapstructure:"auth"`

	// Storage selects and configures the object storage backend
	Storage StorageConfig `mapstructure:"storage"`

	// Filesystem tunes the virtual filesystem
	Filesystem FilesystemConfig `mapstructure:"filesystem"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled turns on metric collection and the HTTP endpoint
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port of the /metrics endpoint
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// AuthConfig configures the authenticator.
type AuthConfig struct {
	// AllowedUsers restricts logins to the listed usernames.
	// Omitted (nil) disables the allow-list; an explicit empty list rejects everyone.
	AllowedUsers []string `mapstructure:"allowed_users"`

	// UsernameMap maps FTP usernames to storage access key IDs
	UsernameMap map[string]string `mapstructure:"username_map"`

	// PasswordMap maps FTP passwords to storage secret keys
	PasswordMap map[string]string `mapstructure:"password_map"`

	// RateLimit throttles login attempts per client host
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig configures login throttling. Zero disables it.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained login rate per client host
	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	// Burst is the number of logins allowed at once (0 = RequestsPerSecond)
	Burst uint `mapstructure:"burst"`
}

// StorageConfig specifies the storage backend.
//
// The Type field determines which backend is used. Only the corresponding
// type-specific section is decoded.
type StorageConfig struct {
	// Type specifies which backend implementation to use
	// Valid values: s3, memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=s3 memory badger"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// FilesystemConfig tunes the virtual filesystem.
type FilesystemConfig struct {
	// MaxListingEntries truncates directory listings.
	// 0 uses the default of 1000; -1 disables the limit.
	MaxListingEntries int `mapstructure:"max_listing_entries" validate:"min=-1"`

	// StagingDir holds upload buffers. Empty uses the OS temporary directory.
	StagingDir string `mapstructure:"staging_dir"`

	// Delimiter is the storage key delimiter that emulates directories
	Delimiter string `mapstructure:"delimiter" validate:"required"`

	// PathSeparator is the FTP path separator
	PathSeparator string `mapstructure:"path_separator" validate:"required"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// FTP contains FTP protocol configuration.
	// Uses the ftp.FTPConfig type directly to avoid duplication.
	FTP ftp.FTPConfig `mapstructure:"ftp"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTOFTP_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	fileRead, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// An explicit empty allow-list must stay distinct from an absent one.
	if v.IsSet("auth.allowed_users") && cfg.Auth.AllowedUsers == nil {
		cfg.Auth.AllowedUsers = []string{}
	}

	// Viper folds map keys to lower case; access keys and usernames are
	// case-sensitive, so those maps are re-read verbatim.
	if fileRead {
		if err := restoreCaseSensitiveMaps(v.ConfigFileUsed(), &cfg); err != nil {
			return nil, err
		}
	}

	// FTP is the only adapter: it runs unless enabled: false is set
	// explicitly (in the file or via DITTOFTP_ADAPTERS_FTP_ENABLED).
	if v.IsSet("adapters.ftp.enabled") {
		cfg.Adapters.FTP.Enabled = v.GetBool("adapters.ftp.enabled")
	} else {
		cfg.Adapters.FTP.Enabled = true
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad is Load with a friendly error when no configuration file exists
// at the requested (or default) location.
func MustLoad(configPath string) (*Config, error) {
	path := configPath
	if path == "" {
		path = GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no configuration file found at %s; create one with: dittoftp init --config %s", path, path)
	}

	return Load(configPath)
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTOFTP_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/dittoftp/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists and reports
// whether one was read. A missing file is not an error: defaults and
// environment variables apply.
func readConfigFile(v *viper.Viper) (bool, error) {
	if path := v.ConfigFileUsed(); path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittoftp")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittoftp")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
