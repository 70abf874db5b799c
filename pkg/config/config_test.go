package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "info"

storage:
  type: "memory"
  memory:
    accounts:
      test: test
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Adapters.FTP.Enabled {
		t.Error("Expected FTP adapter to be enabled by default")
	}
	if cfg.Adapters.FTP.ListenAddr != "0.0.0.0:2121" {
		t.Errorf("Expected default listen address, got %q", cfg.Adapters.FTP.ListenAddr)
	}
	if cfg.Filesystem.MaxListingEntries != 1000 {
		t.Errorf("Expected default listing limit 1000, got %d", cfg.Filesystem.MaxListingEntries)
	}
	if cfg.Auth.AllowedUsers != nil {
		t.Errorf("Expected nil allow-list when omitted, got %v", cfg.Auth.AllowedUsers)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Storage.Type != "s3" {
		t.Errorf("Expected default storage type 's3', got %q", cfg.Storage.Type)
	}
	if !cfg.Adapters.FTP.Enabled {
		t.Error("Expected FTP adapter to be enabled without a config file")
	}
	if cfg.Adapters.FTP.ListenAddr != "0.0.0.0:2121" {
		t.Errorf("Expected default listen address, got %q", cfg.Adapters.FTP.ListenAddr)
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "dittoftp init") {
		t.Errorf("Expected hint to run init, got: %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "logging: [unclosed")

	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
storage:
  type: "gcs"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected validation error for unknown storage type")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("Expected validation error, got: %v", err)
	}
}

func TestLoad_EmptyAllowListRejectsEveryone(t *testing.T) {
	path := writeConfig(t, `
auth:
  allowed_users: []
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Auth.AllowedUsers == nil {
		t.Fatal("Expected explicit empty allow-list to stay non-nil")
	}
	if len(cfg.Auth.AllowedUsers) != 0 {
		t.Errorf("Expected empty allow-list, got %v", cfg.Auth.AllowedUsers)
	}
}

func TestLoad_AuthSection(t *testing.T) {
	path := writeConfig(t, `
auth:
  allowed_users: [Alice, bob]
  username_map:
    Alice: AKIAALICE
  password_map:
    hunter2: RealSecret
  rate_limit:
    requests_per_second: 5
    burst: 10
storage:
  type: memory
  memory:
    accounts:
      AKIAALICE: RealSecret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if len(cfg.Auth.AllowedUsers) != 2 || cfg.Auth.AllowedUsers[0] != "Alice" {
		t.Errorf("Unexpected allow-list: %v", cfg.Auth.AllowedUsers)
	}
	if got := cfg.Auth.UsernameMap["Alice"]; got != "AKIAALICE" {
		t.Errorf("Expected case-preserved username map entry, got %q (map %v)", got, cfg.Auth.UsernameMap)
	}
	if got := cfg.Auth.PasswordMap["hunter2"]; got != "RealSecret" {
		t.Errorf("Expected password map entry, got %q", got)
	}
	if cfg.Auth.RateLimit.RequestsPerSecond != 5 || cfg.Auth.RateLimit.Burst != 10 {
		t.Errorf("Unexpected rate limit: %+v", cfg.Auth.RateLimit)
	}

	accounts, ok := cfg.Storage.Memory["accounts"].(map[string]string)
	if !ok {
		t.Fatalf("Expected case-preserved accounts map, got %T", cfg.Storage.Memory["accounts"])
	}
	if accounts["AKIAALICE"] != "RealSecret" {
		t.Errorf("Expected AKIAALICE account, got %v", accounts)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: INFO
adapters:
  ftp:
    listen_addr: "127.0.0.1:2121"
`)
	t.Setenv("DITTOFTP_LOGGING_LEVEL", "debug")
	t.Setenv("DITTOFTP_ADAPTERS_FTP_LISTEN_ADDR", "127.0.0.1:2424")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected env override level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Adapters.FTP.ListenAddr != "127.0.0.1:2424" {
		t.Errorf("Expected env override listen address, got %q", cfg.Adapters.FTP.ListenAddr)
	}
	if !cfg.Adapters.FTP.Enabled {
		t.Error("Expected FTP adapter to stay enabled when only listen_addr is set")
	}
}

func TestLoad_FTPDisabledExplicitly(t *testing.T) {
	path := writeConfig(t, `
adapters:
  ftp:
    enabled: false
    listen_addr: "127.0.0.1:2121"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Expected error when every adapter is disabled")
	}
}

func TestLoad_FTPDisabledWithoutListenAddr(t *testing.T) {
	path := writeConfig(t, `
adapters:
  ftp:
    enabled: false
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Expected explicit enabled: false to be honored")
	}
}

func TestLoad_FTPDisabledViaEnvironment(t *testing.T) {
	path := writeConfig(t, `
adapters:
  ftp:
    listen_addr: "127.0.0.1:2121"
`)
	t.Setenv("DITTOFTP_ADAPTERS_FTP_ENABLED", "false")

	if _, err := Load(path); err == nil {
		t.Fatal("Expected DITTOFTP_ADAPTERS_FTP_ENABLED=false to disable the adapter")
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if got := GetConfigDir(); got != filepath.Join(dir, "dittoftp") {
		t.Errorf("Expected XDG config dir, got %q", got)
	}
	if got := GetDefaultConfigPath(); got != filepath.Join(dir, "dittoftp", "config.yaml") {
		t.Errorf("Unexpected default config path %q", got)
	}
	if DefaultConfigExists() {
		t.Error("Expected no config in a fresh directory")
	}
}
