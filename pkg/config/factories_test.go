package config

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/marmos91/dittoftp/pkg/vfs"
)

func TestCreateStorageService_Memory(t *testing.T) {
	cfg := &StorageConfig{
		Type:   "memory",
		Memory: map[string]any{"accounts": map[string]string{"AKIAALICE": "secret"}},
	}

	svc, err := CreateStorageService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create memory storage: %v", err)
	}
	if svc.Name() != "memory" {
		t.Errorf("Expected memory backend, got %q", svc.Name())
	}
}

func TestCreateStorageService_Badger(t *testing.T) {
	cfg := &StorageConfig{
		Type: "badger",
		Badger: map[string]any{
			"path":     filepath.Join(t.TempDir(), "db"),
			"accounts": map[string]string{"AKIAALICE": "secret"},
		},
	}

	svc, err := CreateStorageService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create badger storage: %v", err)
	}

	closer, ok := svc.(io.Closer)
	if !ok {
		t.Fatal("Expected badger storage to implement io.Closer")
	}
	defer closer.Close()

	if svc.Name() != "badger" {
		t.Errorf("Expected badger backend, got %q", svc.Name())
	}
}

func TestCreateStorageService_S3(t *testing.T) {
	cfg := &StorageConfig{
		Type: "s3",
		S3: map[string]any{
			"region":           "us-east-1",
			"endpoint":         "http://127.0.0.1:9000",
			"force_path_style": true,
		},
	}

	svc, err := CreateStorageService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create s3 storage: %v", err)
	}
	if svc.Name() != "s3" {
		t.Errorf("Expected s3 backend, got %q", svc.Name())
	}
}

func TestCreateStorageService_UnknownType(t *testing.T) {
	_, err := CreateStorageService(context.Background(), &StorageConfig{Type: "gcs"})
	if err == nil {
		t.Fatal("Expected error for unknown storage type")
	}
}

func TestCreateStorageService_InvalidSection(t *testing.T) {
	cfg := &StorageConfig{
		Type:   "memory",
		Memory: map[string]any{"accounts": "not-a-map"},
	}

	if _, err := CreateStorageService(context.Background(), cfg); err == nil {
		t.Fatal("Expected error for malformed memory section")
	}
}

func TestCreateFilesystemOptions(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Filesystem.StagingDir = "/var/dittoftp/staging"
	cfg.Filesystem.Delimiter = "|"

	staging := afero.NewMemMapFs()
	opts, err := createFilesystemOptions(cfg, staging, nil)
	if err != nil {
		t.Fatalf("Failed to create filesystem options: %v", err)
	}

	if opts.MaxListingEntries != 1000 {
		t.Errorf("Expected listing limit 1000, got %d", opts.MaxListingEntries)
	}
	if opts.Delimiter != "|" || opts.Separator != "/" {
		t.Errorf("Unexpected separators: delimiter=%q separator=%q", opts.Delimiter, opts.Separator)
	}
	if ok, _ := afero.DirExists(staging, "/var/dittoftp/staging"); !ok {
		t.Error("Expected staging directory to be created")
	}
}

func TestCreateFilesystemOptions_Unlimited(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Filesystem.MaxListingEntries = -1

	opts, err := createFilesystemOptions(cfg, afero.NewMemMapFs(), nil)
	if err != nil {
		t.Fatalf("Failed to create filesystem options: %v", err)
	}
	if opts.MaxListingEntries != 0 {
		t.Errorf("Expected unlimited listings (0), got %d", opts.MaxListingEntries)
	}
}

func TestCreateAuthenticator(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Auth.AllowedUsers = []string{"bob", "alice"}
	cfg.Auth.UsernameMap["alice"] = "AKIAALICE"

	svc, err := CreateStorageService(context.Background(), &StorageConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	a := CreateAuthenticator(cfg, svc, nil)
	if got := a.TransformUsername("alice"); got != "AKIAALICE" {
		t.Errorf("Expected mapped username, got %q", got)
	}
	if a.IsAllowed("mallory") {
		t.Error("Expected mallory to be outside the allow-list")
	}
	if got := a.HomeDirectory("alice"); got != "/alice" {
		t.Errorf("Unexpected home directory %q", got)
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	cfg := GetDefaultConfig()

	result := InitializeMetrics(cfg)
	if result.Server != nil {
		t.Error("Expected no metrics server when disabled")
	}
	if result.VFS == nil || result.Auth == nil || result.FTP == nil {
		t.Error("Expected no-op metrics when disabled")
	}
}

func TestCreateAdapters(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.FTP.ListenAddr = "127.0.0.1:0"

	svc, err := CreateStorageService(context.Background(), &StorageConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	a := CreateAuthenticator(cfg, svc, nil)

	adapters, err := CreateAdapters(cfg, a, mustFilesystemOptions(t, cfg), nil)
	if err != nil {
		t.Fatalf("Failed to create adapters: %v", err)
	}
	if len(adapters) != 1 || adapters[0].Protocol() != "FTP" {
		t.Fatalf("Expected a single FTP adapter, got %v", adapters)
	}

	cfg.Adapters.FTP.Enabled = false
	if _, err := CreateAdapters(cfg, a, mustFilesystemOptions(t, cfg), nil); err == nil {
		t.Error("Expected error with no adapters enabled")
	}
}

func TestBuild_MemoryRuntime(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Type = "memory"
	cfg.Adapters.FTP.ListenAddr = "127.0.0.1:0"

	rt, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to build runtime: %v", err)
	}
	defer rt.Close()

	srv, err := rt.NewServer(cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if len(srv.Adapters()) != 1 {
		t.Errorf("Expected 1 registered adapter, got %d", len(srv.Adapters()))
	}
}

func mustFilesystemOptions(t *testing.T, cfg *Config) vfs.Options {
	t.Helper()
	opts, err := createFilesystemOptions(cfg, afero.NewMemMapFs(), nil)
	if err != nil {
		t.Fatalf("Failed to create filesystem options: %v", err)
	}
	return opts
}
