package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/dittoftp/internal/logger"
	"github.com/marmos91/dittoftp/pkg/storage"
	storagebadger "github.com/marmos91/dittoftp/pkg/storage/badger"
	storagememory "github.com/marmos91/dittoftp/pkg/storage/memory"
	storages3 "github.com/marmos91/dittoftp/pkg/storage/s3"
)

// CreateStorageService creates the storage backend selected by cfg.Type.
//
// This factory decodes the type-specific section with mapstructure and passes
// it to the backend's constructor.
//
// Supported types:
//   - "s3": Amazon S3 or a compatible service (pkg/storage/s3)
//   - "memory": in-process accounts and objects (pkg/storage/memory)
//   - "badger": accounts and objects persisted in BadgerDB (pkg/storage/badger)
//
// The badger service holds an open database; callers close it through
// io.Closer when done.
func CreateStorageService(ctx context.Context, cfg *StorageConfig) (storage.Service, error) {
	switch cfg.Type {
	case "s3":
		return createS3Service(cfg.S3)
	case "memory":
		return createMemoryService(cfg.Memory)
	case "badger":
		return createBadgerService(cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

// createS3Service creates an S3-backed storage service.
func createS3Service(options map[string]any) (storage.Service, error) {
	var s3Cfg storages3.Config
	if err := mapstructure.Decode(options, &s3Cfg); err != nil {
		return nil, fmt.Errorf("invalid s3 config: %w", err)
	}

	svc, err := storages3.New(s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 storage: %w", err)
	}

	logger.Info("Storage backend configured",
		logger.KeyBackend, svc.Name(),
		"region", s3Cfg.Region,
		"endpoint", s3Cfg.Endpoint)
	return svc, nil
}

// createMemoryService creates an in-memory storage service.
func createMemoryService(options map[string]any) (storage.Service, error) {
	var memCfg storagememory.Config
	if err := mapstructure.Decode(options, &memCfg); err != nil {
		return nil, fmt.Errorf("invalid memory config: %w", err)
	}

	svc := storagememory.New(memCfg)
	logger.Info("Storage backend configured",
		logger.KeyBackend, svc.Name(),
		logger.KeyCount, len(memCfg.Accounts))
	return svc, nil
}

// createBadgerService opens a BadgerDB-backed storage service.
func createBadgerService(options map[string]any) (storage.Service, error) {
	var badgerCfg storagebadger.Config
	if err := mapstructure.Decode(options, &badgerCfg); err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}

	svc, err := storagebadger.Open(badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger storage: %w", err)
	}

	logger.Info("Storage backend configured",
		logger.KeyBackend, svc.Name(),
		logger.KeyPath, badgerCfg.Path)
	return svc, nil
}
