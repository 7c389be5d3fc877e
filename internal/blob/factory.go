package blob

import (
	"context"
	"fmt"
	"os"

	"auditflow/internal/compliance"
	"auditflow/internal/config"
	"auditflow/internal/encryption"
)

// NewStoreFromConfig creates a BlobStore based on the blob config type.
// When enc is non-nil the store is wrapped in an EncryptedStore.
func NewStoreFromConfig(ctx context.Context, cfg config.BlobConfig, enc encryption.Encryptor) (compliance.BlobStore, error) {
	var store compliance.BlobStore
	switch cfg.Type {
	case "memory":
		store = NewMemoryStore()
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem blob store requires root to be set")
		}
		fs, err := NewFileSystemStore(cfg.Root)
		if err != nil {
			return nil, err
		}
		store = fs
	case "s3":
		s3Store, err := NewS3Store(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     os.Getenv("AUDITFLOW_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AUDITFLOW_S3_SECRET_ACCESS_KEY"),
		})
		if err != nil {
			return nil, err
		}
		store = s3Store
	default:
		return nil, fmt.Errorf("unknown blob store type: %s", cfg.Type)
	}

	if enc != nil {
		return NewEncryptedStore(store, enc), nil
	}
	return store, nil
}
