package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"FileVault/config"
)

// ErrObjectNotFound is returned when a key has no object behind it.
var ErrObjectNotFound = errors.New("object not found")

// PutOptions describes object metadata on upload.
type PutOptions struct {
	ContentType string
}

type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// Store abstracts the object storage backend. Each Store is bound to one bucket.
type Store interface {
	PutObject(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	RemoveObject(ctx context.Context, key string) error
}

// New builds the Store selected by cfg.Backend for the given bucket.
func New(ctx context.Context, cfg *config.StorageConfig, bucket string) (Store, error) {
	switch cfg.Backend {
	case "", "minio":
		return NewMinioFromConfig(ctx, cfg.Minio, bucket)
	case "s3":
		return NewS3FromConfig(ctx, cfg.S3, bucket)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// ReadAll fetches a whole object into memory.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	reader, _, err := s.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
