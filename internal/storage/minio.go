package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"FileVault/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore implements Store with a MinIO client.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore builds a Store from a MinIO client.
func NewMinioStore(client *minio.Client, bucket string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket}
}

// NewMinioFromConfig connects to MinIO and creates the bucket when missing.
func NewMinioFromConfig(ctx context.Context, cfg config.MinioConfig, bucket string) (*MinioStore, error) {
	client, err := minio.New(fmt.Sprintf("%s:%s", cfg.Host, cfg.Port), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Username, cfg.Password, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
	}
	return NewMinioStore(client, bucket), nil
}

func minioErr(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return err
}

// PutObject uploads an object to MinIO.
func (s *MinioStore) PutObject(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	return err
}

// GetObject fetches an object and its size from MinIO.
func (s *MinioStore) GetObject(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, minioErr(err)
	}
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, ObjectInfo{}, minioErr(err)
	}
	return obj, ObjectInfo{Key: key, Size: stat.Size, ContentType: stat.ContentType}, nil
}

// RemoveObject deletes an object from MinIO.
func (s *MinioStore) RemoveObject(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return minioErr(err)
	}
	return nil
}
