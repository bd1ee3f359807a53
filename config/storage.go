package config

import (
	"strings"
	"sync"
)

// StorageConfig holds object store settings.
type StorageConfig struct {
	Backend    string `validate:"oneof=minio s3 memory"` // minio, s3, memory
	Bucket     string `validate:"required"`
	BucketTest string
	Minio      MinioConfig
	S3         S3Config
}

// MinioConfig describes the MinIO endpoint.
type MinioConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	UseSSL   bool
}

// S3Config describes an S3 (or S3 compatible) endpoint.
type S3Config struct {
	Region          string
	Endpoint        string // empty uses the AWS default resolver
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

var StorageConfigInstance *StorageConfig
var storageConfigOnce sync.Once

// InitStorageConfig initializes storage config.
func InitStorageConfig() {
	storageConfigOnce.Do(func() {
		StorageConfigInstance = &StorageConfig{
			Backend:    strings.ToLower(getEnv("STORAGE_BACKEND", "minio")),
			Bucket:     getEnv("BUCKET_NAME", "file-vault"),
			BucketTest: getEnv("BUCKET_NAME_TEST", "file-vault-test"),
			Minio: MinioConfig{
				Host:     getEnv("MINIO_HOST", "localhost"),
				Port:     getEnv("MINIO_PORT", "9000"),
				Username: getEnv("MINIO_USERNAME", "minioadmin"),
				Password: getEnv("MINIO_PASSWORD", "minioadmin"),
				UseSSL:   getEnvBool("MINIO_USE_SSL", false),
			},
			S3: S3Config{
				Region:          getEnv("AWS_REGION", "us-east-1"),
				Endpoint:        getEnv("S3_ENDPOINT", ""),
				AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
				ForcePathStyle:  getEnvBool("S3_FORCE_PATH_STYLE", false),
			},
		}
	})
}
