package storage

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	appErr "arbiter/pkg/errors"
)

// Config holds the object storage connection settings.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

type minioStorage struct {
	client *minio.Client
}

// NewMinioStorage connects to a MinIO or S3-compatible endpoint.
func NewMinioStorage(cfg Config) (ObjectStorage, error) {
	if cfg.Endpoint == "" {
		return nil, appErr.ValidationError("endpoint", "required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ServiceUnavailable, "connect object storage failed")
	}
	return &minioStorage{client: client}, nil
}

func (m *minioStorage) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ServiceUnavailable, "get object %s/%s failed", bucket, key)
	}
	return obj, nil
}

func (m *minioStorage) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) error {
	_, err := m.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{})
	if err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "put object %s/%s failed", bucket, key)
	}
	return nil
}

func (m *minioStorage) StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	info, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, appErr.Wrapf(err, appErr.NotFound, "stat object %s/%s failed", bucket, key)
	}
	return ObjectInfo{Key: info.Key, Size: info.Size, ETag: info.ETag}, nil
}
