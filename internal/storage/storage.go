// Package storage fetches competition packets from object storage and
// unpacks their zstd-compressed tar archives onto local disk.
package storage

import (
	"context"
	"io"
)

// ObjectStorage abstracts the blob store holding packet archives.
type ObjectStorage interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) error
	StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error)
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
}
