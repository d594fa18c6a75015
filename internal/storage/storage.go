package storage

import (
	"context"
	"io"
	"time"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// Service stores exported console data in remote object storage.
type Service interface {
	PutObject(ctx context.Context, bucket, key, contentType string, body io.Reader) (string, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}
