package listing

import (
	"context"
	"fmt"
	"strings"

	"asset-exporter/core/classify"
	"asset-exporter/core/registry"
	"asset-exporter/core/storage"

	"github.com/minio/minio-go/v7"
)

// S3Lister lists a source tree stored under a bucket prefix.
type S3Lister struct {
	client storage.Client
	bucket string
	prefix string
}

// NewS3Lister creates a lister for objects under prefix in bucket.
func NewS3Lister(client storage.Client, bucket, prefix string) *S3Lister {
	prefix = strings.TrimLeft(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Lister{client: client, bucket: bucket, prefix: prefix}
}

// Walk visits every object under the prefix. Object sizes are used as file sizes.
func (l *S3Lister) Walk(ctx context.Context, fn func(classify.SourceFile) error) error {
	exists, err := l.client.BucketExists(ctx, l.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", l.bucket)
	}

	// Cancelling stops the listing goroutine when fn returns early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := minio.ListObjectsOptions{
		Prefix:    l.prefix,
		Recursive: true,
	}
	for obj := range l.client.ListObjects(ctx, l.bucket, opts) {
		if obj.Err != nil {
			return fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}

		logical, ext := registry.SplitPath(strings.TrimPrefix(obj.Key, l.prefix))
		if logical == "" {
			continue
		}

		var size uint64
		if obj.Size > 0 {
			size = uint64(obj.Size)
		}
		f := classify.SourceFile{Path: logical, Extension: ext, Size: size, Source: obj.Key}
		if err := fn(f); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// ObjectKey returns the object key of a source file. Files rebuilt from the
// registry only carry the lowercased extension, so their key may differ in case
// from the stored object.
func (l *S3Lister) ObjectKey(f classify.SourceFile) string {
	if f.Source != "" {
		return f.Source
	}
	if f.Extension == "" {
		return l.prefix + f.Path
	}
	return l.prefix + f.Path + "." + f.Extension
}
