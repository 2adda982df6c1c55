package decoders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"asset-exporter/core/classify"
	"asset-exporter/core/storage"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/afero"
)

// Passthrough copies source bytes unchanged from a filesystem source tree.
type Passthrough struct {
	fs   afero.Fs
	root string
}

// NewPassthrough creates a decoder reading from root on fs.
func NewPassthrough(fs afero.Fs, root string) *Passthrough {
	return &Passthrough{fs: fs, root: root}
}

// Decode reads the source file. The extension is matched case-insensitively
// because listings lowercase it.
func (p *Passthrough) Decode(ctx context.Context, f classify.SourceFile) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var name string
	if f.Source != "" {
		name = filepath.Join(p.root, filepath.FromSlash(f.Source))
	} else {
		name = filepath.Join(p.root, filepath.FromSlash(f.Path))
		if f.Extension != "" {
			name += "." + f.Extension
		}
	}

	data, err := afero.ReadFile(p.fs, name)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return data, err
	}

	// Fall back to a sibling whose name differs only by case.
	entries, dirErr := afero.ReadDir(p.fs, filepath.Dir(name))
	if dirErr != nil {
		return nil, err
	}
	base := filepath.Base(name)
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), base) {
			return afero.ReadFile(p.fs, filepath.Join(filepath.Dir(name), e.Name()))
		}
	}
	return nil, err
}

// ObjectPassthrough copies source bytes unchanged from object storage.
type ObjectPassthrough struct {
	client storage.Client
	bucket string
	key    func(classify.SourceFile) string
}

// NewObjectPassthrough creates a decoder that downloads key(f) from bucket.
func NewObjectPassthrough(client storage.Client, bucket string, key func(classify.SourceFile) string) *ObjectPassthrough {
	return &ObjectPassthrough{client: client, bucket: bucket, key: key}
}

// Decode downloads the source object. When the object is missing under the
// derived key, a sibling whose key differs only by case is used instead.
func (o *ObjectPassthrough) Decode(ctx context.Context, f classify.SourceFile) ([]byte, error) {
	key := o.key(f)
	data, err := o.download(ctx, key)
	if err == nil || !isNoSuchKey(err) {
		return data, err
	}

	alt, ok, listErr := o.foldedSibling(ctx, key)
	if listErr != nil || !ok {
		return nil, err
	}
	return o.download(ctx, alt)
}

func (o *ObjectPassthrough) download(ctx context.Context, key string) ([]byte, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// foldedSibling lists the objects next to key and returns the one whose key
// matches case-insensitively.
func (o *ObjectPassthrough) foldedSibling(ctx context.Context, key string) (string, bool, error) {
	prefix := ""
	if i := strings.LastIndex(key, "/"); i >= 0 {
		prefix = key[:i+1]
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range o.client.ListObjects(ctx, o.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return "", false, obj.Err
		}
		if obj.Key != key && strings.EqualFold(obj.Key, key) {
			return obj.Key, true, nil
		}
	}
	return "", false, nil
}

func isNoSuchKey(err error) bool {
	var resp minio.ErrorResponse
	return errors.As(err, &resp) && resp.Code == "NoSuchKey"
}
