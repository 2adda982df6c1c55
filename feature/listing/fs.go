package listing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"asset-exporter/core/classify"
	"asset-exporter/core/registry"

	"github.com/spf13/afero"
)

// FSLister lists a source tree on a filesystem.
type FSLister struct {
	fs   afero.Fs
	root string
}

// NewFSLister creates a lister rooted at root.
func NewFSLister(fs afero.Fs, root string) *FSLister {
	return &FSLister{fs: fs, root: root}
}

// Walk visits every regular file under the root in lexical order.
func (l *FSLister) Walk(ctx context.Context, fn func(classify.SourceFile) error) error {
	exists, err := afero.DirExists(l.fs, l.root)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("source dir %s does not exist", l.root)
	}

	return afero.Walk(l.fs, l.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		source := filepath.ToSlash(rel)
		logical, ext := registry.SplitPath(source)

		size := info.Size()
		if size < 0 {
			size = 0
		}
		return fn(classify.SourceFile{Path: logical, Extension: ext, Size: uint64(size), Source: source})
	})
}
