package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// fileFormat is the on-disk layout of one registry file.
type fileFormat struct {
	Version string                 `json:"version"`
	Branch  string                 `json:"branch,omitempty"`
	Entries map[string]AssetRecord `json:"entries"`
}

// FileStore keeps one JSON file per label under a directory.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore creates a store rooted at dir on fs.
func NewFileStore(fs afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fs, dir: dir}
}

// Path returns the registry file path for label.
func (s *FileStore) Path(label Label) string {
	return filepath.Join(s.dir, label.FileName())
}

// Read loads the entries stored for label.
func (s *FileStore) Read(ctx context.Context, label Label) (map[string]AssetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := afero.ReadFile(s.fs, s.Path(label))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read registry %s: %w", label, err)
	}

	var f fileFormat
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, label, err)
	}
	if f.Entries == nil {
		f.Entries = make(map[string]AssetRecord)
	}
	return f.Entries, nil
}

// Write replaces the file for label. The content goes to a temporary file in
// the same directory first and is renamed into place, so readers never observe
// a partial registry.
func (s *FileStore) Write(ctx context.Context, label Label, entries map[string]AssetRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entries == nil {
		entries = make(map[string]AssetRecord)
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create registry dir: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, ".tmp-"+label.FileName()+"-")
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fileFormat{Version: label.Version, Branch: label.Branch, Entries: entries}); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to encode registry %s: %w", label, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return err
	}
	if err := s.fs.Rename(tmpName, s.Path(label)); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to replace registry %s: %w", label, err)
	}
	return nil
}
