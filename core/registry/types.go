package registry

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

var (
	// ErrNotFound is returned by a Store when no registry exists for a label.
	ErrNotFound = errors.New("registry not found")
	// ErrCorrupt is returned by a Store when stored data cannot be decoded.
	ErrCorrupt = errors.New("registry corrupt")
	// ErrBaselineNotFound is returned when a baseline registry required for a diff is unavailable.
	ErrBaselineNotFound = errors.New("baseline registry not found")
	// ErrLocked is returned when another process holds the run lock for a label.
	ErrLocked = errors.New("registry label is locked by another run")
)

// AssetRecord is the fingerprint of one source file. Size is the only change signal.
type AssetRecord struct {
	Extension string `json:"extension"`
	Size      uint64 `json:"size"`
}

// Label identifies a registry by game build version and branch.
type Label struct {
	Version string `json:"version"`
	Branch  string `json:"branch,omitempty"`
}

// IsZero reports whether the label has no version.
func (l Label) IsZero() bool {
	return l.Version == "" && l.Branch == ""
}

// String returns the label as "<version>@<branch>", or "<version>" without a branch.
func (l Label) String() string {
	version := l.Version
	if version == "" {
		version = "default"
	}
	if l.Branch == "" {
		return version
	}
	return version + "@" + l.Branch
}

// Key returns a filesystem-safe identifier that is unique per label. Both
// parts are query-escaped, so neither can contain the "@" separator or a
// path separator.
func (l Label) Key() string {
	key := url.QueryEscape(l.Version)
	if l.Branch != "" {
		key += "@" + url.QueryEscape(l.Branch)
	}
	if key == "" {
		return "@"
	}
	return key
}

// FileName returns the registry file name for the label.
func (l Label) FileName() string {
	return l.Key() + ".json"
}

// Reader is the read-only view shared by active registries and baselines.
type Reader interface {
	Get(path string) (AssetRecord, bool)
	Keys() map[string]struct{}
}

// SplitPath turns a raw source path into its logical path and lowercase extension.
// Backslashes become slashes, leading slashes are dropped and the extension is stripped.
func SplitPath(raw string) (logical string, ext string) {
	p := strings.ReplaceAll(raw, "\\", "/")
	p = strings.TrimLeft(p, "/")
	e := path.Ext(p)
	if e == "" {
		return p, ""
	}
	return strings.TrimSuffix(p, e), strings.ToLower(strings.TrimPrefix(e, "."))
}
