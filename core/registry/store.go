package registry

import "context"

// Store persists registry entries, one set per label.
//
// Read returns ErrNotFound when the label has never been written and an error
// wrapping ErrCorrupt when stored data cannot be decoded.
type Store interface {
	Read(ctx context.Context, label Label) (map[string]AssetRecord, error)
	Write(ctx context.Context, label Label, entries map[string]AssetRecord) error
}
