package registry

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Baseline is a read-only registry of another version or branch, used only for diffing.
type Baseline struct {
	label   Label
	entries map[string]AssetRecord
}

// NewBaseline wraps entries as a read-only baseline.
func NewBaseline(label Label, entries map[string]AssetRecord) *Baseline {
	if entries == nil {
		entries = make(map[string]AssetRecord)
	}
	return &Baseline{label: label, entries: entries}
}

// Label returns the baseline label.
func (b *Baseline) Label() Label {
	return b.label
}

// Get returns the record stored for path.
func (b *Baseline) Get(path string) (AssetRecord, bool) {
	rec, ok := b.entries[path]
	return rec, ok
}

// Keys returns a copy of the set of logical paths.
func (b *Baseline) Keys() map[string]struct{} {
	keys := make(map[string]struct{}, len(b.entries))
	for k := range b.entries {
		keys[k] = struct{}{}
	}
	return keys
}

// Len returns the number of entries.
func (b *Baseline) Len() int {
	return len(b.entries)
}

// Baselines loads and caches read-only registries by label.
type Baselines struct {
	store Store

	mu     sync.RWMutex
	loaded map[Label]*Baseline
	sf     singleflight.Group
}

// NewBaselines creates a baseline cache over store.
func NewBaselines(store Store) *Baselines {
	return &Baselines{
		store:  store,
		loaded: make(map[Label]*Baseline),
	}
}

// Get returns the baseline for label, loading it once. A missing or unreadable
// baseline is an error wrapping ErrBaselineNotFound; there is no fallback.
func (b *Baselines) Get(ctx context.Context, label Label) (*Baseline, error) {
	b.mu.RLock()
	base, ok := b.loaded[label]
	b.mu.RUnlock()
	if ok {
		return base, nil
	}

	result, err, _ := b.sf.Do(label.Key(), func() (interface{}, error) {
		// Double-check after acquiring singleflight lock
		b.mu.RLock()
		base, ok := b.loaded[label]
		b.mu.RUnlock()
		if ok {
			return base, nil
		}

		entries, err := b.store.Read(ctx, label)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrBaselineNotFound, label, err)
		}

		base = NewBaseline(label, entries)
		b.mu.Lock()
		b.loaded[label] = base
		b.mu.Unlock()
		return base, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Baseline), nil
}

// Invalidate drops a cached baseline so the next Get reloads it.
func (b *Baselines) Invalidate(label Label) {
	b.mu.Lock()
	delete(b.loaded, label)
	b.mu.Unlock()
}
