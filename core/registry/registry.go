package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"asset-exporter/core/logger"

	"go.uber.org/zap"
)

// Registry is the active, mutable fingerprint map for one label.
//
// It is loaded at most once per process, mutated in place for the duration
// of one run and persisted by an explicit Save at the end of the run.
type Registry struct {
	label    Label
	store    Store
	fallback Label
	logger   *zap.Logger

	loadMu sync.Mutex
	loaded atomic.Bool

	mu        sync.RWMutex
	entries   map[string]AssetRecord
	mutations atomic.Uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithFallback sets the label seeded into this registry when it has never been saved.
func WithFallback(label Label) Option {
	return func(r *Registry) {
		r.fallback = label
	}
}

// WithLogger sets the logger used for load warnings.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// New creates a registry for label backed by store. Nothing is read until Load
// or the first accessor call.
func New(label Label, store Store, opts ...Option) *Registry {
	r := &Registry{
		label:   label,
		store:   store,
		entries: make(map[string]AssetRecord),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logger.OrNop(r.logger)
	return r
}

// Label returns the registry label.
func (r *Registry) Label() Label {
	return r.label
}

// Load reads the registry from its store. When the label is absent or unreadable
// the fallback label is read and immediately persisted under this label; when
// that is unavailable too the registry starts empty. Load never fails on
// missing or corrupt data. A context error aborts the load and leaves the
// registry unloaded, so the next call reads the store again.
func (r *Registry) Load(ctx context.Context) error {
	if r.loaded.Load() {
		return nil
	}

	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	if r.loaded.Load() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := r.store.Read(ctx, r.label)
	if aborted(ctx, err) {
		return abortErr(ctx, err)
	}
	if err == nil {
		r.logger.Debug("Loaded registry",
			zap.String("label", r.label.String()),
			zap.Int("entries", len(entries)))
	} else {
		r.warnUnreadable(r.label, err)
		if entries, err = r.seedFromFallback(ctx); err != nil {
			return err
		}
	}

	if entries == nil {
		entries = make(map[string]AssetRecord)
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()

	r.loaded.Store(true)
	return nil
}

// seedFromFallback returns the fallback entries, or nil when there are none.
// The only error it returns is a context error.
func (r *Registry) seedFromFallback(ctx context.Context) (map[string]AssetRecord, error) {
	if r.fallback.IsZero() || r.fallback == r.label {
		return nil, nil
	}

	entries, err := r.store.Read(ctx, r.fallback)
	if aborted(ctx, err) {
		return nil, abortErr(ctx, err)
	}
	if err != nil {
		r.warnUnreadable(r.fallback, err)
		return nil, nil
	}

	r.logger.Info("Seeded registry from fallback label",
		zap.String("label", r.label.String()),
		zap.String("fallback", r.fallback.String()),
		zap.Int("entries", len(entries)))

	if err := r.store.Write(ctx, r.label, entries); err != nil {
		if aborted(ctx, err) {
			return nil, abortErr(ctx, err)
		}
		r.logger.Warn("Failed to persist seeded registry",
			zap.String("label", r.label.String()),
			zap.Error(err))
	}
	return entries, nil
}

// aborted reports whether a store error came from cancellation rather than
// from the stored data.
func aborted(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func abortErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (r *Registry) warnUnreadable(label Label, err error) {
	if errors.Is(err, ErrNotFound) {
		r.logger.Debug("Registry not found", zap.String("label", label.String()))
		return
	}
	r.logger.Warn("Registry unreadable, treating as absent",
		zap.String("label", label.String()),
		zap.Error(err))
}

func (r *Registry) lazyLoad() {
	if !r.loaded.Load() {
		_ = r.Load(context.Background())
	}
}

// Get returns the record stored for path.
func (r *Registry) Get(path string) (AssetRecord, bool) {
	r.lazyLoad()
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.entries[path]
	return rec, ok
}

// Upsert inserts or replaces the record for path. It never persists.
func (r *Registry) Upsert(path, extension string, size uint64) {
	r.lazyLoad()
	r.mu.Lock()
	r.entries[path] = AssetRecord{Extension: extension, Size: size}
	r.mu.Unlock()
	r.mutations.Add(1)
}

// Remove deletes the given paths and returns how many existed.
func (r *Registry) Remove(paths ...string) int {
	r.lazyLoad()
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, p := range paths {
		if _, ok := r.entries[p]; ok {
			delete(r.entries, p)
			removed++
		}
	}
	if removed > 0 {
		r.mutations.Add(uint64(removed))
	}
	return removed
}

// Keys returns a copy of the set of logical paths.
func (r *Registry) Keys() map[string]struct{} {
	r.lazyLoad()
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make(map[string]struct{}, len(r.entries))
	for k := range r.entries {
		keys[k] = struct{}{}
	}
	return keys
}

// Snapshot returns a copy of all entries.
func (r *Registry) Snapshot() map[string]AssetRecord {
	r.lazyLoad()
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]AssetRecord, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.lazyLoad()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Mutations returns the number of Upsert and Remove effects since creation.
func (r *Registry) Mutations() uint64 {
	return r.mutations.Load()
}

// Save persists the full map under the registry label.
func (r *Registry) Save(ctx context.Context) error {
	entries := r.Snapshot()
	if err := r.store.Write(ctx, r.label, entries); err != nil {
		return fmt.Errorf("failed to save registry %s: %w", r.label, err)
	}
	r.logger.Info("Saved registry",
		zap.String("label", r.label.String()),
		zap.Int("entries", len(entries)))
	return nil
}
