// Package registry implements the persistent fingerprint registry.
//
// A registry maps a logical asset path (normalized, extension stripped) to
// the last known extension and size of the source file. Registries are
// scoped by a Label (game build version and branch) and persisted through a
// Store: one JSON file per label (FileStore) or rows in a database table
// (DBStore).
//
// # Lifecycle
//
// The active Registry is loaded once, lazily, mutated in place for one run
// and saved exactly once at the end of a successful run. If the process dies
// before Save, the stored registry still reflects the previous run and the
// next run re-detects the same changes. Exports are expected to be
// idempotent for this reason.
//
// When a label has never been saved the registry is seeded from a fallback
// label and persisted immediately. Corrupt or unreadable data is treated as
// absent; the worst case is a full re-export.
//
// # Baselines
//
// Registries of other labels are loaded read-only through Baselines for
// cross-version diffs. A missing baseline is an error for that diff only.
package registry
