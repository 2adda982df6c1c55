// Package classify decides which source files are new or changed.
//
// Two modes serve different call sites and are kept separate:
//
//   - Continuous-sync (Classifier): a source file is compared with the same
//     registry's record. A missing record or a different size is a change and
//     is written back immediately. An optional always-reevaluate predicate
//     marks files eligible for export without touching the registry.
//   - Cross-version (Diff): two registries are compared and the result is a
//     ChangeSet of new and modified paths.
//
// Size is the only signal. Equal sizes with different bytes are not detected.
package classify
