// Package exporter composes the sync engine for one registry label and
// exposes it to the commands and the HTTP status API.
//
// A Sync run acquires the label's run lock, loads the registry, exports the
// source listing, sweeps stale entries and saves the registry exactly once.
// Diff compares the active registry with a baseline label and can
// force-export the change set. Reconcile audits the artifact tree and
// re-exports missing artifacts when confirmed.
package exporter
