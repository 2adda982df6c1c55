// Package server holds the HTTP status server configuration.
//
// The status server exposes read-only views of the registry, reconciliation
// and cross-version diff results, plus run history. It is started by the
// `start` command.
package server
