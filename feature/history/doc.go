// Package history records one row per engine run when a database is configured.
package history
