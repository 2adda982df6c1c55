// Package reconcile finds artifacts that should exist but do not, and
// repairs them through a forced export.
//
// The Scanner is a read-only audit of one registry against the artifact tree.
// For each entry it skips extensions without an export rule and permanently
// excluded paths, computes the expected artifact path with the same Rules the
// orchestrator uses, and flags the entry when nothing exists there.
//
// # Usage Example
//
//	scanner := reconcile.NewScanner(reconcile.ScannerConfig{
//	    Rules:      rules,
//	    Policy:     policy,
//	    Output:     afero.NewOsFs(),
//	    OutputRoot: "output",
//	})
//
//	// Plan only
//	plan, err := scanner.Plan(ctx, reg)
//
//	// Plan and repair
//	plan, report, err := reconcile.ReconcileAndApply(ctx, scanner, reg, orchestrator,
//	    reconcile.ReconcileOptions{Confirmed: true})
//
// ApplyPlan does nothing unless the options are confirmed and not a dry run.
// Cache keeps recent plans for the status API.
package reconcile
