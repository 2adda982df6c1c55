package reconcile

import (
	"context"

	"asset-exporter/core/export"
	"asset-exporter/core/registry"
)

// ForcedExporter re-exports explicit logical paths without classification.
type ForcedExporter interface {
	ExportPaths(ctx context.Context, paths []string, opts export.ForceOptions) (*export.Report, error)
}

// ApplyPlan executes the export actions in a reconcile plan.
// Requires opts.Confirmed=true and opts.DryRun=false to actually execute;
// otherwise it returns a nil report and no error.
func ApplyPlan(ctx context.Context, exporter ForcedExporter, plan *ReconcilePlan, opts ReconcileOptions) (*export.Report, error) {
	// Safety check: do not execute if not confirmed or dry-run
	if !opts.Confirmed || opts.DryRun {
		return nil, nil
	}
	if plan == nil || len(plan.Actions) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(plan.Actions))
	for _, action := range plan.Actions {
		if action.Type == ActionExport {
			keys = append(keys, action.Key)
		}
	}

	return exporter.ExportPaths(ctx, keys, export.ForceOptions{})
}

// ReconcileAndApply is a convenience wrapper that plans and optionally applies actions.
func ReconcileAndApply(
	ctx context.Context,
	scanner *Scanner,
	reg registry.Reader,
	exporter ForcedExporter,
	opts ReconcileOptions,
) (*ReconcilePlan, *export.Report, error) {
	plan, err := scanner.Plan(ctx, reg)
	if err != nil {
		return nil, nil, err
	}

	report, err := ApplyPlan(ctx, exporter, plan, opts)
	return plan, report, err
}
