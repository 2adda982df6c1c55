package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"asset-exporter/core/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for reconcile command
	applyReconcile  bool
	dryRunReconcile bool
	yesConfirm      bool
)

// reconcileCmd audits the artifact tree and optionally repairs it.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Find artifacts that should exist but do not, and optionally re-export them",
	Long: `Audits the active registry against the artifact tree. Every registry entry
with an export rule that is not permanently excluded must have an artifact on
disk; entries without one are reported as missing.

Examples:
  # Report only
  reconcile

  # Re-export missing artifacts (with interactive confirmation)
  reconcile --apply

  # Re-export with auto-confirm (non-interactive)
  reconcile --apply --yes`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&applyReconcile, "apply", false, "Re-export missing artifacts")
	reconcileCmd.Flags().BoolVar(&dryRunReconcile, "dry-run", false, "Force dry-run (no exports even with --yes)")
	reconcileCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm the repair (non-interactive)")

	RootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.logger.Sync()
	l := a.logger

	// Step 1: Plan (always runs)
	l.Info("Planning reconciliation...", zap.String("label", a.service.Label().String()))
	plan, _, err := a.service.Reconcile(ctx, reconcile.ReconcileOptions{DryRun: true})
	if err != nil {
		return fmt.Errorf("failed to plan reconciliation: %w", err)
	}

	// Step 2: Print report
	printReconcileReport(plan)

	// Step 3: Check if actions are requested
	if !applyReconcile {
		l.Info("No actions requested. Use --apply to re-export missing artifacts.")
		return nil
	}
	if dryRunReconcile {
		l.Info("Dry-run mode: No changes were made.")
		return nil
	}
	if len(plan.Actions) == 0 {
		l.Info("No actions required.")
		return nil
	}

	// Step 4: Apply (if confirmed)
	if !confirmAction(len(plan.Actions)) {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	l.Info("Applying actions...")
	applied, report, err := a.service.Reconcile(ctx, reconcile.ReconcileOptions{Confirmed: true})
	if err != nil {
		return fmt.Errorf("failed to apply plan: %w", err)
	}
	if report == nil {
		l.Info("Nothing left to repair", zap.Int("missing", len(applied.Missing)))
		return nil
	}

	fmt.Println(summaryTable([][2]string{
		{"Re-exported", humanCount(report.Exported)},
		{"Failed", humanCount(report.Failed)},
	}))
	if len(report.Failures) > 0 {
		fmt.Println(failureTable(report.Failures, 20))
	}
	l.Info("Successfully executed actions", zap.Int("count", report.Exported))
	return nil
}

// printReconcileReport prints the plan summary and a sample of missing paths.
func printReconcileReport(plan *reconcile.ReconcilePlan) {
	s := plan.Summary
	fmt.Println(summaryTable([][2]string{
		{"Registry entries", humanCount(s.TotalEntries)},
		{"Present", humanCount(s.Present)},
		{"Missing", humanCount(s.Missing)},
		{"Excluded", humanCount(s.Excluded)},
		{"Unsupported", humanCount(s.Unsupported)},
	}))
	if len(plan.Missing) > 0 {
		fmt.Println(listTable("Missing", plan.Missing, 25))
	}
}

// confirmAction prompts the user for confirmation or uses --yes flag.
func confirmAction(count int) bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Printf("\n⚠️  Type 'yes' to re-export %s assets: ", humanCount(count))
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}
