package cmd

import (
	"fmt"
	"time"

	"asset-exporter/core/export"
	"asset-exporter/feature/exporter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepDryRun bool

// exportCmd runs one continuous-sync pass.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export new and changed assets, then sweep and save the registry",
	Long: `Walks the source tree, exports every new or changed asset, removes state
whose source disappeared and saves the registry once at the end.

An interrupted run saves nothing, so the next run retries the same changes.

Examples:
  # Regular run
  export

  # Report stale entries without removing them
  export --sweep-dry-run`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&sweepDryRun, "sweep-dry-run", false, "Report stale registry entries and artifacts without removing them")
	RootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	a.logger.Info("Starting export", zap.String("label", a.service.Label().String()))

	res, err := a.service.Sync(ctx, exporter.SyncOptions{SweepDryRun: sweepDryRun})
	if res != nil && res.Report != nil {
		printExportReport(res)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	return nil
}

func printExportReport(res *exporter.SyncResult) {
	r := res.Report
	pairs := [][2]string{
		{"Label", res.Label},
		{"Listed", humanCount(r.Listed)},
		{"Never exported", humanCount(r.NeverExport)},
		{"Ineligible", humanCount(r.Ineligible)},
		{"Unchanged", humanCount(r.Unchanged)},
		{"Re-evaluated", humanCount(r.Reevaluated)},
		{"Excluded", humanCount(r.Excluded)},
		{"Unsupported", humanCount(r.Unsupported)},
		{"Exported", humanCount(r.Exported)},
		{"Exported size", humanize.Bytes(r.ExportedBytes)},
		{"Failed", humanCount(r.Failed)},
		{"Duration", r.Duration().Round(time.Millisecond).String()},
	}
	if res.Sweep != nil {
		pairs = append(pairs,
			[2]string{"Stale entries", humanCount(len(res.Sweep.Stale))},
			[2]string{"Artifacts deleted", humanCount(len(res.Sweep.Deleted))},
			[2]string{"Artifacts kept", humanCount(res.Sweep.Kept)},
			[2]string{"Case variants dropped", humanCount(res.Sweep.CaseVariants)},
		)
	}
	pairs = append(pairs, [2]string{"Registry saved", fmt.Sprint(res.Saved)})
	fmt.Println(summaryTable(pairs))

	if len(r.Failures) > 0 {
		fmt.Println(failureTable(r.Failures, 20))
	}
}

func failureTable(failures []export.Failure, max int) string {
	rows := make([][]string, 0, max+1)
	for i, f := range failures {
		if i == max {
			rows = append(rows, []string{"...", humanCount(len(failures)-max) + " more"})
			break
		}
		rows = append(rows, []string{f.Path, f.Error})
	}
	return renderTable([]string{"Failed path", "Error"}, rows, nil)
}

func humanCount(n int) string {
	return humanize.Comma(int64(n))
}
