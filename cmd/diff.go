package cmd

import (
	"fmt"

	"asset-exporter/feature/exporter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	diffBase   string
	diffBranch string
	diffExport bool
)

// diffCmd compares the active registry with a baseline label.
var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare the active registry with another version",
	Long: `Compares the active registry with a baseline registry of another
version or branch and lists new and modified assets. Assets only present in
the baseline are not reported.

Examples:
  # Report only
  diff --base 5.00 --branch live

  # Export the change set, skipping artifacts that already exist
  diff --base 5.00 --branch live --export`,
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&diffBase, "base", "", "Baseline version label (required)")
	diffCmd.Flags().StringVar(&diffBranch, "branch", "", "Baseline branch label")
	diffCmd.Flags().BoolVar(&diffExport, "export", false, "Force-export new and modified assets")
	_ = diffCmd.MarkFlagRequired("base")
	RootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	base, err := exporter.ParseLabel(diffBase, diffBranch)
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	a.logger.Info("Comparing registries",
		zap.String("current", a.service.Label().String()),
		zap.String("base", base.String()))

	res, err := a.service.Diff(ctx, base, exporter.DiffOptions{Export: diffExport})
	if res != nil {
		fmt.Println(summaryTable([][2]string{
			{"Current", res.Current},
			{"Base", res.Base},
			{"New", humanCount(len(res.New))},
			{"Modified", humanCount(len(res.Modified))},
		}))
		if len(res.New) > 0 {
			fmt.Println(listTable("New", res.New, 25))
		}
		if len(res.Modified) > 0 {
			fmt.Println(listTable("Modified", res.Modified, 25))
		}
		if r := res.Report; r != nil {
			fmt.Println(summaryTable([][2]string{
				{"Exported", humanCount(r.Exported)},
				{"Skipped (artifact exists)", humanCount(r.SkippedExisting)},
				{"Failed", humanCount(r.Failed)},
			}))
		}
	}
	if err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}
	return nil
}
