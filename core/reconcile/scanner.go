package reconcile

import (
	"context"
	"fmt"
	"sort"

	"asset-exporter/core/export"
	"asset-exporter/core/logger"
	"asset-exporter/core/registry"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ScannerConfig wires a Scanner. Rules and Policy must be the instances the
// orchestrator exports with.
type ScannerConfig struct {
	Rules      *export.Rules
	Policy     export.Policy
	Output     afero.Fs
	OutputRoot string
	Logger     *zap.Logger
}

// Scanner audits a registry against the artifact tree. It never mutates either.
type Scanner struct {
	cfg    ScannerConfig
	logger *zap.Logger
}

// NewScanner creates a scanner.
func NewScanner(cfg ScannerConfig) *Scanner {
	if cfg.Rules == nil {
		cfg.Rules = export.DefaultRules()
	}
	if cfg.Output == nil {
		cfg.Output = afero.NewOsFs()
	}
	return &Scanner{cfg: cfg, logger: logger.OrNop(cfg.Logger)}
}

// Scan returns the sorted logical paths whose expected artifact is missing.
func (s *Scanner) Scan(ctx context.Context, reg registry.Reader) ([]string, error) {
	plan, err := s.Plan(ctx, reg)
	if err != nil {
		return nil, err
	}
	return plan.Missing, nil
}

// Plan scans reg and returns a plan with one export action per missing artifact.
func (s *Scanner) Plan(ctx context.Context, reg registry.Reader) (*ReconcilePlan, error) {
	keys := reg.Keys()
	paths := make([]string, 0, len(keys))
	for k := range keys {
		paths = append(paths, k)
	}
	sort.Strings(paths)

	plan := &ReconcilePlan{Missing: []string{}}
	plan.Summary.TotalEntries = len(paths)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, ok := reg.Get(p)
		if !ok {
			continue
		}
		rule, ok := s.cfg.Rules.Resolve(p, rec.Extension)
		if !ok {
			plan.Summary.Unsupported++
			continue
		}
		if s.cfg.Policy.IsExcluded(p) {
			plan.Summary.Excluded++
			continue
		}

		expected := export.ArtifactPath(s.cfg.OutputRoot, p, rule)
		exists, err := afero.Exists(s.cfg.Output, expected)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", expected, err)
		}
		if exists {
			plan.Summary.Present++
			continue
		}

		plan.Missing = append(plan.Missing, p)
		plan.Actions = append(plan.Actions, Action{
			Type:     ActionExport,
			Key:      p,
			Reason:   "artifact missing",
			Expected: expected,
		})
	}

	plan.Summary.Missing = len(plan.Missing)
	plan.Summary.ExportActions = len(plan.Actions)

	s.logger.Info("Reconciliation scan finished",
		zap.Int("entries", plan.Summary.TotalEntries),
		zap.Int("present", plan.Summary.Present),
		zap.Int("missing", plan.Summary.Missing))
	return plan, nil
}
