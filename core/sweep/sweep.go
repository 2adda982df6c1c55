package sweep

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"asset-exporter/core/export"
	"asset-exporter/core/logger"
	"asset-exporter/core/registry"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Registry is the part of the active registry the sweep needs.
type Registry interface {
	registry.Reader
	Remove(paths ...string) int
}

// Config wires a Sweeper.
type Config struct {
	Rules      *export.Rules
	Policy     Policy
	Output     afero.Fs
	OutputRoot string
	// DryRun reports stale entries and deletable artifacts without touching anything.
	DryRun bool
	Logger *zap.Logger
}

// Failure is an artifact that could not be deleted.
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result summarizes one sweep.
type Result struct {
	Stale   []string `json:"stale"`
	Removed int      `json:"removed"`
	// Deleted lists artifact files removed (or, in dry-run, that would be).
	Deleted []string `json:"deleted"`
	// Kept counts stale entries whose artifact class is protected by the policy.
	Kept int `json:"kept"`
	// CaseVariants counts stale keys that only differ by case from an observed path.
	CaseVariants int `json:"case_variants"`
	// Missing counts deletable entries with no artifact on disk.
	Missing int       `json:"missing"`
	Errors  []Failure `json:"errors"`
	DryRun  bool      `json:"dry_run"`
}

// Sweeper removes registry entries whose source disappeared.
type Sweeper struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a sweeper.
func New(cfg Config) *Sweeper {
	if cfg.Rules == nil {
		cfg.Rules = export.DefaultRules()
	}
	if cfg.Output == nil {
		cfg.Output = afero.NewOsFs()
	}
	if cfg.Policy.Actions == nil {
		cfg.Policy = DefaultPolicy(cfg.Policy.AudioPrefix)
	}
	return &Sweeper{cfg: cfg, logger: logger.OrNop(cfg.Logger)}
}

// Stale returns the sorted registry keys not in observed.
func Stale(keys, observed map[string]struct{}) []string {
	var stale []string
	for k := range keys {
		if _, ok := observed[k]; !ok {
			stale = append(stale, k)
		}
	}
	sort.Strings(stale)
	return stale
}

// Sweep must only run after a complete traversal. It deletes allowed artifacts
// of stale entries, then removes the entries from the registry. A stale key
// that differs from an observed path only by case is an older spelling of a
// live source: its entry is removed but its artifact is left alone. Artifact
// deletion errors are collected and never abort the sweep. On cancellation
// the registry is left untouched.
func (s *Sweeper) Sweep(ctx context.Context, reg Registry, observed map[string]struct{}) (*Result, error) {
	res := &Result{DryRun: s.cfg.DryRun}
	res.Stale = Stale(reg.Keys(), observed)

	folded := make(map[string]struct{}, len(observed))
	for p := range observed {
		folded[strings.ToLower(p)] = struct{}{}
	}

	for _, p := range res.Stale {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, live := folded[strings.ToLower(p)]; live {
			res.CaseVariants++
			continue
		}
		s.sweepArtifact(reg, p, res)
	}

	if !s.cfg.DryRun && len(res.Stale) > 0 {
		res.Removed = reg.Remove(res.Stale...)
	}

	s.logger.Info("Consistency sweep finished",
		zap.Int("stale", len(res.Stale)),
		zap.Int("removed", res.Removed),
		zap.Int("case_variants", res.CaseVariants),
		zap.Int("artifacts_deleted", len(res.Deleted)),
		zap.Int("artifacts_kept", res.Kept),
		zap.Int("errors", len(res.Errors)),
		zap.Bool("dry_run", s.cfg.DryRun))
	return res, nil
}

func (s *Sweeper) sweepArtifact(reg Registry, logical string, res *Result) {
	rec, ok := reg.Get(logical)
	if !ok {
		return
	}

	rule, ok := s.cfg.Rules.Resolve(logical, rec.Extension)
	if !ok {
		// Never exported, so there is nothing on disk.
		return
	}
	if !s.cfg.Policy.Allows(rule.Class, logical) {
		res.Kept++
		return
	}

	rel := logical
	if rule.ArtifactExt != "" {
		rel += "." + rule.ArtifactExt
	}
	target, found, err := locate(s.cfg.Output, s.cfg.OutputRoot, filepath.FromSlash(rel))
	if err != nil {
		s.fail(res, logical, err)
		return
	}
	if !found {
		res.Missing++
		return
	}

	if !s.cfg.DryRun {
		if err := s.cfg.Output.Remove(target); err != nil {
			s.fail(res, logical, err)
			return
		}
	}
	res.Deleted = append(res.Deleted, target)
}

func (s *Sweeper) fail(res *Result, logical string, err error) {
	s.logger.Warn("Failed to delete stale artifact",
		zap.String("path", logical),
		zap.Error(err))
	res.Errors = append(res.Errors, Failure{Path: logical, Error: err.Error()})
}
