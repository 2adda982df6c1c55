package exporter

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"asset-exporter/core/classify"
	"asset-exporter/core/export"
	"asset-exporter/core/reconcile"
	"asset-exporter/core/registry"
	"asset-exporter/core/sweep"
	"asset-exporter/feature/history"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const planCacheTTL = time.Minute

// Options configures a Service.
type Options struct {
	// Label is the active registry label; Fallback seeds it on first use.
	Label    registry.Label
	Fallback registry.Label
	Store    registry.Store
	// LockDir holds the per-label run lock files. Empty disables locking.
	LockDir string

	Lister     export.Lister
	Decoders   *export.DecoderSet
	Rules      *export.Rules
	Policy     export.Policy
	Output     afero.Fs
	OutputRoot string

	BatchSize     int
	Workers       int
	Transactional bool
	// IncludePrefixes limits eligibility to these logical path prefixes.
	IncludePrefixes []string
	// ReevaluateExtensions are exported on every run even when unchanged.
	ReevaluateExtensions []string
	AudioPrefix          string

	History *history.Recorder
	Logger  *zap.Logger
}

// Service composes the engine for the active label.
type Service struct {
	opts      Options
	registry  *registry.Registry
	baselines *registry.Baselines
	plans     *reconcile.Cache
	scanner   *reconcile.Scanner
	logger    *zap.Logger
}

// NewService creates a new exporter service.
func NewService(opts Options) *Service {
	if opts.Rules == nil {
		opts.Rules = export.DefaultRules()
	}
	if opts.Output == nil {
		opts.Output = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	reg := registry.New(opts.Label, opts.Store,
		registry.WithFallback(opts.Fallback),
		registry.WithLogger(opts.Logger))

	return &Service{
		opts:      opts,
		registry:  reg,
		baselines: registry.NewBaselines(opts.Store),
		plans:     reconcile.NewCache(planCacheTTL),
		scanner: reconcile.NewScanner(reconcile.ScannerConfig{
			Rules:      opts.Rules,
			Policy:     opts.Policy,
			Output:     opts.Output,
			OutputRoot: opts.OutputRoot,
			Logger:     opts.Logger,
		}),
		logger: opts.Logger,
	}
}

// Label returns the active registry label.
func (s *Service) Label() registry.Label {
	return s.opts.Label
}

// Registry returns the active registry.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

func (s *Service) lock() (*registry.RunLock, error) {
	if s.opts.LockDir == "" {
		return nil, nil
	}
	return registry.AcquireRunLock(s.opts.LockDir, s.opts.Label)
}

func (s *Service) orchestrator() *export.Orchestrator {
	var reevaluate func(path, ext string) bool
	if len(s.opts.ReevaluateExtensions) > 0 {
		reevaluate = classify.ExtensionPolicy(s.opts.ReevaluateExtensions...)
	}

	return export.New(export.Config{
		Registry:      s.registry,
		Classifier:    classify.NewClassifier(s.registry, reevaluate),
		Decoders:      s.opts.Decoders,
		Rules:         s.opts.Rules,
		Policy:        s.opts.Policy,
		Output:        s.opts.Output,
		OutputRoot:    s.opts.OutputRoot,
		BatchSize:     s.opts.BatchSize,
		Workers:       s.opts.Workers,
		Transactional: s.opts.Transactional,
		Eligible:      PrefixPredicate(s.opts.IncludePrefixes),
		Logger:        s.logger,
	})
}

// PrefixPredicate accepts paths under any of prefixes, case-insensitively.
// No prefixes accepts everything.
func PrefixPredicate(prefixes []string) func(classify.SourceFile) bool {
	var folded []string
	for _, p := range prefixes {
		p = strings.Trim(strings.ReplaceAll(strings.TrimSpace(p), "\\", "/"), "/")
		if p != "" {
			folded = append(folded, strings.ToLower(p))
		}
	}
	if len(folded) == 0 {
		return nil
	}
	return func(f classify.SourceFile) bool {
		path := strings.ToLower(f.Path)
		for _, p := range folded {
			if path == p || strings.HasPrefix(path, p+"/") {
				return true
			}
		}
		return false
	}
}

// SyncOptions tunes a continuous-sync run.
type SyncOptions struct {
	// SweepDryRun reports stale entries without removing them.
	SweepDryRun bool
}

// SyncResult is the outcome of a continuous-sync run.
type SyncResult struct {
	Label  string         `json:"label"`
	Report *export.Report `json:"report"`
	Sweep  *sweep.Result  `json:"sweep,omitempty"`
	Saved  bool           `json:"saved"`
}

// Sync runs one continuous-sync pass: export, sweep, then a single save.
// A cancelled or failed traversal skips both the sweep and the save, so the
// registry on disk still reflects the previous run.
func (s *Service) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	lock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	if err := s.registry.Load(ctx); err != nil {
		return nil, err
	}

	if s.opts.Lister == nil {
		return nil, errors.New("no source listing configured")
	}

	res := &SyncResult{Label: s.opts.Label.String()}
	report, runErr := s.orchestrator().Run(ctx, s.opts.Lister)
	res.Report = report

	if runErr == nil {
		res.Sweep, runErr = sweep.New(sweep.Config{
			Rules:      s.opts.Rules,
			Policy:     sweep.DefaultPolicy(s.opts.AudioPrefix),
			Output:     s.opts.Output,
			OutputRoot: s.opts.OutputRoot,
			DryRun:     opts.SweepDryRun,
			Logger:     s.logger,
		}).Sweep(ctx, s.registry, report.Observed)
	}

	if runErr == nil {
		if runErr = s.registry.Save(ctx); runErr == nil {
			res.Saved = true
		}
	}

	s.plans.Invalidate(s.opts.Label.Key())
	s.record(ctx, history.KindExport, report, res.Sweep, runErr)

	if runErr != nil {
		return res, runErr
	}

	s.logger.Info("Sync finished",
		zap.String("label", res.Label),
		zap.Int("exported", report.Exported),
		zap.Int("failed", report.Failed),
		zap.Int("unchanged", report.Unchanged),
		zap.Duration("duration", report.Duration()))
	return res, nil
}

// DiffOptions tunes a cross-version diff.
type DiffOptions struct {
	// Export force-exports the change set, skipping paths whose artifact exists.
	Export bool
}

// DiffResult is the outcome of a cross-version diff.
type DiffResult struct {
	Base     string         `json:"base"`
	Current  string         `json:"current"`
	New      []string       `json:"new"`
	Modified []string       `json:"modified"`
	Report   *export.Report `json:"report,omitempty"`
}

// Diff compares the active registry with the baseline label. A missing
// baseline is an error wrapping registry.ErrBaselineNotFound.
func (s *Service) Diff(ctx context.Context, base registry.Label, opts DiffOptions) (*DiffResult, error) {
	baseline, err := s.baselines.Get(ctx, base)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Load(ctx); err != nil {
		return nil, err
	}

	cs := classify.Diff(s.registry, baseline)
	res := &DiffResult{
		Base:     base.String(),
		Current:  s.opts.Label.String(),
		New:      sortedKeys(cs.New),
		Modified: sortedKeys(cs.Modified),
	}
	if !opts.Export || cs.Len() == 0 {
		return res, nil
	}

	report, err := s.orchestrator().ExportPaths(ctx, cs.Paths(), export.ForceOptions{SkipExisting: true})
	res.Report = report
	s.record(ctx, history.KindDiff, report, nil, err)
	if err != nil {
		return res, err
	}
	s.plans.Invalidate(s.opts.Label.Key())
	return res, nil
}

// ReconcilePlan returns the cached reconcile plan of the active label.
func (s *Service) ReconcilePlan(ctx context.Context) (*reconcile.ReconcilePlan, error) {
	if err := s.registry.Load(ctx); err != nil {
		return nil, err
	}
	return s.plans.GetOrBuild(ctx, s.opts.Label.Key(), func(ctx context.Context) (*reconcile.ReconcilePlan, error) {
		return s.scanner.Plan(ctx, s.registry)
	})
}

// Reconcile scans for missing artifacts and, when confirmed, re-exports them.
func (s *Service) Reconcile(ctx context.Context, opts reconcile.ReconcileOptions) (*reconcile.ReconcilePlan, *export.Report, error) {
	apply := opts.Confirmed && !opts.DryRun
	if apply {
		lock, err := s.lock()
		if err != nil {
			return nil, nil, err
		}
		defer lock.Release()
	}

	if err := s.registry.Load(ctx); err != nil {
		return nil, nil, err
	}

	plan, report, err := reconcile.ReconcileAndApply(ctx, s.scanner, s.registry, s.orchestrator(), opts)
	if report != nil {
		s.plans.Invalidate(s.opts.Label.Key())
		s.record(ctx, history.KindReconcile, report, nil, err)
	}
	return plan, report, err
}

// Stats summarizes the active registry.
type Stats struct {
	Label       string         `json:"label"`
	Entries     int            `json:"entries"`
	TotalBytes  uint64         `json:"total_bytes"`
	ByExtension map[string]int `json:"by_extension"`
}

// Stats returns registry statistics for the active label.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	if err := s.registry.Load(ctx); err != nil {
		return nil, err
	}

	stats := &Stats{
		Label:       s.opts.Label.String(),
		ByExtension: make(map[string]int),
	}
	for _, rec := range s.registry.Snapshot() {
		stats.Entries++
		stats.TotalBytes += rec.Size
		stats.ByExtension[rec.Extension]++
	}
	return stats, nil
}

// Entry returns the registry record of one logical path.
func (s *Service) Entry(ctx context.Context, path string) (registry.AssetRecord, bool, error) {
	if err := s.registry.Load(ctx); err != nil {
		return registry.AssetRecord{}, false, err
	}
	logical := strings.TrimLeft(strings.ReplaceAll(path, "\\", "/"), "/")
	rec, ok := s.registry.Get(logical)
	return rec, ok, nil
}

// Runs returns recent run history.
func (s *Service) Runs(ctx context.Context, limit int) ([]history.Run, error) {
	return s.opts.History.Recent(ctx, limit)
}

func (s *Service) record(ctx context.Context, kind string, report *export.Report, swept *sweep.Result, runErr error) {
	if report == nil || !s.opts.History.Enabled() {
		return
	}

	run := &history.Run{
		Kind:       kind,
		Version:    s.opts.Label.Version,
		Branch:     s.opts.Label.Branch,
		StartedAt:  report.Started,
		FinishedAt: report.Finished,
		Listed:     report.Listed,
		Exported:   report.Exported,
		Failed:     report.Failed,
		Unchanged:  report.Unchanged,
		Cancelled:  report.Cancelled,
	}
	if swept != nil {
		run.Removed = swept.Removed
	}
	if runErr != nil {
		run.Error = truncate(runErr.Error(), 1024)
	}

	// Recorded even when the run itself was cancelled.
	if err := s.opts.History.Record(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("Failed to record run history", zap.Error(err))
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ParseLabel builds a label from query or flag values.
func ParseLabel(version, branch string) (registry.Label, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return registry.Label{}, errors.New("version is required")
	}
	return registry.Label{Version: version, Branch: strings.TrimSpace(branch)}, nil
}
