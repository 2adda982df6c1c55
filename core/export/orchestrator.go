package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"asset-exporter/core/classify"
	"asset-exporter/core/logger"
	"asset-exporter/core/registry"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize = 500
	defaultWorkers   = 4
)

// ErrUnknownPath is returned for forced exports of paths missing from the registry.
var ErrUnknownPath = errors.New("path not in registry")

// Config wires an Orchestrator.
type Config struct {
	// Registry resolves extensions and sizes for forced exports.
	Registry registry.Reader
	// Classifier decides eligibility in continuous-sync runs.
	Classifier *classify.Classifier
	Decoders   *DecoderSet
	Rules      *Rules
	Policy     Policy
	// Output is the filesystem artifacts are written to, under OutputRoot.
	Output     afero.Fs
	OutputRoot string
	// BatchSize bounds how many files are held and decoded per batch.
	BatchSize int
	// Workers bounds concurrent decodes within a batch.
	Workers int
	// Transactional defers the registry write until the decode succeeded.
	// When false a failed decode still leaves the asset recorded as seen.
	Transactional bool
	// Eligible is the opaque directory/extension predicate. Nil accepts all.
	Eligible func(classify.SourceFile) bool
	Logger   *zap.Logger
}

// Orchestrator turns "this path needs processing" into decoder calls.
type Orchestrator struct {
	cfg    Config
	logger *zap.Logger
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}
	if cfg.Decoders == nil {
		cfg.Decoders = NewDecoderSet()
	}
	if cfg.Output == nil {
		cfg.Output = afero.NewOsFs()
	}
	return &Orchestrator{cfg: cfg, logger: logger.OrNop(cfg.Logger)}
}

// Rules returns the remap table in use.
func (o *Orchestrator) Rules() *Rules {
	return o.cfg.Rules
}

type job struct {
	file   classify.SourceFile
	rule   Rule
	commit bool
}

// Run walks the source listing in continuous-sync mode and exports every
// eligible file. On cancellation it returns the partial report together with
// the context error; registry writes already applied stay in memory.
func (o *Orchestrator) Run(ctx context.Context, lister Lister) (*Report, error) {
	if o.cfg.Classifier == nil {
		return nil, errors.New("export run requires a classifier")
	}

	report := newReport()
	batch := make([]job, 0, o.cfg.BatchSize)

	walkErr := lister.Walk(ctx, func(f classify.SourceFile) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.update(func(r *Report) { r.Listed++ })

		j, ok := o.admit(f, report)
		if !ok {
			return nil
		}

		batch = append(batch, j)
		if len(batch) >= o.cfg.BatchSize {
			o.runBatch(ctx, batch, report)
			batch = batch[:0]
		}
		return ctx.Err()
	})

	if walkErr == nil && len(batch) > 0 {
		o.runBatch(ctx, batch, report)
	}

	return o.complete(ctx, report, walkErr)
}

// admit applies the skip policy to one listed file in the order: never-export
// extensions, eligibility predicate, classification, permanent exclusions.
func (o *Orchestrator) admit(f classify.SourceFile, report *Report) (job, bool) {
	if o.cfg.Policy.IsNeverExport(f.Extension) {
		report.update(func(r *Report) { r.NeverExport++ })
		return job{}, false
	}
	if o.cfg.Eligible != nil && !o.cfg.Eligible(f) {
		report.update(func(r *Report) { r.Ineligible++ })
		return job{}, false
	}

	report.update(func(r *Report) { r.Observed[f.Path] = struct{}{} })

	var d classify.Decision
	if o.cfg.Transactional {
		d = o.cfg.Classifier.Peek(f)
	} else {
		d = o.cfg.Classifier.Classify(f)
	}

	if !d.Eligible() {
		report.update(func(r *Report) { r.Unchanged++ })
		return job{}, false
	}
	if !d.Changed {
		report.update(func(r *Report) { r.Reevaluated++ })
	}

	// Files that will never be decoded are still recorded in transactional
	// mode, otherwise they would be reported as changed on every run.
	commit := o.cfg.Transactional && d.Changed

	if o.cfg.Policy.IsExcluded(f.Path) {
		if commit {
			o.cfg.Classifier.Commit(f)
		}
		report.update(func(r *Report) { r.Excluded++ })
		return job{}, false
	}

	rule, ok := o.cfg.Rules.Resolve(f.Path, f.Extension)
	if !ok {
		if commit {
			o.cfg.Classifier.Commit(f)
		}
		report.update(func(r *Report) { r.Unsupported++ })
		return job{}, false
	}

	return job{file: f, rule: rule, commit: commit}, true
}

// ForceOptions tunes ExportPaths.
type ForceOptions struct {
	// SkipExisting skips paths whose artifact already exists on disk.
	SkipExisting bool
}

// ExportPaths exports the given logical paths unconditionally, bypassing
// classification. Extensions come from the registry. Permanent exclusions
// still apply. The registry is never written.
func (o *Orchestrator) ExportPaths(ctx context.Context, paths []string, opts ForceOptions) (*Report, error) {
	if o.cfg.Registry == nil {
		return nil, errors.New("forced export requires a registry")
	}

	report := newReport()
	batch := make([]job, 0, o.cfg.BatchSize)

	var err error
	for _, p := range paths {
		if err = ctx.Err(); err != nil {
			break
		}
		report.update(func(r *Report) { r.Listed++ })

		rec, ok := o.cfg.Registry.Get(p)
		if !ok {
			report.fail(p, ErrUnknownPath)
			continue
		}
		if o.cfg.Policy.IsExcluded(p) {
			report.update(func(r *Report) { r.Excluded++ })
			continue
		}
		rule, ok := o.cfg.Rules.Resolve(p, rec.Extension)
		if !ok {
			report.update(func(r *Report) { r.Unsupported++ })
			continue
		}
		if opts.SkipExisting {
			exists, statErr := afero.Exists(o.cfg.Output, ArtifactPath(o.cfg.OutputRoot, p, rule))
			if statErr == nil && exists {
				report.update(func(r *Report) { r.SkippedExisting++ })
				continue
			}
		}

		batch = append(batch, job{
			file: classify.SourceFile{Path: p, Extension: rec.Extension, Size: rec.Size},
			rule: rule,
		})
		if len(batch) >= o.cfg.BatchSize {
			o.runBatch(ctx, batch, report)
			batch = batch[:0]
		}
	}

	if err == nil && len(batch) > 0 {
		o.runBatch(ctx, batch, report)
	}

	return o.complete(ctx, report, err)
}

func (o *Orchestrator) complete(ctx context.Context, report *Report, err error) (*Report, error) {
	if err == nil {
		err = ctx.Err()
	}
	cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	report.finish(cancelled)

	switch {
	case err == nil:
		return report, nil
	case cancelled:
		o.logger.Warn("Export cancelled",
			zap.Int("exported", report.Exported),
			zap.Int("failed", report.Failed))
		return report, err
	default:
		return report, fmt.Errorf("source listing failed: %w", err)
	}
}

// runBatch decodes one batch with bounded concurrency and waits for it.
// Failures are recorded per file and never abort the batch.
func (o *Orchestrator) runBatch(ctx context.Context, batch []job, report *Report) {
	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)

	for _, j := range batch {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := o.exportOne(ctx, j); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				o.logger.Error("Export failed",
					zap.String("path", j.file.Path),
					zap.String("extension", j.file.Extension),
					zap.Error(err))
				report.fail(j.file.Path, err)
				return nil
			}
			report.update(func(r *Report) {
				r.Exported++
				r.ExportedBytes += j.file.Size
			})
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) exportOne(ctx context.Context, j job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("decoder panic: %v", rec)
		}
	}()

	dec, err := o.cfg.Decoders.For(j.file.Extension)
	if err != nil {
		return err
	}

	data, err := dec.Decode(ctx, j.file)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	target := ArtifactPath(o.cfg.OutputRoot, j.file.Path, j.rule)
	if err := o.cfg.Output.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := afero.WriteFile(o.cfg.Output, target, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}

	if j.commit {
		o.cfg.Classifier.Commit(j.file)
	}
	return nil
}
