package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"asset-exporter/core/classify"
	"asset-exporter/core/registry"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceLister []classify.SourceFile

func (l sliceLister) Walk(ctx context.Context, fn func(classify.SourceFile) error) error {
	for _, f := range l {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func newRegistry(t *testing.T, entries map[string]registry.AssetRecord) *registry.Registry {
	t.Helper()
	store := registry.NewFileStore(afero.NewMemMapFs(), "registry")
	label := registry.Label{Version: "5.10", Branch: "live"}
	if entries != nil {
		require.NoError(t, store.Write(context.Background(), label, entries))
	}
	r := registry.New(label, store)
	require.NoError(t, r.Load(context.Background()))
	return r
}

func echoDecoder() Decoder {
	return DecoderFunc(func(_ context.Context, f classify.SourceFile) ([]byte, error) {
		return []byte(f.Path), nil
	})
}

type fixture struct {
	reg  *registry.Registry
	out  afero.Fs
	orch *Orchestrator
}

func newFixture(t *testing.T, entries map[string]registry.AssetRecord, mutate func(*Config)) *fixture {
	t.Helper()
	reg := newRegistry(t, entries)
	out := afero.NewMemMapFs()
	cfg := Config{
		Registry:   reg,
		Classifier: classify.NewClassifier(reg, nil),
		Decoders:   NewDecoderSet().SetDefault(echoDecoder()),
		Rules:      DefaultRules(),
		Policy:     NewPolicy(DefaultNeverExport, nil),
		Output:     out,
		OutputRoot: "out",
		BatchSize:  2,
		Workers:    2,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &fixture{reg: reg, out: out, orch: New(cfg)}
}

func (f *fixture) artifactExists(t *testing.T, rel string) bool {
	t.Helper()
	ok, err := afero.Exists(f.out, filepath.Join("out", filepath.FromSlash(rel)))
	require.NoError(t, err)
	return ok
}

func TestRun_ExportsNewAndChanged(t *testing.T) {
	fx := newFixture(t, map[string]registry.AssetRecord{
		"Content/Same":    {Extension: "uasset", Size: 10},
		"Content/Changed": {Extension: "uasset", Size: 10},
	}, nil)

	report, err := fx.orch.Run(context.Background(), sliceLister{
		{Path: "Content/Same", Extension: "uasset", Size: 10},
		{Path: "Content/Changed", Extension: "uasset", Size: 20},
		{Path: "Content/New", Extension: "umap", Size: 5},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Listed)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 2, report.Exported)
	assert.Equal(t, uint64(25), report.ExportedBytes)
	assert.Len(t, report.Observed, 3)
	assert.False(t, report.Cancelled)

	assert.True(t, fx.artifactExists(t, "Content/Changed.json"))
	assert.True(t, fx.artifactExists(t, "Content/New.json"))
	assert.False(t, fx.artifactExists(t, "Content/Same.json"))

	rec, ok := fx.reg.Get("Content/Changed")
	require.True(t, ok)
	assert.Equal(t, uint64(20), rec.Size)
}

func TestRun_SkipPolicyOrder(t *testing.T) {
	fx := newFixture(t, nil, func(cfg *Config) {
		cfg.Policy = NewPolicy(DefaultNeverExport, []string{"Content/Crashes"})
		cfg.Eligible = func(f classify.SourceFile) bool {
			return f.Path != "Other/Ignored"
		}
	})

	report, err := fx.orch.Run(context.Background(), sliceLister{
		{Path: "Content/Hero", Extension: "uexp", Size: 1},
		{Path: "Other/Ignored", Extension: "uasset", Size: 1},
		{Path: "Content/Crashes", Extension: "uasset", Size: 1},
		{Path: "Content/Readme", Extension: "txt", Size: 1},
		{Path: "Content/Hero", Extension: "uasset", Size: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.NeverExport)
	assert.Equal(t, 1, report.Ineligible)
	assert.Equal(t, 1, report.Excluded)
	assert.Equal(t, 1, report.Unsupported)
	assert.Equal(t, 1, report.Exported)

	assert.NotContains(t, report.Observed, "Other/Ignored")
	assert.Contains(t, report.Observed, "Content/Crashes")
	assert.Contains(t, report.Observed, "Content/Readme")

	// Excluded and unsupported files are still recorded by default.
	_, ok := fx.reg.Get("Content/Crashes")
	assert.True(t, ok)
	_, ok = fx.reg.Get("Other/Ignored")
	assert.False(t, ok)
}

func TestRun_FailureIsolation(t *testing.T) {
	boom := errors.New("boom")
	fx := newFixture(t, nil, func(cfg *Config) {
		cfg.Decoders = NewDecoderSet().SetDefault(DecoderFunc(func(ctx context.Context, f classify.SourceFile) ([]byte, error) {
			switch f.Path {
			case "bad":
				return nil, boom
			case "panics":
				panic("corrupt header")
			}
			return []byte("ok"), nil
		}))
	})

	report, err := fx.orch.Run(context.Background(), sliceLister{
		{Path: "good1", Extension: "uasset", Size: 1},
		{Path: "bad", Extension: "uasset", Size: 1},
		{Path: "panics", Extension: "uasset", Size: 1},
		{Path: "good2", Extension: "uasset", Size: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Exported)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, []string{"bad", "panics"}, report.FailedPaths())
	assert.Contains(t, report.Failures[0].Error, "boom")
	assert.Contains(t, report.Failures[1].Error, "corrupt header")

	// Bookkeeping happened before the decode, so the failure is not retried.
	_, ok := fx.reg.Get("bad")
	assert.True(t, ok)

	again, err := fx.orch.Run(context.Background(), sliceLister{
		{Path: "bad", Extension: "uasset", Size: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, again.Unchanged)
	assert.Zero(t, again.Failed)
}

func TestRun_TransactionalBookkeeping(t *testing.T) {
	fx := newFixture(t, nil, func(cfg *Config) {
		cfg.Transactional = true
		cfg.Policy = NewPolicy(DefaultNeverExport, []string{"excluded"})
		cfg.Decoders = NewDecoderSet().SetDefault(DecoderFunc(func(ctx context.Context, f classify.SourceFile) ([]byte, error) {
			if f.Path == "bad" {
				return nil, errors.New("boom")
			}
			return []byte("ok"), nil
		}))
	})

	files := sliceLister{
		{Path: "good", Extension: "uasset", Size: 1},
		{Path: "bad", Extension: "uasset", Size: 1},
		{Path: "excluded", Extension: "uasset", Size: 1},
	}
	report, err := fx.orch.Run(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Exported)
	assert.Equal(t, 1, report.Failed)

	_, ok := fx.reg.Get("good")
	assert.True(t, ok)
	_, ok = fx.reg.Get("bad")
	assert.False(t, ok)
	_, ok = fx.reg.Get("excluded")
	assert.True(t, ok)

	// The failed file is retried on the next run.
	again, err := fx.orch.Run(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Unchanged)
	assert.Equal(t, 1, again.Failed)
}

func TestRun_ReevaluateDoesNotWriteRegistry(t *testing.T) {
	fx := newFixture(t, map[string]registry.AssetRecord{
		"Config/Game": {Extension: "ini", Size: 3},
	}, func(cfg *Config) {
		reg := cfg.Registry.(*registry.Registry)
		cfg.Classifier = classify.NewClassifier(reg, classify.ExtensionPolicy("ini"))
	})

	report, err := fx.orch.Run(context.Background(), sliceLister{
		{Path: "Config/Game", Extension: "ini", Size: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reevaluated)
	assert.Equal(t, 1, report.Exported)
	assert.Zero(t, fx.reg.Mutations())
	assert.True(t, fx.artifactExists(t, "Config/Game.ini"))
}

func TestRun_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	fx := newFixture(t, nil, func(cfg *Config) {
		cfg.BatchSize = 8
		cfg.Workers = 3
		cfg.Decoders = NewDecoderSet().SetDefault(DecoderFunc(func(ctx context.Context, f classify.SourceFile) ([]byte, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			defer inFlight.Add(-1)
			return []byte("ok"), nil
		}))
	})

	var files sliceLister
	for i := 0; i < 20; i++ {
		files = append(files, classify.SourceFile{Path: fmt.Sprintf("f%02d", i), Extension: "uasset", Size: 1})
	}

	report, err := fx.orch.Run(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 20, report.Exported)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRun_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	fx := newFixture(t, nil, func(cfg *Config) {
		cfg.BatchSize = 1
		cfg.Workers = 1
		cfg.Decoders = NewDecoderSet().SetDefault(DecoderFunc(func(ctx context.Context, f classify.SourceFile) ([]byte, error) {
			once.Do(cancel)
			return []byte("ok"), nil
		}))
	})

	report, err := fx.orch.Run(ctx, sliceLister{
		{Path: "a", Extension: "uasset", Size: 1},
		{Path: "b", Extension: "uasset", Size: 1},
		{Path: "c", Extension: "uasset", Size: 1},
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.True(t, report.Cancelled)
	assert.Equal(t, 1, report.Exported)
	assert.False(t, report.Finished.IsZero())
}

func TestRun_ListingError(t *testing.T) {
	fx := newFixture(t, nil, nil)
	listErr := errors.New("listing broke")

	_, err := fx.orch.Run(context.Background(), listerFunc(func(ctx context.Context, fn func(classify.SourceFile) error) error {
		return listErr
	}))
	require.ErrorIs(t, err, listErr)
}

func TestRun_RequiresClassifier(t *testing.T) {
	orch := New(Config{})
	_, err := orch.Run(context.Background(), sliceLister{})
	assert.Error(t, err)
}

type listerFunc func(ctx context.Context, fn func(classify.SourceFile) error) error

func (f listerFunc) Walk(ctx context.Context, fn func(classify.SourceFile) error) error {
	return f(ctx, fn)
}

func TestExportPaths(t *testing.T) {
	fx := newFixture(t, map[string]registry.AssetRecord{
		"Content/A":   {Extension: "uasset", Size: 1},
		"Content/B":   {Extension: "uasset", Size: 2},
		"Content/Txt": {Extension: "txt", Size: 3},
	}, func(cfg *Config) {
		cfg.Policy = NewPolicy(DefaultNeverExport, []string{"Content/B"})
	})

	report, err := fx.orch.ExportPaths(context.Background(),
		[]string{"Content/A", "Content/B", "Content/Txt", "Content/Missing"}, ForceOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Exported)
	assert.Equal(t, 1, report.Excluded)
	assert.Equal(t, 1, report.Unsupported)
	assert.Equal(t, []string{"Content/Missing"}, report.FailedPaths())
	assert.True(t, fx.artifactExists(t, "Content/A.json"))
	assert.Zero(t, fx.reg.Mutations())
}

func TestExportPaths_SkipExisting(t *testing.T) {
	fx := newFixture(t, map[string]registry.AssetRecord{
		"Content/A": {Extension: "uasset", Size: 1},
		"Content/B": {Extension: "uasset", Size: 2},
	}, nil)
	require.NoError(t, afero.WriteFile(fx.out, filepath.Join("out", "Content", "A.json"), []byte("old"), 0o644))

	report, err := fx.orch.ExportPaths(context.Background(), []string{"Content/A", "Content/B"}, ForceOptions{SkipExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedExisting)
	assert.Equal(t, 1, report.Exported)

	data, err := afero.ReadFile(fx.out, filepath.Join("out", "Content", "A.json"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}
