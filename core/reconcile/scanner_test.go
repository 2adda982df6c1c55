package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"asset-exporter/core/classify"
	"asset-exporter/core/export"
	"asset-exporter/core/registry"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, entries map[string]registry.AssetRecord) *registry.Registry {
	t.Helper()
	store := registry.NewFileStore(afero.NewMemMapFs(), "registry")
	label := registry.Label{Version: "5.10", Branch: "live"}
	require.NoError(t, store.Write(context.Background(), label, entries))
	r := registry.New(label, store)
	require.NoError(t, r.Load(context.Background()))
	return r
}

func touch(t *testing.T, fs afero.Fs, rel string) {
	t.Helper()
	p := filepath.Join("out", filepath.FromSlash(rel))
	require.NoError(t, fs.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, afero.WriteFile(fs, p, []byte("x"), 0o644))
}

type fixture struct {
	reg     *registry.Registry
	out     afero.Fs
	rules   *export.Rules
	policy  export.Policy
	scanner *Scanner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := newRegistry(t, map[string]registry.AssetRecord{
		"Content/Present":  {Extension: "uasset", Size: 1},
		"Content/Missing":  {Extension: "uasset", Size: 2},
		"Content/Audio":    {Extension: "wem", Size: 3},
		"Content/Readme":   {Extension: "txt", Size: 4},
		"Content/Excluded": {Extension: "uasset", Size: 5},
	})
	out := afero.NewMemMapFs()
	touch(t, out, "Content/Present.json")

	rules := export.DefaultRules()
	policy := export.NewPolicy(export.DefaultNeverExport, []string{"Content/Excluded"})
	return &fixture{
		reg:    reg,
		out:    out,
		rules:  rules,
		policy: policy,
		scanner: NewScanner(ScannerConfig{
			Rules:      rules,
			Policy:     policy,
			Output:     out,
			OutputRoot: "out",
		}),
	}
}

func TestScan(t *testing.T) {
	fx := newFixture(t)

	missing, err := fx.scanner.Scan(context.Background(), fx.reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Content/Audio", "Content/Missing"}, missing)
	assert.Zero(t, fx.reg.Mutations())
}

func TestScan_Soundness(t *testing.T) {
	fx := newFixture(t)

	plan, err := fx.scanner.Plan(context.Background(), fx.reg)
	require.NoError(t, err)

	flagged := make(map[string]struct{})
	for _, p := range plan.Missing {
		flagged[p] = struct{}{}
	}

	for p, rec := range fx.reg.Snapshot() {
		rule, supported := fx.rules.Lookup(rec.Extension)
		if _, ok := flagged[p]; ok {
			exists, _ := afero.Exists(fx.out, export.ArtifactPath("out", p, rule))
			assert.False(t, exists, p)
			continue
		}
		if !supported || fx.policy.IsExcluded(p) {
			continue
		}
		exists, _ := afero.Exists(fx.out, export.ArtifactPath("out", p, rule))
		assert.True(t, exists, p)
	}

	assert.Equal(t, PlanSummary{
		TotalEntries:  5,
		Unsupported:   1,
		Excluded:      1,
		Present:       1,
		Missing:       2,
		ExportActions: 2,
	}, plan.Summary)
	assert.Equal(t, filepath.Join("out", "Content", "Audio.wem"), plan.Actions[0].Expected)
}

func TestScan_Cancelled(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.scanner.Scan(ctx, fx.reg)
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingExporter struct {
	paths []string
	err   error
}

func (e *recordingExporter) ExportPaths(ctx context.Context, paths []string, opts export.ForceOptions) (*export.Report, error) {
	e.paths = append(e.paths, paths...)
	return &export.Report{Exported: len(paths)}, e.err
}

func TestApplyPlan_RequiresConfirmation(t *testing.T) {
	plan := &ReconcilePlan{Actions: []Action{{Type: ActionExport, Key: "a"}}}

	tests := []struct {
		name    string
		opts    ReconcileOptions
		applied bool
	}{
		{name: "Not confirmed", opts: ReconcileOptions{}, applied: false},
		{name: "Dry run", opts: ReconcileOptions{Confirmed: true, DryRun: true}, applied: false},
		{name: "Confirmed", opts: ReconcileOptions{Confirmed: true}, applied: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := &recordingExporter{}
			report, err := ApplyPlan(context.Background(), exp, plan, tt.opts)
			require.NoError(t, err)
			if tt.applied {
				require.NotNil(t, report)
				assert.Equal(t, []string{"a"}, exp.paths)
			} else {
				assert.Nil(t, report)
				assert.Empty(t, exp.paths)
			}
		})
	}
}

func TestReconcileAndApply_RepairsMissing(t *testing.T) {
	fx := newFixture(t)
	orch := export.New(export.Config{
		Registry: fx.reg,
		Decoders: export.NewDecoderSet().SetDefault(export.DecoderFunc(func(ctx context.Context, f classify.SourceFile) ([]byte, error) {
			return []byte("repaired"), nil
		})),
		Rules:      fx.rules,
		Policy:     fx.policy,
		Output:     fx.out,
		OutputRoot: "out",
	})

	plan, report, err := ReconcileAndApply(context.Background(), fx.scanner, fx.reg, orch, ReconcileOptions{Confirmed: true})
	require.NoError(t, err)
	assert.Len(t, plan.Missing, 2)
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Exported)

	missing, err := fx.scanner.Scan(context.Background(), fx.reg)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestApplyPlan_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	plan := &ReconcilePlan{Actions: []Action{{Type: ActionExport, Key: "a"}}}

	_, err := ApplyPlan(context.Background(), &recordingExporter{err: boom}, plan, ReconcileOptions{Confirmed: true})
	assert.ErrorIs(t, err, boom)
}

func TestCache_GetOrBuild(t *testing.T) {
	var builds atomic.Int32
	build := func(ctx context.Context) (*ReconcilePlan, error) {
		builds.Add(1)
		return &ReconcilePlan{Missing: []string{"a"}}, nil
	}

	c := NewCache(time.Minute)
	first, err := c.GetOrBuild(context.Background(), "5.10_live", build)
	require.NoError(t, err)
	second, err := c.GetOrBuild(context.Background(), "5.10_live", build)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), builds.Load())

	c.Invalidate("5.10_live")
	_, err = c.GetOrBuild(context.Background(), "5.10_live", build)
	require.NoError(t, err)
	assert.Equal(t, int32(2), builds.Load())
}

func TestCache_ZeroTTLDisablesCaching(t *testing.T) {
	var builds atomic.Int32
	build := func(ctx context.Context) (*ReconcilePlan, error) {
		builds.Add(1)
		return &ReconcilePlan{}, nil
	}

	c := NewCache(0)
	for i := 0; i < 3; i++ {
		_, err := c.GetOrBuild(context.Background(), "k", build)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), builds.Load())
}

func TestCache_BuildError(t *testing.T) {
	boom := errors.New("boom")
	c := NewCache(time.Minute)
	_, err := c.GetOrBuild(context.Background(), "k", func(ctx context.Context) (*ReconcilePlan, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}
