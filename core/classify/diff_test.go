package classify

import (
	"testing"

	"asset-exporter/core/registry"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	a := registry.NewBaseline(registry.Label{Version: "6.00"}, map[string]registry.AssetRecord{
		"same":     {Extension: "uasset", Size: 10},
		"grown":    {Extension: "uasset", Size: 20},
		"brandnew": {Extension: "locres", Size: 5},
	})
	b := registry.NewBaseline(registry.Label{Version: "5.10"}, map[string]registry.AssetRecord{
		"same":    {Extension: "uasset", Size: 10},
		"grown":   {Extension: "uasset", Size: 15},
		"removed": {Extension: "uasset", Size: 1},
	})

	cs := Diff(a, b)
	assert.Equal(t, map[string]struct{}{"brandnew": {}}, cs.New)
	assert.Equal(t, map[string]struct{}{"grown": {}}, cs.Modified)
	assert.Equal(t, []string{"brandnew", "grown"}, cs.Paths())
	assert.Equal(t, 2, cs.Len())
}

func TestDiff_Asymmetry(t *testing.T) {
	a := registry.NewBaseline(registry.Label{Version: "a"}, map[string]registry.AssetRecord{
		"p1": {Size: 1}, "p2": {Size: 2}, "p3": {Size: 3}, "p4": {Size: 4},
	})
	b := registry.NewBaseline(registry.Label{Version: "b"}, map[string]registry.AssetRecord{
		"p2": {Size: 2}, "p3": {Size: 30}, "only-b": {Size: 9},
	})

	cs := Diff(a, b)
	for p := range cs.New {
		_, inModified := cs.Modified[p]
		assert.False(t, inModified, "%s in both sets", p)
	}
	assert.NotContains(t, cs.New, "only-b")
	assert.NotContains(t, cs.Modified, "only-b")
}

func TestDiff_EmptyBaseline(t *testing.T) {
	a := registry.NewBaseline(registry.Label{Version: "a"}, map[string]registry.AssetRecord{
		"p1": {Size: 1},
	})
	cs := Diff(a, registry.NewBaseline(registry.Label{Version: "b"}, nil))
	assert.Len(t, cs.New, 1)
	assert.Empty(t, cs.Modified)
}
