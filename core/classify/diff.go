package classify

import (
	"sort"
	"strings"

	"asset-exporter/core/registry"
)

// ChangeSet is the result of comparing two registries. It has no removed
// set; removals are the consistency sweep's concern.
type ChangeSet struct {
	New      map[string]struct{}
	Modified map[string]struct{}
}

// Len returns the number of paths in both sets.
func (c ChangeSet) Len() int {
	return len(c.New) + len(c.Modified)
}

// Paths returns New and Modified as one sorted slice.
func (c ChangeSet) Paths() []string {
	out := make([]string, 0, c.Len())
	for p := range c.New {
		out = append(out, p)
	}
	for p := range c.Modified {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Diff compares registry a against baseline b.
//
//	New      = paths in a that are absent from b
//	Modified = paths in both whose sizes differ
//
// Paths only present in b appear in neither set.
func Diff(a, b registry.Reader) ChangeSet {
	cs := ChangeSet{
		New:      make(map[string]struct{}),
		Modified: make(map[string]struct{}),
	}
	for p := range a.Keys() {
		ra, ok := a.Get(p)
		if !ok {
			continue
		}
		rb, ok := b.Get(p)
		switch {
		case !ok:
			cs.New[p] = struct{}{}
		case ra.Size != rb.Size:
			cs.Modified[p] = struct{}{}
		}
	}
	return cs
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
