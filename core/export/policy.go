package export

import "strings"

// DefaultNeverExport lists auxiliary or partial formats that are never
// exported on their own; their data is read through the owning asset.
var DefaultNeverExport = []string{"uexp", "ubulk", "uptnl", "ushaderbytecode", "upipelinecache"}

// Policy holds the fixed exclusion lists.
type Policy struct {
	neverExport      map[string]struct{}
	permanentExclude map[string]struct{}
}

// NewPolicy builds a policy from never-exported extensions and permanently
// excluded logical paths (assets known to crash their decoder).
func NewPolicy(neverExport []string, permanentExclude []string) Policy {
	p := Policy{
		neverExport:      make(map[string]struct{}, len(neverExport)),
		permanentExclude: make(map[string]struct{}, len(permanentExclude)),
	}
	for _, ext := range neverExport {
		p.neverExport[normalizeExt(ext)] = struct{}{}
	}
	for _, path := range permanentExclude {
		path = strings.TrimLeft(strings.ReplaceAll(strings.TrimSpace(path), "\\", "/"), "/")
		if path != "" {
			p.permanentExclude[path] = struct{}{}
		}
	}
	return p
}

// IsNeverExport reports whether files with this extension are skipped outright.
func (p Policy) IsNeverExport(ext string) bool {
	_, ok := p.neverExport[normalizeExt(ext)]
	return ok
}

// IsExcluded reports whether a logical path must never be dispatched.
func (p Policy) IsExcluded(path string) bool {
	_, ok := p.permanentExclude[path]
	return ok
}
