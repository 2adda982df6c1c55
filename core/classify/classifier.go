package classify

import (
	"asset-exporter/core/registry"
)

// SourceFile is one entry of the source listing.
type SourceFile struct {
	// Path is the logical path (extension stripped).
	Path string
	// Extension is the lowercase source extension without the dot.
	Extension string
	// Size is the file size in bytes.
	Size uint64
	// Source is the location as listed (object key, or path relative to the
	// listing root) with its original casing. It is empty for files rebuilt
	// from registry records.
	Source string
}

// Decision is the outcome of classifying one source file.
//
// Changed drives registry bookkeeping and is true for new files and size
// changes. Reevaluate is set by the always-reevaluate policy and only widens
// export eligibility; it never causes a registry write.
type Decision struct {
	Changed    bool
	New        bool
	Reevaluate bool
}

// Eligible reports whether the file should be exported.
func (d Decision) Eligible() bool {
	return d.Changed || d.Reevaluate
}

// Writer is the subset of the active registry the classifier mutates.
type Writer interface {
	registry.Reader
	Upsert(path, extension string, size uint64)
}

// Classifier implements continuous-sync change detection against one registry.
type Classifier struct {
	registry         Writer
	alwaysReevaluate func(path, extension string) bool
}

// NewClassifier creates a classifier. alwaysReevaluate may be nil.
func NewClassifier(reg Writer, alwaysReevaluate func(path, extension string) bool) *Classifier {
	return &Classifier{
		registry:         reg,
		alwaysReevaluate: alwaysReevaluate,
	}
}

// Classify compares f with its registry record and records it when changed.
func (c *Classifier) Classify(f SourceFile) Decision {
	d := c.Peek(f)
	if d.Changed {
		c.registry.Upsert(f.Path, f.Extension, f.Size)
	}
	return d
}

// Peek computes the same decision as Classify without touching the registry.
func (c *Classifier) Peek(f SourceFile) Decision {
	existing, ok := c.registry.Get(f.Path)
	d := Decision{
		New:     !ok,
		Changed: !ok || existing.Size != f.Size,
	}
	if c.alwaysReevaluate != nil && c.alwaysReevaluate(f.Path, f.Extension) {
		d.Reevaluate = true
	}
	return d
}

// Commit records f in the registry. It is used when bookkeeping is deferred
// until the export succeeded.
func (c *Classifier) Commit(f SourceFile) {
	c.registry.Upsert(f.Path, f.Extension, f.Size)
}

// ExtensionPolicy returns an always-reevaluate predicate matching extensions.
func ExtensionPolicy(extensions ...string) func(path, extension string) bool {
	set := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		set[normalizeExt(e)] = struct{}{}
	}
	return func(_ string, extension string) bool {
		_, ok := set[normalizeExt(extension)]
		return ok
	}
}
