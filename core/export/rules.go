package export

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Class groups artifacts by how safely they map back to a single source file.
type Class string

const (
	// ClassData covers structured exports (data tables, localization, config).
	ClassData Class = "data"
	// ClassAudio covers unpacked audio banks and streamed audio.
	ClassAudio Class = "audio"
	// ClassTexture covers decoded images.
	ClassTexture Class = "texture"
	// ClassMesh covers decoded models.
	ClassMesh Class = "mesh"
	// ClassOther covers everything else.
	ClassOther Class = "other"
)

// Rule maps a source extension to its artifact extension and class.
type Rule struct {
	SourceExt   string `json:"source_ext"`
	ArtifactExt string `json:"artifact_ext"`
	Class       Class  `json:"class"`
}

// ContentRule reclassifies files of one source extension by where they live or
// how they are named. Container formats such as uasset hold data tables,
// meshes and textures alike, so the extension alone does not decide the class.
type ContentRule struct {
	SourceExt string `json:"source_ext"`
	// Dir matches when any directory segment of the logical path equals it.
	Dir string `json:"dir,omitempty"`
	// NamePrefix matches the start of the base name.
	NamePrefix string `json:"name_prefix,omitempty"`
	Class      Class  `json:"class"`
}

func (c ContentRule) matches(logical string) bool {
	if c.Dir == "" && c.NamePrefix == "" {
		return false
	}
	logical = strings.ReplaceAll(logical, "\\", "/")
	if c.NamePrefix != "" {
		base := strings.ToLower(path.Base(logical))
		if !strings.HasPrefix(base, strings.ToLower(c.NamePrefix)) {
			return false
		}
	}
	if c.Dir != "" {
		dir := strings.ToLower(strings.Trim(c.Dir, "/"))
		segments := strings.Split(strings.ToLower(path.Dir(logical)), "/")
		found := false
		for _, seg := range segments {
			if seg == dir {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Rules is the extension remap table. The orchestrator, the sweep and the
// reconciliation scanner must share one instance so that "what was exported"
// and "what should exist" never drift apart.
type Rules struct {
	bySource map[string]Rule
	content  []ContentRule
}

// NewRules builds a remap table. Later rules for the same source extension win.
func NewRules(rules ...Rule) *Rules {
	r := &Rules{bySource: make(map[string]Rule, len(rules))}
	for _, rule := range rules {
		rule.SourceExt = normalizeExt(rule.SourceExt)
		rule.ArtifactExt = normalizeExt(rule.ArtifactExt)
		if rule.Class == "" {
			rule.Class = ClassOther
		}
		r.bySource[rule.SourceExt] = rule
	}
	return r
}

// DefaultRules returns the remap table for an Unreal-style asset tree.
func DefaultRules() *Rules {
	return NewRules(
		Rule{SourceExt: "uasset", ArtifactExt: "json", Class: ClassData},
		Rule{SourceExt: "umap", ArtifactExt: "json", Class: ClassData},
		Rule{SourceExt: "locres", ArtifactExt: "json", Class: ClassData},
		Rule{SourceExt: "locmeta", ArtifactExt: "json", Class: ClassData},
		Rule{SourceExt: "json", ArtifactExt: "json", Class: ClassData},
		Rule{SourceExt: "ini", ArtifactExt: "ini", Class: ClassData},
		Rule{SourceExt: "csv", ArtifactExt: "csv", Class: ClassData},
		Rule{SourceExt: "bnk", ArtifactExt: "bnk", Class: ClassAudio},
		Rule{SourceExt: "wem", ArtifactExt: "wem", Class: ClassAudio},
		Rule{SourceExt: "png", ArtifactExt: "png", Class: ClassTexture},
		Rule{SourceExt: "tga", ArtifactExt: "tga", Class: ClassTexture},
		Rule{SourceExt: "fbx", ArtifactExt: "fbx", Class: ClassMesh},
		Rule{SourceExt: "glb", ArtifactExt: "glb", Class: ClassMesh},
	).Override(DefaultContentRules()...)
}

// DefaultContentRules follows the Unreal naming conventions for packages
// holding meshes and textures. Name prefixes are checked before folders.
func DefaultContentRules() []ContentRule {
	return []ContentRule{
		{SourceExt: "uasset", NamePrefix: "SM_", Class: ClassMesh},
		{SourceExt: "uasset", NamePrefix: "SK_", Class: ClassMesh},
		{SourceExt: "uasset", NamePrefix: "T_", Class: ClassTexture},
		{SourceExt: "uasset", Dir: "Meshes", Class: ClassMesh},
		{SourceExt: "uasset", Dir: "Textures", Class: ClassTexture},
	}
}

// Override adds content rules ahead of the existing ones, so they take
// precedence. It returns r for chaining.
func (r *Rules) Override(rules ...ContentRule) *Rules {
	added := make([]ContentRule, 0, len(rules)+len(r.content))
	for _, c := range rules {
		c.SourceExt = normalizeExt(c.SourceExt)
		if c.Class == "" {
			c.Class = ClassOther
		}
		added = append(added, c)
	}
	r.content = append(added, r.content...)
	return r
}

// Content returns the content rules in evaluation order.
func (r *Rules) Content() []ContentRule {
	return append([]ContentRule(nil), r.content...)
}

// Resolve returns the rule for one logical path: the extension rule with its
// class replaced by the first matching content rule.
func (r *Rules) Resolve(logical, sourceExt string) (Rule, bool) {
	rule, ok := r.Lookup(sourceExt)
	if !ok {
		return Rule{}, false
	}
	for _, c := range r.content {
		if c.SourceExt == rule.SourceExt && c.matches(logical) {
			rule.Class = c.Class
			break
		}
	}
	return rule, true
}

// ParseContentRules parses "<ext>:dir:<name>=<class>" and
// "<ext>:prefix:<name>=<class>" items.
func ParseContentRules(items []string) ([]ContentRule, error) {
	out := make([]ContentRule, 0, len(items))
	for _, item := range items {
		lhs, class, ok := strings.Cut(strings.TrimSpace(item), "=")
		parts := strings.SplitN(lhs, ":", 3)
		if !ok || len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("invalid content rule %q", item)
		}

		c := ContentRule{SourceExt: parts[0], Class: Class(strings.ToLower(strings.TrimSpace(class)))}
		switch c.Class {
		case ClassData, ClassAudio, ClassTexture, ClassMesh, ClassOther:
		default:
			return nil, fmt.Errorf("invalid content rule %q: unknown class %q", item, class)
		}
		switch strings.ToLower(parts[1]) {
		case "dir":
			c.Dir = parts[2]
		case "prefix":
			c.NamePrefix = parts[2]
		default:
			return nil, fmt.Errorf("invalid content rule %q: unknown matcher %q", item, parts[1])
		}
		out = append(out, c)
	}
	return out, nil
}

// Lookup returns the rule for a source extension with the extension's default
// class. Use Resolve when the logical path is known.
func (r *Rules) Lookup(sourceExt string) (Rule, bool) {
	rule, ok := r.bySource[normalizeExt(sourceExt)]
	return rule, ok
}

// Accepts reports whether the source extension has a rule.
func (r *Rules) Accepts(sourceExt string) bool {
	_, ok := r.Lookup(sourceExt)
	return ok
}

// All returns the rules sorted by source extension.
func (r *Rules) All() []Rule {
	out := make([]Rule, 0, len(r.bySource))
	for _, rule := range r.bySource {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceExt < out[j].SourceExt })
	return out
}

// ArtifactPath returns the deterministic output path of a logical path.
func (r *Rules) ArtifactPath(root, logical, sourceExt string) (string, bool) {
	rule, ok := r.Resolve(logical, sourceExt)
	if !ok {
		return "", false
	}
	return ArtifactPath(root, logical, rule), true
}

// ArtifactPath joins root, the logical path and the rule's artifact extension.
func ArtifactPath(root, logical string, rule Rule) string {
	p := filepath.Join(root, filepath.FromSlash(logical))
	if rule.ArtifactExt == "" {
		return p
	}
	return p + "." + rule.ArtifactExt
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
