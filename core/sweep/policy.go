package sweep

import (
	"strings"

	"asset-exporter/core/export"
)

// Action is what the sweep does with the artifact of a stale entry.
type Action string

const (
	// Keep leaves the artifact on disk.
	Keep Action = "keep"
	// Delete removes the artifact.
	Delete Action = "delete"
	// DeleteUnderPrefix removes the artifact only inside Policy.AudioPrefix.
	DeleteUnderPrefix Action = "delete_under_prefix"
)

// Policy maps artifact classes to sweep actions. Registry entries are always
// removed; the policy only governs physical deletion.
type Policy struct {
	Actions     map[export.Class]Action
	AudioPrefix string
}

// DefaultPolicy deletes data exports and audio under audioPrefix. Textures and
// meshes do not map one-to-one to a source file and are never deleted.
func DefaultPolicy(audioPrefix string) Policy {
	return Policy{
		Actions: map[export.Class]Action{
			export.ClassData:    Delete,
			export.ClassAudio:   DeleteUnderPrefix,
			export.ClassTexture: Keep,
			export.ClassMesh:    Keep,
			export.ClassOther:   Keep,
		},
		AudioPrefix: audioPrefix,
	}
}

// Action returns the action for class. Unknown classes are kept.
func (p Policy) Action(class export.Class) Action {
	if a, ok := p.Actions[class]; ok {
		return a
	}
	return Keep
}

// Allows reports whether the artifact of logical path with class may be deleted.
func (p Policy) Allows(class export.Class, logical string) bool {
	switch p.Action(class) {
	case Delete:
		return true
	case DeleteUnderPrefix:
		return underPrefix(logical, p.AudioPrefix)
	default:
		return false
	}
}

func underPrefix(logical, prefix string) bool {
	prefix = strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/")
	if prefix == "" {
		return false
	}
	l := strings.ToLower(logical)
	p := strings.ToLower(prefix)
	return l == p || strings.HasPrefix(l, p+"/")
}
