package decoders

import (
	"context"
	"encoding/json"

	"asset-exporter/core/classify"
)

// manifestDoc is the artifact written by Manifest.
type manifestDoc struct {
	Path      string `json:"path"`
	Extension string `json:"extension"`
	Size      uint64 `json:"size"`
}

// Manifest writes a small JSON document describing the source file. It stands
// in for structured decoders that are not available in this build.
type Manifest struct{}

// Decode returns the manifest for f.
func (Manifest) Decode(ctx context.Context, f classify.SourceFile) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(manifestDoc{
		Path:      f.Path,
		Extension: f.Extension,
		Size:      f.Size,
	}, "", "  ")
}
