package export

import (
	"context"
	"errors"
	"fmt"

	"asset-exporter/core/classify"
)

// ErrNoDecoder is returned when no decoder handles a source extension.
var ErrNoDecoder = errors.New("no decoder for extension")

// Decoder turns one source file into artifact bytes. Implementations are
// opaque to the orchestrator and may fail per file.
type Decoder interface {
	Decode(ctx context.Context, f classify.SourceFile) ([]byte, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(ctx context.Context, f classify.SourceFile) ([]byte, error)

// Decode calls fn.
func (fn DecoderFunc) Decode(ctx context.Context, f classify.SourceFile) ([]byte, error) {
	return fn(ctx, f)
}

// DecoderSet dispatches by source extension with an optional default.
type DecoderSet struct {
	byExt    map[string]Decoder
	fallback Decoder
}

// NewDecoderSet creates an empty decoder set.
func NewDecoderSet() *DecoderSet {
	return &DecoderSet{byExt: make(map[string]Decoder)}
}

// Register sets the decoder for one or more source extensions.
func (s *DecoderSet) Register(d Decoder, extensions ...string) *DecoderSet {
	for _, ext := range extensions {
		s.byExt[normalizeExt(ext)] = d
	}
	return s
}

// SetDefault sets the decoder used when no extension matches.
func (s *DecoderSet) SetDefault(d Decoder) *DecoderSet {
	s.fallback = d
	return s
}

// For returns the decoder for a source extension.
func (s *DecoderSet) For(ext string) (Decoder, error) {
	if d, ok := s.byExt[normalizeExt(ext)]; ok {
		return d, nil
	}
	if s.fallback != nil {
		return s.fallback, nil
	}
	return nil, fmt.Errorf("%w %q", ErrNoDecoder, ext)
}
