package normalize

import (
	"context"

	"golang.org/x/text/unicode/norm"
)

// Converter rewrites a block of text.
type Converter interface {
	Convert(ctx context.Context, text string) (string, error)
}

// Script normalizes recognized text to Simplified Chinese.
type Script struct {
	conv Converter
}

// New returns a Script backed by conv.
func New(conv Converter) *Script {
	return &Script{conv: conv}
}

// Normalize converts a single text.
func (s *Script) Normalize(ctx context.Context, text string) (string, error) {
	return s.conv.Convert(ctx, norm.NFC.String(text))
}

// NormalizeAll converts each text in order. The result has the same length
// and order as texts.
func (s *Script) NormalizeAll(ctx context.Context, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		converted, err := s.Normalize(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = converted
	}
	return out, nil
}
