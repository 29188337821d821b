package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	ErrDimensionMismatch = errors.New("embedding dimensions differ")
	ErrZeroVector        = errors.New("embedding has zero magnitude")
)

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// TextExtractor returns the printed text found on a document image.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte, mimeType string) (string, error)
}

// CosineSimilarity returns the cosine of the angle between a and b.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, ErrZeroVector
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, ErrZeroVector
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
