// Package embedding holds the Embedder contract shared by all backends and
// helpers the backends have in common.
package embedding

import (
	"fmt"
	"math"
	"strings"

	"ragreader/internal/domain"
)

// Embedder converts free text into a numeric vector representation.
type Embedder = domain.Embedder

// CheckTexts rejects empty batches and blank entries.
func CheckTexts(texts []string) error {
	if len(texts) == 0 {
		return domain.NewEmbeddingError("embed batch", fmt.Errorf("%w: no inputs", domain.ErrEmptyText))
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return domain.NewEmbeddingError("embed batch", fmt.Errorf("%w at position %d", domain.ErrEmptyText, i))
		}
	}
	return nil
}

// Normalize scales v to unit L2 norm in place and returns it.
func Normalize(v []float64) []float64 {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
	return v
}
