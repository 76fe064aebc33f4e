// Package hashing is a local, deterministic embedder. Tokens are hashed into
// a fixed number of signed buckets, weighted by sublinear term frequency and
// L2-normalised, so no corpus preparation is needed and identical text always
// yields an identical vector.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"ragreader/internal/domain"
	"ragreader/internal/embedding"
	"ragreader/internal/textutil"
)

// DefaultDimension is used when no dimension is configured.
const DefaultDimension = 768

// Embedder implements feature-hashing embeddings.
type Embedder struct {
	dimension int
}

var _ domain.Embedder = (*Embedder)(nil)

// NewEmbedder creates a hashing embedder with the given dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes the embedding for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewEmbeddingError("embed", domain.ErrEmptyText)
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.NewEmbeddingError("embed", err)
	}
	return e.vector(text), nil
}

// EmbedBatch embeds texts in order. Any invalid input fails the whole batch.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if err := embedding.CheckTexts(texts); err != nil {
		return nil, err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewEmbeddingError("embed batch", err)
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *Embedder) vector(text string) []float64 {
	features := e.features(text)
	counts := make(map[string]int, len(features))
	order := make([]string, 0, len(features))
	for _, f := range features {
		if counts[f] == 0 {
			order = append(order, f)
		}
		counts[f]++
	}

	vec := make([]float64, e.dimension)
	for _, f := range order {
		idx, sign := e.bucket(f)
		vec[idx] += sign * (1 + math.Log(float64(counts[f])))
	}
	return embedding.Normalize(vec)
}

// features returns content words, falling back to stop words and then to
// character trigrams so that any non-blank text gets a non-zero vector.
func (e *Embedder) features(text string) []string {
	if out := textutil.ContentTokens(text); len(out) > 0 {
		return out
	}
	if raw := textutil.Tokens(text); len(raw) > 0 {
		return raw
	}
	var out []string
	runes := []rune(strings.TrimSpace(text))
	if len(runes) < 3 {
		return []string{string(runes)}
	}
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, "#"+string(runes[i:i+3]))
	}
	return out
}

func (e *Embedder) bucket(feature string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1.0
	}
	return int(sum % uint64(e.dimension)), sign
}
