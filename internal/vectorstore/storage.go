// Package vectorstore holds what every index backend shares: build input
// validation, cosine scoring and the result ordering rule.
package vectorstore

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"ragreader/internal/domain"
)

// Validate checks that chunks and vectors pair up and share one dimension,
// returning that dimension.
func Validate(chunks []domain.Chunk, vectors [][]float64) (int, error) {
	if len(chunks) == 0 || len(vectors) == 0 {
		return 0, domain.NewIndexBuildError("validate", domain.ErrNoVectors)
	}
	if len(chunks) != len(vectors) {
		return 0, domain.NewIndexBuildError("validate",
			fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors)))
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, domain.NewIndexBuildError("validate", fmt.Errorf("empty vector at position 0"))
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, domain.NewIndexBuildError("validate",
				fmt.Errorf("vector dimension mismatch at position %d: got %d, want %d", i, len(v), dim))
		}
	}
	return dim, nil
}

// Sequence copies chunks and stamps each with its insertion position.
func Sequence(chunks []domain.Chunk) []domain.Chunk {
	out := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.Seq = i
		out[i] = c
	}
	return out
}

// CheckQuery rejects query vectors that do not match the index dimension.
func CheckQuery(vector []float64, dim int) error {
	if len(vector) != dim {
		return domain.NewQueryError("search",
			fmt.Errorf("query dimension mismatch: got %d, want %d", len(vector), dim))
	}
	return nil
}

// Norm returns the L2 norm of v.
func Norm(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

// Cosine returns the cosine similarity of a and b given their norms.
// A zero vector scores 0 against everything.
func Cosine(a, b []float64, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (normA * normB)
}

// SortResults orders results by descending score, ties by ascending Seq.
func SortResults(results []domain.SearchResult) {
	slices.SortStableFunc(results, func(a, b domain.SearchResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.Seq, b.Chunk.Seq)
	})
}

// Top sorts results and truncates them to k entries.
func Top(results []domain.SearchResult, k int) []domain.SearchResult {
	SortResults(results)
	if k < len(results) {
		results = results[:k]
	}
	return results
}

// ExactSearch scores every vector against the query.
func ExactSearch(chunks []domain.Chunk, vectors [][]float64, norms []float64, query []float64, k int) []domain.SearchResult {
	if k <= 0 || len(chunks) == 0 {
		return []domain.SearchResult{}
	}
	qn := Norm(query)
	results := make([]domain.SearchResult, len(chunks))
	for i := range chunks {
		results[i] = domain.SearchResult{Chunk: chunks[i], Score: Cosine(query, vectors[i], qn, norms[i])}
	}
	return Top(results, k)
}
