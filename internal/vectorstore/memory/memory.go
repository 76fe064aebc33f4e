// Package memory is the default index backend: an exact flat scan over
// vectors held in process memory.
package memory

import (
	"context"

	"ragreader/internal/domain"
	"ragreader/internal/vectorstore"
)

// Builder builds exact in-memory indexes.
type Builder struct{}

var _ domain.IndexBuilder = Builder{}

func NewBuilder() Builder { return Builder{} }

func (Builder) Name() string { return "memory" }

// Build copies chunks and vectors into a new immutable Index.
func (Builder) Build(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) (domain.Index, error) {
	dim, err := vectorstore.Validate(chunks, vectors)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.NewIndexBuildError("build", err)
	}

	idx := &Index{
		dimension: dim,
		chunks:    vectorstore.Sequence(chunks),
		vectors:   make([][]float64, len(vectors)),
		norms:     make([]float64, len(vectors)),
	}
	for i, v := range vectors {
		idx.vectors[i] = append([]float64(nil), v...)
		idx.norms[i] = vectorstore.Norm(v)
	}
	return idx, nil
}

// Index is safe for concurrent searches; it is never mutated after Build.
type Index struct {
	dimension int
	chunks    []domain.Chunk
	vectors   [][]float64
	norms     []float64
}

func (i *Index) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if err := vectorstore.CheckQuery(vector, i.dimension); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.NewQueryError("search", err)
	}
	return vectorstore.ExactSearch(i.chunks, i.vectors, i.norms, vector, topK), nil
}

func (i *Index) Len() int { return len(i.chunks) }

func (i *Index) Close() error { return nil }
