// Package retriever maps a query to the k most similar chunks of an index.
package retriever

import (
	"context"
	"strings"

	"ragreader/internal/domain"
)

// DefaultK is the number of chunks returned when k is not positive.
const DefaultK = 4

type Retriever struct {
	embedder domain.Embedder
	k        int
}

// New returns a Retriever that embeds queries with embedder. A non-positive
// defaultK falls back to DefaultK.
func New(embedder domain.Embedder, defaultK int) *Retriever {
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	return &Retriever{embedder: embedder, k: defaultK}
}

// K returns the default number of chunks per query.
func (r *Retriever) K() int { return r.k }

// Retrieve returns the chunks of the k best matches, best first.
func (r *Retriever) Retrieve(ctx context.Context, query string, idx domain.Index, k int) ([]domain.Chunk, error) {
	results, err := r.RetrieveScored(ctx, query, idx, k)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, len(results))
	for i, res := range results {
		chunks[i] = res.Chunk
	}
	return chunks, nil
}

// RetrieveScored is Retrieve with similarity scores. A nil or empty index
// yields an empty result.
func (r *Retriever) RetrieveScored(ctx context.Context, query string, idx domain.Index, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = r.k
	}
	if idx == nil || idx.Len() == 0 {
		return []domain.SearchResult{}, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewQueryError("retrieve", domain.ErrEmptyText)
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, domain.AsKind(domain.KindEmbedding, "embed query", err)
	}
	results, err := idx.Search(ctx, vec, k)
	if err != nil {
		return nil, domain.AsKind(domain.KindQuery, "search", err)
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	return results, nil
}
