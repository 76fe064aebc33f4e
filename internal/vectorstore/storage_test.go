package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragreader/internal/domain"
)

func TestValidate(t *testing.T) {
	chunks := []domain.Chunk{{ChunkID: "a"}, {ChunkID: "b"}}

	dim, err := Validate(chunks, [][]float64{{1, 0}, {0, 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, dim)

	tests := []struct {
		name    string
		chunks  []domain.Chunk
		vectors [][]float64
	}{
		{"no pairs", nil, nil},
		{"length mismatch", chunks, [][]float64{{1, 0}}},
		{"dimension mismatch", chunks, [][]float64{{1, 0}, {1, 0, 0}}},
		{"empty vector", chunks, [][]float64{{}, {}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.chunks, tt.vectors)
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.KindIndexBuild))
		})
	}

	_, err = Validate(nil, nil)
	assert.ErrorIs(t, err, domain.ErrNoVectors)
}

func TestCosine(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{2, 0}
	c := []float64{0, 3}
	assert.InDelta(t, 1.0, Cosine(a, b, Norm(a), Norm(b)), 1e-12)
	assert.InDelta(t, 0.0, Cosine(a, c, Norm(a), Norm(c)), 1e-12)
	assert.Equal(t, 0.0, Cosine(a, []float64{0, 0}, 1, 0))
}

func TestSortResults_TiesByInsertionOrder(t *testing.T) {
	results := []domain.SearchResult{
		{Chunk: domain.Chunk{ChunkID: "c", Seq: 2}, Score: 0.5},
		{Chunk: domain.Chunk{ChunkID: "a", Seq: 0}, Score: 0.5},
		{Chunk: domain.Chunk{ChunkID: "d", Seq: 3}, Score: 0.9},
		{Chunk: domain.Chunk{ChunkID: "b", Seq: 1}, Score: 0.5},
	}
	SortResults(results)

	var ids []string
	for _, r := range results {
		ids = append(ids, r.Chunk.ChunkID)
	}
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids)
}

func TestExactSearch(t *testing.T) {
	chunks := Sequence([]domain.Chunk{{ChunkID: "x"}, {ChunkID: "y"}, {ChunkID: "z"}})
	vectors := [][]float64{{1, 0}, {0.7, 0.7}, {0, 1}}
	norms := []float64{Norm(vectors[0]), Norm(vectors[1]), Norm(vectors[2])}

	got := ExactSearch(chunks, vectors, norms, []float64{1, 0.1}, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].Chunk.ChunkID)
	assert.Equal(t, "y", got[1].Chunk.ChunkID)

	assert.Len(t, ExactSearch(chunks, vectors, norms, []float64{1, 0}, 10), 3)
	assert.Empty(t, ExactSearch(chunks, vectors, norms, []float64{1, 0}, 0))
}

func TestCheckQuery(t *testing.T) {
	assert.NoError(t, CheckQuery([]float64{1, 2}, 2))
	err := CheckQuery([]float64{1}, 2)
	assert.True(t, domain.IsKind(err, domain.KindQuery))
}
