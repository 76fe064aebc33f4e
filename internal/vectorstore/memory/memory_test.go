package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragreader/internal/domain"
)

func chunks(ids ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(ids))
	for i, id := range ids {
		out[i] = domain.Chunk{ChunkID: id, Text: "text " + id}
	}
	return out
}

func TestBuildAndSearch(t *testing.T) {
	ctx := context.Background()
	idx, err := NewBuilder().Build(ctx, chunks("a", "b", "c"), [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0.8, 0.2, 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	res, err := idx.Search(ctx, []float64{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a", res[0].Chunk.ChunkID)
	assert.Equal(t, "c", res[1].Chunk.ChunkID)
	assert.GreaterOrEqual(t, res[0].Score, res[1].Score)
}

func TestSearch_FewerThanK(t *testing.T) {
	ctx := context.Background()
	idx, err := NewBuilder().Build(ctx, chunks("a"), [][]float64{{1, 1}})
	require.NoError(t, err)

	res, err := idx.Search(ctx, []float64{1, 0}, 4)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx, err := NewBuilder().Build(ctx, chunks("first", "second", "third"), [][]float64{
		{0, 1}, {0, 1}, {0, 1},
	})
	require.NoError(t, err)

	for range 5 {
		res, err := idx.Search(ctx, []float64{0, 1}, 3)
		require.NoError(t, err)
		assert.Equal(t, "first", res[0].Chunk.ChunkID)
		assert.Equal(t, "second", res[1].Chunk.ChunkID)
		assert.Equal(t, "third", res[2].Chunk.ChunkID)
	}
}

func TestBuild_Rejects(t *testing.T) {
	ctx := context.Background()
	_, err := NewBuilder().Build(ctx, nil, nil)
	assert.ErrorIs(t, err, domain.ErrNoVectors)

	_, err = NewBuilder().Build(ctx, chunks("a", "b"), [][]float64{{1}, {1, 2}})
	assert.True(t, domain.IsKind(err, domain.KindIndexBuild))
}

func TestBuild_IsolatedFromCallerMutation(t *testing.T) {
	ctx := context.Background()
	vecs := [][]float64{{1, 0}, {0, 1}}
	idx, err := NewBuilder().Build(ctx, chunks("a", "b"), vecs)
	require.NoError(t, err)

	vecs[0][0] = 0
	vecs[0][1] = 1
	res, err := idx.Search(ctx, []float64{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", res[0].Chunk.ChunkID)
}

func TestSearch_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx, err := NewBuilder().Build(ctx, chunks("a"), [][]float64{{1, 0}})
	require.NoError(t, err)

	_, err = idx.Search(ctx, []float64{1, 0, 0}, 1)
	assert.True(t, domain.IsKind(err, domain.KindQuery))
}
