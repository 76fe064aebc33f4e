package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragreader/internal/domain"
)

type countingEmbedder struct {
	calls  int
	inputs []string
	err    error
}

func (c *countingEmbedder) Name() string   { return "counting" }
func (c *countingEmbedder) Dimension() int { return 2 }

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (c *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	c.calls++
	c.inputs = append(c.inputs, texts...)
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len(t)), 1}
	}
	return out, nil
}

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

func TestEmbedBatch_CachesVectors(t *testing.T) {
	client, mr := setupRedis(t)
	inner := &countingEmbedder{}
	e := New(inner, client, time.Hour)
	ctx := context.Background()

	first, err := e.EmbedBatch(ctx, []string{"alpha", "be"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{5, 1}, {2, 1}}, first)
	assert.Equal(t, 1, inner.calls)
	assert.Len(t, mr.Keys(), 2)

	second, err := e.EmbedBatch(ctx, []string{"be", "gamma", "alpha"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 1}, {5, 1}, {5, 1}}, second)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, []string{"alpha", "be", "gamma"}, inner.inputs)
}

func TestEmbed_FullHitSkipsInner(t *testing.T) {
	client, _ := setupRedis(t)
	inner := &countingEmbedder{}
	e := New(inner, client, time.Hour)
	ctx := context.Background()

	_, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	v, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 1}, v)
	assert.Equal(t, 1, inner.calls)
}

func TestEntriesExpire(t *testing.T) {
	client, mr := setupRedis(t)
	inner := &countingEmbedder{}
	e := New(inner, client, time.Minute)
	ctx := context.Background()

	_, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, err = e.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestRedisDown_FallsBackToInner(t *testing.T) {
	client, mr := setupRedis(t)
	mr.Close()
	inner := &countingEmbedder{}
	e := New(inner, client, time.Hour)

	v, err := e.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, v)
}

func TestInnerErrorPropagates(t *testing.T) {
	client, _ := setupRedis(t)
	boom := domain.NewEmbeddingError("embed", errors.New("backend down"))
	e := New(&countingEmbedder{err: boom}, client, time.Hour)

	out, err := e.EmbedBatch(context.Background(), []string{"x"})
	assert.Nil(t, out)
	assert.True(t, domain.IsKind(err, domain.KindEmbedding))
}

func TestRejectsBlankText(t *testing.T) {
	client, _ := setupRedis(t)
	inner := &countingEmbedder{}
	e := New(inner, client, time.Hour)

	_, err := e.Embed(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrEmptyText)
	assert.Equal(t, 0, inner.calls)
}

func TestKeyIncludesEmbedderName(t *testing.T) {
	client, _ := setupRedis(t)
	e := New(&countingEmbedder{}, client, 0)
	assert.Equal(t, DefaultTTL, e.ttl)
	assert.Contains(t, e.key("x"), "rag:emb:counting:")
}
