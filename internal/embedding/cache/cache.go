// Package cache decorates an Embedder with a Redis-backed vector cache.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ragreader/internal/domain"
	"ragreader/internal/embedding"
	"ragreader/internal/logger"
)

const (
	keyPrefix  = "rag:emb:" // rag:emb:{embedder}:{sha1(text)}
	DefaultTTL = 24 * time.Hour
)

// Embedder serves vectors from Redis and falls through to the wrapped
// embedder for misses. Redis failures degrade to the wrapped embedder.
type Embedder struct {
	inner  domain.Embedder
	client *redis.Client
	ttl    time.Duration
}

var _ domain.Embedder = (*Embedder)(nil)

// New wraps inner with a cache stored in client.
func New(inner domain.Embedder, client *redis.Client, ttl time.Duration) *Embedder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Embedder{inner: inner, client: client, ttl: ttl}
}

func (e *Embedder) Name() string   { return e.inner.Name() }
func (e *Embedder) Dimension() int { return e.inner.Dimension() }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch looks every text up in one round trip, embeds the misses in a
// single inner batch and writes them back.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if err := embedding.CheckTexts(texts); err != nil {
		return nil, err
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = e.key(t)
	}

	out := make([][]float64, len(texts))
	vals, err := e.client.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warn("embedding cache lookup failed: %v", err)
		vals = make([]interface{}, len(texts))
	}

	var missIdx []int
	var missTexts []string
	for i, v := range vals {
		if s, ok := v.(string); ok {
			var vec []float64
			if err := json.Unmarshal([]byte(s), &vec); err == nil && len(vec) > 0 {
				out[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}
	logger.Debug("embedding cache: %d hits, %d misses", len(texts)-len(missIdx), len(missIdx))
	if len(missIdx) == 0 {
		return out, nil
	}

	fresh, err := e.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, domain.NewEmbeddingError("embed batch",
			fmt.Errorf("expected %d vectors, got %d", len(missTexts), len(fresh)))
	}

	pipe := e.client.Pipeline()
	for j, i := range missIdx {
		out[i] = fresh[j]
		data, err := json.Marshal(fresh[j])
		if err != nil {
			return nil, domain.NewEmbeddingError("embed batch", err)
		}
		pipe.Set(ctx, keys[i], data, e.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("embedding cache write failed: %v", err)
	}
	return out, nil
}

func (e *Embedder) key(text string) string {
	sum := sha1.Sum([]byte(text))
	return keyPrefix + e.inner.Name() + ":" + hex.EncodeToString(sum[:])
}
