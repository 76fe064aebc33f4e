// Package qdrant is an index backend backed by a remote Qdrant server. Every
// build writes a fresh collection, so a published index is never modified;
// closing the index drops its collection.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"ragreader/internal/domain"
	"ragreader/internal/logger"
	"ragreader/internal/vectorstore"
)

const upsertBatch = 256

type Config struct {
	URL    string
	APIKey string
	// CollectionPrefix names collections as <prefix>-<uuid>.
	CollectionPrefix string
	Timeout          time.Duration
}

// Builder creates Qdrant-backed indexes.
type Builder struct {
	url    string
	apiKey string
	prefix string
	client *http.Client
}

var _ domain.IndexBuilder = (*Builder)(nil)

func NewBuilder(cfg Config) *Builder {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	prefix := cfg.CollectionPrefix
	if prefix == "" {
		prefix = "ragreader"
	}
	return &Builder{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		prefix: prefix,
		client: &http.Client{Timeout: timeout},
	}
}

func (b *Builder) Name() string { return "qdrant" }

// Build creates a collection sized to the vectors and uploads every point.
// A failed upload drops the partially written collection.
func (b *Builder) Build(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) (domain.Index, error) {
	dim, err := vectorstore.Validate(chunks, vectors)
	if err != nil {
		return nil, err
	}
	collection := b.prefix + "-" + uuid.NewString()
	idx := &Index{b: b, collection: collection, dimension: dim, size: len(chunks)}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if err := b.do(ctx, http.MethodPut, "/collections/"+collection, body, nil); err != nil {
		return nil, domain.NewIndexBuildError("create collection", err)
	}

	seq := vectorstore.Sequence(chunks)
	for start := 0; start < len(seq); start += upsertBatch {
		end := min(start+upsertBatch, len(seq))
		points := make([]point, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, point{ID: i, Vector: vectors[i], Payload: toPayload(seq[i])})
		}
		if err := b.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true",
			map[string]any{"points": points}, nil); err != nil {
			_ = idx.Close()
			return nil, domain.NewIndexBuildError("upsert points", err)
		}
	}
	logger.Debug("qdrant: built collection %s with %d points", collection, len(seq))
	return idx, nil
}

// Index is a read-only view of one Qdrant collection.
type Index struct {
	b          *Builder
	collection string
	dimension  int
	size       int
}

// Collection returns the name of the backing collection.
func (i *Index) Collection() string { return i.collection }

func (i *Index) Len() int { return i.size }

// Search queries Qdrant and re-sorts the hits locally so that equal scores
// come back in insertion order.
func (i *Index) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if err := vectorstore.CheckQuery(vector, i.dimension); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []domain.SearchResult{}, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	if err := i.b.do(ctx, http.MethodPost, "/collections/"+i.collection+"/points/search", req, &resp); err != nil {
		return nil, domain.NewQueryError("search", err)
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.SearchResult{Chunk: r.Payload.chunk(), Score: r.Score})
	}
	return vectorstore.Top(results, topK), nil
}

// Close drops the collection.
func (i *Index) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), i.b.client.Timeout)
	defer cancel()
	if err := i.b.do(ctx, http.MethodDelete, "/collections/"+i.collection, nil, nil); err != nil {
		return fmt.Errorf("drop collection %s: %w", i.collection, err)
	}
	return nil
}

type point struct {
	ID      int       `json:"id"`
	Vector  []float64 `json:"vector"`
	Payload payload   `json:"payload"`
}

type payload struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"source"`
	ChunkID      string `json:"chunk_id"`
	Text         string `json:"text"`
	Ordinal      int    `json:"ordinal"`
	Seq          int    `json:"seq"`
	Page         int    `json:"page,omitempty"`
}

func toPayload(c domain.Chunk) payload {
	return payload{
		DocumentID:   c.DocumentID,
		DocumentName: c.DocumentName,
		ChunkID:      c.ChunkID,
		Text:         c.Text,
		Ordinal:      c.Ordinal,
		Seq:          c.Seq,
		Page:         c.Page,
	}
}

func (p payload) chunk() domain.Chunk {
	return domain.Chunk{
		DocumentID:   p.DocumentID,
		DocumentName: p.DocumentName,
		ChunkID:      p.ChunkID,
		Text:         p.Text,
		Ordinal:      p.Ordinal,
		Seq:          p.Seq,
		Page:         p.Page,
	}
}

func (b *Builder) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.url+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.apiKey != "" {
		req.Header.Set("api-key", b.apiKey)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
