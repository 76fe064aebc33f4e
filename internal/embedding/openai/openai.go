// Package openai embeds text through any OpenAI-compatible embeddings API
// (OpenAI, Ollama, LM Studio, vLLM).
package openai

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ragreader/internal/domain"
	"ragreader/internal/embedding"
	"ragreader/internal/logger"
	"ragreader/internal/util"
)

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = string(openai.SmallEmbedding3)
	DefaultBatchSize = 32
)

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Dimensions is requested from the server when non-zero; otherwise the
	// dimension is learned from the first response.
	Dimensions int
	BatchSize  int
	// Concurrency bounds the number of batches in flight.
	Concurrency int
	// RequestsPerSecond bounds the request rate; 0 disables limiting.
	RequestsPerSecond float64
	MaxRetries        int
	RetryDelay        time.Duration
	Timeout           time.Duration
}

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
type Client struct {
	client      *openai.Client
	model       string
	dimensions  int
	batchSize   int
	concurrency int
	limiter     *rate.Limiter
	maxRetries  int
	retryDelay  time.Duration
	timeout     time.Duration
	dimension   atomic.Int64
}

var _ domain.Embedder = (*Client)(nil)

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewEmbeddingError("new client", errors.New("missing API key"))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL

	c := &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		dimensions:  cfg.Dimensions,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		timeout:     cfg.Timeout,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	if cfg.Dimensions > 0 {
		c.dimension.Store(int64(cfg.Dimensions))
	}
	return c, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Dimension returns the vector size, or 0 before the first response when no
// dimension was configured.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in order. Batches are sent concurrently; if any
// batch fails the whole call fails and no vectors are returned.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if err := embedding.CheckTexts(texts); err != nil {
		return nil, err
	}

	out := make([][]float64, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := c.embedWithRetry(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.AsKind(domain.KindEmbedding, "embed batch", err)
	}

	dim := len(out[0])
	for i, v := range out {
		if len(v) != dim {
			return nil, domain.NewEmbeddingError("embed batch",
				fmt.Errorf("inconsistent dimension at position %d: got %d, want %d", i, len(v), dim))
		}
	}
	c.dimension.CompareAndSwap(0, int64(dim))
	return out, nil
}

func (c *Client) embedWithRetry(ctx context.Context, batch []string) ([][]float64, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := util.CalculateBackoff(c.retryDelay, attempt)
			logger.Debug("embeddings retry %d/%d in %s: %v", attempt, c.maxRetries, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, domain.NewEmbeddingError("embed", ctx.Err())
			case <-time.After(delay):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, domain.NewEmbeddingError("embed", err)
			}
		}

		vecs, err := c.request(ctx, batch)
		if err == nil {
			return vecs, nil
		}
		lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, domain.NewEmbeddingError("embed",
		fmt.Errorf("failed after %d attempts: %w", c.maxRetries+1, lastErr))
}

func (c *Client) request(ctx context.Context, batch []string) ([][]float64, error) {
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(rctx, openai.EmbeddingRequestStrings{
		Input:      batch,
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Data))
	}

	out := make([][]float64, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(batch) || out[d.Index] != nil {
			return nil, fmt.Errorf("invalid embedding index %d", d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", d.Index)
		}
		v := make([]float64, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float64(x)
		}
		out[d.Index] = v
	}
	return out, nil
}

// retryable reports whether a request error is worth another attempt:
// transport failures, rate limiting and server errors.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return true
}
