// Package app assembles the pipeline described by an AppConfig.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ragreader/internal/chunker"
	"ragreader/internal/composer"
	"ragreader/internal/config"
	"ragreader/internal/domain"
	"ragreader/internal/embedding/cache"
	"ragreader/internal/embedding/hashing"
	"ragreader/internal/embedding/openai"
	"ragreader/internal/llm"
	"ragreader/internal/loader"
	"ragreader/internal/logger"
	"ragreader/internal/retriever"
	"ragreader/internal/service"
	"ragreader/internal/summarizer"
	"ragreader/internal/vectorstore/hnsw"
	"ragreader/internal/vectorstore/memory"
	"ragreader/internal/vectorstore/qdrant"
)

// App owns the service and the connections it was built with.
type App struct {
	Config  *config.AppConfig
	Service *service.Service
	redis   *redis.Client
}

// New validates cfg and wires every component.
func New(cfg *config.AppConfig) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &App{Config: cfg}

	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Warn("embedding cache disabled, redis at %s unreachable: %v", cfg.Cache.Addr, err)
			_ = client.Close()
		} else {
			a.redis = client
			emb = cache.New(emb, client, time.Duration(cfg.Cache.TTLSecs)*time.Second)
		}
	}

	builder, err := newIndexBuilder(cfg.VectorStore)
	if err != nil {
		return nil, err
	}

	var sum domain.Summarizer
	if cfg.Summarizer.Type == "frequency" {
		sum = summarizer.NewFrequencySummarizer()
	}

	a.Service = service.New(service.Deps{
		Loader: loader.New(),
		Chunker: chunker.New(
			chunker.WithChunkSize(cfg.Chunker.ChunkSize),
			chunker.WithOverlap(cfg.Chunker.ChunkOverlap),
			chunker.WithMaxDocuments(cfg.Chunker.DocumentCap()),
		),
		Embedder:   emb,
		Builder:    builder,
		Retriever:  retriever.New(emb, cfg.Retriever.K),
		Composer:   composer.New(newGenerator(cfg.LLM)),
		Summarizer: sum,
	},
		service.WithBuildTimeout(time.Duration(cfg.Server.BuildTimeoutSecs)*time.Second),
		service.WithSummarySentences(cfg.Summarizer.MaxSentences),
	)
	logger.Debug("pipeline: embedder=%s index=%s chunk=%d/%d cap=%d k=%d",
		emb.Name(), builder.Name(), cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap, cfg.Chunker.DocumentCap(), cfg.Retriever.K)
	return a, nil
}

// Close waits for background builds and releases connections.
func (a *App) Close(ctx context.Context) error {
	err := a.Service.Shutdown(ctx)
	if a.redis != nil {
		err = errors.Join(err, a.redis.Close())
	}
	return err
}

func newEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "hashing":
		dim := 0
		if cfg.Hashing != nil {
			dim = cfg.Hashing.Dimension
		}
		return hashing.NewEmbedder(dim), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		o := cfg.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:           o.BaseURL,
			APIKey:            o.APIKey(),
			Model:             o.Model,
			Dimensions:        o.Dimensions,
			BatchSize:         o.BatchSize,
			Concurrency:       o.Concurrency,
			RequestsPerSecond: o.RequestsPerSecond,
			MaxRetries:        o.MaxRetries,
			Timeout:           time.Duration(o.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed (env %s): %w", o.APIKeyEnv, err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func newIndexBuilder(cfg config.VectorStoreConfig) (domain.IndexBuilder, error) {
	switch cfg.Type {
	case "memory":
		return memory.NewBuilder(), nil
	case "hnsw":
		hc := hnsw.DefaultConfig()
		if h := cfg.HNSW; h != nil {
			if h.M > 0 {
				hc.M = h.M
				hc.MMax0 = 2 * h.M
				hc.ML = 0
			}
			if h.EfConstruction > 0 {
				hc.EfConstruction = h.EfConstruction
			}
			if h.EfSearch > 0 {
				hc.EfSearch = h.EfSearch
			}
			if h.ExactThreshold != 0 {
				hc.ExactThreshold = h.ExactThreshold
			}
			if h.Seed != 0 {
				hc.Seed = h.Seed
			}
		}
		return hnsw.NewBuilder(hc), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		return qdrant.NewBuilder(qdrant.Config{
			URL:              cfg.Qdrant.URL,
			APIKey:           cfg.Qdrant.APIKey(),
			CollectionPrefix: cfg.Qdrant.CollectionPrefix,
			Timeout:          time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

// unconfiguredGenerator fails every completion with a setup hint, so builds
// still work without an LLM key.
type unconfiguredGenerator struct{ keyEnv string }

func (g unconfiguredGenerator) Complete(context.Context, string) (string, error) {
	return "", fmt.Errorf("LLM API key not set (export %s)", g.keyEnv)
}

func newGenerator(cfg config.LLMConfig) domain.Generator {
	temp := float32(llm.DefaultTemperature)
	if cfg.Temperature != nil {
		temp = *cfg.Temperature
	}
	client, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey(),
		Model:       cfg.Model,
		Temperature: temp,
		MaxTokens:   cfg.MaxTokens,
		MaxRetries:  cfg.MaxRetries,
		Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
	})
	if err != nil {
		logger.Warn("answers unavailable: %v", err)
		return unconfiguredGenerator{keyEnv: cfg.APIKeyEnv}
	}
	return client
}
