package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, 768, cfg.Embedder.Hashing.Dimension)
	assert.Equal(t, "recursive", cfg.Chunker.Type)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 200, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 20, cfg.Chunker.DocumentCap())
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
	assert.InDelta(t, 0.2, *cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, "GROQ_API_KEY", cfg.LLM.APIKeyEnv)
	assert.Equal(t, 4, cfg.Retriever.K)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "frequency", cfg.Summarizer.Type)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ParsesYAMLAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedder:
  type: openai
  openai:
    base_url: http://localhost:11434/v1
    model: nomic-embed-text
chunker:
  chunk_size: 500
  chunk_overlap: 50
  max_documents: 0
vector_store:
  type: qdrant
  qdrant:
    url: http://localhost:6333
llm:
  temperature: 0
cache:
  enabled: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Embedder.OpenAI.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, 32, cfg.Embedder.OpenAI.BatchSize)
	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
	assert.Equal(t, 50, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 0, cfg.Chunker.DocumentCap())
	assert.Equal(t, "ragreader", cfg.VectorStore.Qdrant.CollectionPrefix)
	assert.Equal(t, float32(0), *cfg.LLM.Temperature)
	assert.Equal(t, "localhost:6379", cfg.Cache.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RAG_SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("RAG_UPLOAD_DIR", "/tmp/rag-uploads")
	t.Setenv("RAG_LOG_VERBOSE", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, "/tmp/rag-uploads", cfg.Server.UploadDir)
	assert.True(t, cfg.Log.Verbose)
}

func TestAPIKeysComeFromEnv(t *testing.T) {
	t.Setenv("MY_LLM_KEY", "gsk-123")
	cfg := LLMConfig{APIKeyEnv: "MY_LLM_KEY"}
	assert.Equal(t, "gsk-123", cfg.APIKey())

	assert.Equal(t, "", QdrantConfig{}.APIKey())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *AppConfig)
		msg    string
	}{
		{"unknown embedder", func(c *AppConfig) { c.Embedder.Type = "word2vec" }, "unknown embedder"},
		{"overlap too large", func(c *AppConfig) { c.Chunker.ChunkOverlap = 1000 }, "chunk_overlap"},
		{"zero chunk size", func(c *AppConfig) { c.Chunker.ChunkSize = 0 }, "chunk_size"},
		{"negative cap", func(c *AppConfig) { n := -1; c.Chunker.MaxDocuments = &n }, "max_documents"},
		{"qdrant without url", func(c *AppConfig) { c.VectorStore.Type = "qdrant" }, "qdrant.url"},
		{"unknown store", func(c *AppConfig) { c.VectorStore.Type = "faiss" }, "unknown vector store"},
		{"unknown summarizer", func(c *AppConfig) { c.Summarizer.Type = "llm" }, "unknown summarizer"},
		{"cache without addr", func(c *AppConfig) { c.Cache.Enabled = true; c.Cache.Addr = "" }, "cache.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Retriever.K = 7
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Retriever.K)
	assert.Equal(t, cfg.Chunker.DocumentCap(), loaded.Chunker.DocumentCap())
}

func TestLoadEnv_MissingFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.NoError(t, LoadEnv())
}

func TestLoadEnv_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RAGREADER_TEST_KEY=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("RAGREADER_TEST_KEY") })

	require.NoError(t, LoadEnv())
	assert.Equal(t, "from-dotenv", os.Getenv("RAGREADER_TEST_KEY"))
}
