package domain

import (
	"context"
	"time"
)

// Origin identifies the kind of file a Document was read from.
type Origin string

const (
	OriginText Origin = "text"
	OriginPDF  Origin = "pdf"
)

// Document represents one loaded text file or one page of a PDF.
type Document struct {
	ID      string
	Name    string
	Path    string
	Origin  Origin
	Content string
	// Page is the 1-based PDF page number, 0 for plain text.
	Page int
}

// Chunk is a bounded span of a document used for indexing.
type Chunk struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"source"`
	ChunkID      string `json:"chunk_id"`
	Text         string `json:"page_content"`
	// Ordinal is the position of the chunk within its document.
	Ordinal int `json:"ordinal"`
	// Seq is the insertion order of the chunk within its index.
	Seq  int `json:"-"`
	Page int `json:"page,omitempty"`
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Chunker splits an ordered document set into chunks suitable for indexing.
type Chunker interface {
	Split(documents []Document) ([]Chunk, error)
}

// Index is an immutable, searchable set of chunk vectors.
type Index interface {
	Search(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
	Len() int
	Close() error
}

// IndexBuilder builds a fresh Index from chunks and their vectors.
type IndexBuilder interface {
	Name() string
	Build(ctx context.Context, chunks []Chunk, vectors [][]float64) (Index, error)
}

// Generator is an opaque text-completion service.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// QueryResult is the answer to one query against a ready index.
type QueryResult struct {
	Query        string  `json:"query"`
	Answer       string  `json:"answer"`
	RelevantDocs []Chunk `json:"relevant_docs"`
	// ResponseTime is in seconds.
	ResponseTime float64 `json:"response_time"`
}

// Validate checks the result carries every field callers rely on.
func (r QueryResult) Validate() error {
	switch {
	case r.Answer == "":
		return NewQueryError("validate", ErrInvalidResponse)
	case r.RelevantDocs == nil:
		return NewQueryError("validate", ErrInvalidResponse)
	case r.ResponseTime < 0:
		return NewQueryError("validate", ErrInvalidResponse)
	}
	return nil
}

// Seconds converts a duration to the float seconds used in QueryResult.
func Seconds(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return d.Seconds()
}
