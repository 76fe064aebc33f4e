package chunker

import (
	"fmt"

	"ragreader/internal/domain"
	"ragreader/internal/logger"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// DefaultMaxDocuments is the default number of documents chunked per build.
const DefaultMaxDocuments = 20

// Boundary levels, tried in order. The empty separator means any character.
var separators = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? ", ".\n"},
	{" "},
}

// RecursiveChunker splits documents into windows of at most chunkSize
// characters. Each window ends at the latest paragraph boundary it contains,
// else the latest line, sentence or word boundary, else it is cut at
// chunkSize. Consecutive windows of one document share exactly overlap
// characters.
type RecursiveChunker struct {
	chunkSize    int
	overlap      int
	maxDocuments int
}

// Option configures the chunker.
type Option func(*RecursiveChunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *RecursiveChunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *RecursiveChunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithMaxDocuments caps how many documents are chunked. Zero means no cap.
func WithMaxDocuments(n int) Option {
	return func(c *RecursiveChunker) {
		if n >= 0 {
			c.maxDocuments = n
		}
	}
}

// New creates a RecursiveChunker.
func New(opts ...Option) *RecursiveChunker {
	c := &RecursiveChunker{
		chunkSize:    DefaultChunkSize,
		overlap:      DefaultChunkOverlap,
		maxDocuments: DefaultMaxDocuments,
	}
	for _, opt := range opts {
		opt(c)
	}
	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

func (c *RecursiveChunker) ChunkSize() int    { return c.chunkSize }
func (c *RecursiveChunker) Overlap() int      { return c.overlap }
func (c *RecursiveChunker) MaxDocuments() int { return c.maxDocuments }

// Split chunks the first maxDocuments documents in order.
func (c *RecursiveChunker) Split(documents []domain.Document) ([]domain.Chunk, error) {
	if c.maxDocuments > 0 && len(documents) > c.maxDocuments {
		logger.Debug("chunking first %d of %d documents", c.maxDocuments, len(documents))
		documents = documents[:c.maxDocuments]
	}
	var chunks []domain.Chunk
	for _, doc := range documents {
		for i, text := range c.SplitText(doc.Content) {
			chunks = append(chunks, domain.Chunk{
				DocumentID:   doc.ID,
				DocumentName: doc.Name,
				ChunkID:      fmt.Sprintf("%s:%d", doc.ID, i),
				Text:         text,
				Ordinal:      i,
				Seq:          len(chunks),
				Page:         doc.Page,
			})
		}
	}
	return chunks, nil
}

// SplitText splits one text into overlapping windows.
func (c *RecursiveChunker) SplitText(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.chunkSize {
		return []string{text}
	}

	var out []string
	start := 0
	for {
		if len(runes)-start <= c.chunkSize {
			out = append(out, string(runes[start:]))
			return out
		}
		end := c.boundary(runes, start)
		out = append(out, string(runes[start:end]))
		start = end - c.overlap
	}
}

// boundary picks where the window starting at start ends. The end always
// lies past start+overlap so the next window makes progress, and past the
// window midpoint so boundaries near the start don't produce tiny chunks.
func (c *RecursiveChunker) boundary(runes []rune, start int) int {
	hi := start + c.chunkSize
	lo := start + c.overlap + 1
	if mid := start + c.chunkSize/2; mid > lo {
		lo = mid
	}
	for _, level := range separators {
		best := -1
		for _, sep := range level {
			if b := lastBoundary(runes, []rune(sep), lo, hi); b > best {
				best = b
			}
		}
		if best > 0 {
			return best
		}
	}
	return hi
}

// lastBoundary returns the largest b in [lo, hi] such that sep ends at b.
func lastBoundary(runes, sep []rune, lo, hi int) int {
	for b := hi; b >= lo; b-- {
		i := b - len(sep)
		if i < 0 {
			break
		}
		if matchAt(runes, sep, i) {
			return b
		}
	}
	return -1
}

func matchAt(runes, sep []rune, i int) bool {
	if i+len(sep) > len(runes) {
		return false
	}
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}
