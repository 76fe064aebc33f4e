// Package hnsw provides an approximate index backend built on a Hierarchical
// Navigable Small World graph (Malkov & Yashunin, 2016).
//
// Graph construction uses a fixed random seed so the same inputs always build
// the same graph. Indexes smaller than ExactThreshold are searched exactly.
package hnsw

import (
	"container/heap"
	"context"
	"math"
	"math/rand"

	"ragreader/internal/domain"
	"ragreader/internal/vectorstore"
)

// Config contains configuration parameters for the HNSW graph.
type Config struct {
	// M is the maximum number of connections per node on layers above 0.
	M int
	// MMax0 is the maximum number of connections on layer 0, usually 2*M.
	MMax0          int
	EfConstruction int
	EfSearch       int
	// ML is the level generation factor, typically 1/ln(M).
	ML float64
	// Seed seeds level generation. Zero selects the default.
	Seed int64
	// ExactThreshold is the index size below which searches scan every vector.
	// Zero selects the default; a negative value always builds the graph.
	ExactThreshold int
}

// DefaultConfig returns sensible defaults for HNSW.
func DefaultConfig() Config {
	m := 16
	return Config{
		M:              m,
		MMax0:          m * 2,
		EfConstruction: 200,
		EfSearch:       100,
		ML:             1.0 / math.Log(float64(m)),
		Seed:           42,
		ExactThreshold: 256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.M <= 1 {
		c.M = d.M
	}
	if c.MMax0 <= 0 {
		c.MMax0 = c.M * 2
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = d.EfConstruction
	}
	if c.EfSearch <= 0 {
		c.EfSearch = d.EfSearch
	}
	if c.ML <= 0 {
		c.ML = 1.0 / math.Log(float64(c.M))
	}
	switch {
	case c.ExactThreshold == 0:
		c.ExactThreshold = d.ExactThreshold
	case c.ExactThreshold < 0:
		c.ExactThreshold = 0
	}
	if c.Seed == 0 {
		c.Seed = d.Seed
	}
	return c
}

const maxLevels = 16

// Builder builds HNSW indexes.
type Builder struct {
	cfg Config
}

var _ domain.IndexBuilder = (*Builder)(nil)

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg.withDefaults()}
}

func (b *Builder) Name() string { return "hnsw" }

// Build inserts every vector in order into a fresh graph.
func (b *Builder) Build(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) (domain.Index, error) {
	dim, err := vectorstore.Validate(chunks, vectors)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		cfg:       b.cfg,
		dimension: dim,
		chunks:    vectorstore.Sequence(chunks),
		vectors:   make([][]float64, len(vectors)),
		norms:     make([]float64, len(vectors)),
		entry:     -1,
		maxLevel:  -1,
		rng:       rand.New(rand.NewSource(b.cfg.Seed)),
	}
	for i, v := range vectors {
		idx.vectors[i] = append([]float64(nil), v...)
		idx.norms[i] = vectorstore.Norm(v)
	}

	if len(vectors) < b.cfg.ExactThreshold {
		return idx, nil
	}
	idx.graph = make([][][]int, len(vectors))
	for i := range vectors {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, domain.NewIndexBuildError("build", err)
			}
		}
		idx.insert(i)
	}
	idx.rng = nil
	return idx, nil
}

// Index is immutable after Build and safe for concurrent searches.
type Index struct {
	cfg       Config
	dimension int
	chunks    []domain.Chunk
	vectors   [][]float64
	norms     []float64

	// graph[node][layer] lists neighbour node ids; nil for exact indexes.
	graph    [][][]int
	entry    int
	maxLevel int
	rng      *rand.Rand
}

func (i *Index) Len() int { return len(i.chunks) }

func (i *Index) Close() error { return nil }

// Exact reports whether searches scan every vector.
func (i *Index) Exact() bool { return i.graph == nil }

func (i *Index) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if err := vectorstore.CheckQuery(vector, i.dimension); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.NewQueryError("search", err)
	}
	if topK <= 0 {
		return []domain.SearchResult{}, nil
	}
	if i.Exact() {
		return vectorstore.ExactSearch(i.chunks, i.vectors, i.norms, vector, topK), nil
	}

	qn := vectorstore.Norm(vector)
	ep := i.entry
	for l := i.maxLevel; l > 0; l-- {
		ep = i.greedy(vector, qn, ep, l)
	}
	candidates := i.searchLayer(vector, qn, ep, max(i.cfg.EfSearch, topK), 0)

	results := make([]domain.SearchResult, len(candidates))
	for j, c := range candidates {
		results[j] = domain.SearchResult{Chunk: i.chunks[c.id], Score: 1 - c.dist}
	}
	return vectorstore.Top(results, topK), nil
}

func (i *Index) distance(q []float64, qn float64, node int) float64 {
	return 1 - vectorstore.Cosine(q, i.vectors[node], qn, i.norms[node])
}

// randomLevel draws floor(-ln(U) * mL), capped at maxLevels.
func (i *Index) randomLevel() int {
	u := 1 - i.rng.Float64() // (0, 1]
	level := int(math.Floor(-math.Log(u) * i.cfg.ML))
	return min(level, maxLevels)
}

func (i *Index) insert(node int) {
	level := i.randomLevel()
	i.graph[node] = make([][]int, level+1)

	if i.entry < 0 {
		i.entry = node
		i.maxLevel = level
		return
	}

	q, qn := i.vectors[node], i.norms[node]
	ep := i.entry
	for l := i.maxLevel; l > level; l-- {
		ep = i.greedy(q, qn, ep, l)
	}

	for l := min(level, i.maxLevel); l >= 0; l-- {
		candidates := i.searchLayer(q, qn, ep, i.cfg.EfConstruction, l)
		limit := i.cfg.M
		if l == 0 {
			limit = i.cfg.MMax0
		}
		if len(candidates) > limit {
			candidates = candidates[:limit]
		}

		i.graph[node][l] = make([]int, 0, len(candidates))
		for _, c := range candidates {
			i.graph[node][l] = append(i.graph[node][l], c.id)
			i.graph[c.id][l] = append(i.graph[c.id][l], node)
			if len(i.graph[c.id][l]) > limit {
				i.graph[c.id][l] = i.prune(c.id, i.graph[c.id][l], limit)
			}
		}
		if len(candidates) > 0 {
			ep = candidates[0].id
		}
	}

	if level > i.maxLevel {
		i.entry = node
		i.maxLevel = level
	}
}

// greedy walks layer l towards the query until no neighbour is closer.
func (i *Index) greedy(q []float64, qn float64, ep, l int) int {
	best := i.distance(q, qn, ep)
	for changed := true; changed; {
		changed = false
		if l >= len(i.graph[ep]) {
			break
		}
		for _, n := range i.graph[ep][l] {
			if d := i.distance(q, qn, n); d < best {
				best, ep, changed = d, n, true
			}
		}
	}
	return ep
}

// searchLayer performs a beam search of width ef on layer l and returns the
// visited nodes closest first.
func (i *Index) searchLayer(q []float64, qn float64, ep, ef, l int) []candidate {
	visited := map[int]struct{}{ep: {}}
	d := i.distance(q, qn, ep)
	frontier := &candidateHeap{}
	found := &candidateHeap{farthestFirst: true}
	heap.Push(frontier, candidate{id: ep, dist: d})
	heap.Push(found, candidate{id: ep, dist: d})

	for frontier.Len() > 0 {
		closest := heap.Pop(frontier).(candidate)
		if closest.dist > found.items[0].dist {
			break
		}
		if l >= len(i.graph[closest.id]) {
			continue
		}
		for _, n := range i.graph[closest.id][l] {
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}
			dn := i.distance(q, qn, n)
			if found.Len() < ef || dn < found.items[0].dist {
				heap.Push(frontier, candidate{id: n, dist: dn})
				heap.Push(found, candidate{id: n, dist: dn})
				if found.Len() > ef {
					heap.Pop(found)
				}
			}
		}
	}

	out := make([]candidate, found.Len())
	for j := len(out) - 1; j >= 0; j-- {
		out[j] = heap.Pop(found).(candidate)
	}
	return out
}

// prune keeps the limit neighbours closest to node.
func (i *Index) prune(node int, neighbours []int, limit int) []int {
	h := &candidateHeap{}
	for _, n := range neighbours {
		heap.Push(h, candidate{id: n, dist: 1 - vectorstore.Cosine(i.vectors[node], i.vectors[n], i.norms[node], i.norms[n])})
	}
	out := make([]int, 0, limit)
	for h.Len() > 0 && len(out) < limit {
		out = append(out, heap.Pop(h).(candidate).id)
	}
	return out
}

type candidate struct {
	id   int
	dist float64
}

// candidateHeap is a min-heap by distance, or a max-heap when
// farthestFirst is set. Equal distances order by node id.
type candidateHeap struct {
	items         []candidate
	farthestFirst bool
}

func (h *candidateHeap) Len() int { return len(h.items) }

func (h *candidateHeap) Less(a, b int) bool {
	x, y := h.items[a], h.items[b]
	if x.dist != y.dist {
		if h.farthestFirst {
			return x.dist > y.dist
		}
		return x.dist < y.dist
	}
	if h.farthestFirst {
		return x.id > y.id
	}
	return x.id < y.id
}

func (h *candidateHeap) Swap(a, b int) { h.items[a], h.items[b] = h.items[b], h.items[a] }

func (h *candidateHeap) Push(x any) { h.items = append(h.items, x.(candidate)) }

func (h *candidateHeap) Pop() any {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}
