package vectorindex

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

var _ driven.VectorIndex = (*HNSW)(nil)

// HNSWConfig holds graph parameters.
type HNSWConfig struct {
	// M is the maximum number of neighbors per node. Default: 16.
	M int

	// EfSearch is the number of candidates considered during search. Default: 100.
	EfSearch int

	// Ml is the level generation factor. Default: 0.25.
	Ml float64

	// ExactBelow switches to a linear scan for indexes smaller than this. Default: 256.
	ExactBelow int
}

func (c HNSWConfig) withDefaults() HNSWConfig {
	if c.M == 0 {
		c.M = 16
	}
	if c.EfSearch == 0 {
		c.EfSearch = 100
	}
	if c.Ml == 0 {
		c.Ml = 0.25
	}
	if c.ExactBelow == 0 {
		c.ExactBelow = 256
	}
	return c
}

// HNSW answers queries from a Hierarchical Navigable Small World graph
// built by github.com/coder/hnsw.
//
// The vector map is the source of truth. The graph is rebuilt lazily on the
// first query after a mutation, since hnsw.Graph.Delete can leave dangling
// neighbor pointers. Snapshots are read-only once published, so in practice
// the graph is built once per snapshot. Returned distances are recomputed
// with the index metric and share the Flat tie-break.
type HNSW struct {
	dims    int
	metric  domain.DistanceMetric
	cfg     HNSWConfig
	vectors map[string][]float32

	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	dirty bool
}

// NewHNSW creates an empty HNSW index.
func NewHNSW(dims int, metric domain.DistanceMetric, cfg HNSWConfig) *HNSW {
	return &HNSW{
		dims:    dims,
		metric:  metric,
		cfg:     cfg.withDefaults(),
		vectors: make(map[string][]float32),
		dirty:   true,
	}
}

func (h *HNSW) Insert(id string, vector []float32) error {
	if err := checkDimensions(h.dims, vector); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vectors[id] = copyVector(vector)
	h.dirty = true
	return nil
}

func (h *HNSW) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.vectors[id]; !ok {
		return
	}
	delete(h.vectors, id)
	h.dirty = true
}

func (h *HNSW) Query(vector []float32, k int) ([]domain.Neighbor, error) {
	if err := checkDimensions(h.dims, vector); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	h.mu.RLock()
	n := len(h.vectors)
	if n == 0 {
		h.mu.RUnlock()
		return nil, nil
	}
	if n < h.cfg.ExactBelow || k >= n {
		defer h.mu.RUnlock()
		return scan(h.metric, h.vectors, vector, k), nil
	}
	h.mu.RUnlock()

	g := h.ensureGraph()
	nodes := g.Search(vector, k)

	out := make([]domain.Neighbor, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, domain.Neighbor{ID: node.Key, Distance: Distance(h.metric, vector, node.Value)})
	}
	sortNeighbors(out)
	return out, nil
}

// ensureGraph returns a graph reflecting the current vectors.
func (h *HNSW) ensureGraph() *hnsw.Graph[string] {
	h.mu.RLock()
	if !h.dirty {
		g := h.graph
		h.mu.RUnlock()
		return g
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dirty {
		h.graph = h.build()
		h.dirty = false
	}
	return h.graph
}

// build constructs a graph from the vector map in id order with a fixed
// seed, so the same vectors always give the same graph. Caller holds h.mu.
func (h *HNSW) build() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = h.cfg.M
	g.EfSearch = h.cfg.EfSearch
	g.Ml = h.cfg.Ml
	g.Rng = rand.New(rand.NewSource(1))
	if h.metric == domain.MetricCosine {
		g.Distance = hnsw.CosineDistance
	} else {
		g.Distance = hnsw.EuclideanDistance
	}

	ids := make([]string, 0, len(h.vectors))
	for id := range h.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := make([]hnsw.Node[string], 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, hnsw.MakeNode(id, h.vectors[id]))
	}
	if len(nodes) > 0 {
		g.Add(nodes...)
	}
	return g
}

func (h *HNSW) Contains(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.vectors[id]
	return ok
}

func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vectors)
}

func (h *HNSW) Dimensions() int               { return h.dims }
func (h *HNSW) Metric() domain.DistanceMetric { return h.metric }

func (h *HNSW) Records() []domain.IndexRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return records(h.vectors)
}

// Clone copies the vector map. The copy builds its own graph on first query.
func (h *HNSW) Clone() driven.VectorIndex {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c := NewHNSW(h.dims, h.metric, h.cfg)
	for id, v := range h.vectors {
		c.vectors[id] = v
	}
	return c
}
