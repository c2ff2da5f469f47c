package vectorindex

import (
	"sort"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

var _ driven.VectorIndex = (*Flat)(nil)

// Flat performs exhaustive nearest neighbor search.
// Exact, and fine for corpora of a few thousand documents.
type Flat struct {
	dims    int
	metric  domain.DistanceMetric
	vectors map[string][]float32
}

// NewFlat creates an empty Flat index.
func NewFlat(dims int, metric domain.DistanceMetric) *Flat {
	return &Flat{
		dims:    dims,
		metric:  metric,
		vectors: make(map[string][]float32),
	}
}

func (f *Flat) Insert(id string, vector []float32) error {
	if err := checkDimensions(f.dims, vector); err != nil {
		return err
	}
	f.vectors[id] = copyVector(vector)
	return nil
}

func (f *Flat) Remove(id string) {
	delete(f.vectors, id)
}

func (f *Flat) Query(vector []float32, k int) ([]domain.Neighbor, error) {
	if err := checkDimensions(f.dims, vector); err != nil {
		return nil, err
	}
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}
	return scan(f.metric, f.vectors, vector, k), nil
}

func (f *Flat) Contains(id string) bool {
	_, ok := f.vectors[id]
	return ok
}

func (f *Flat) Len() int                      { return len(f.vectors) }
func (f *Flat) Dimensions() int               { return f.dims }
func (f *Flat) Metric() domain.DistanceMetric { return f.metric }

func (f *Flat) Records() []domain.IndexRecord {
	return records(f.vectors)
}

// Clone copies the id map. Vectors are never mutated after insert, so they are shared.
func (f *Flat) Clone() driven.VectorIndex {
	c := NewFlat(f.dims, f.metric)
	for id, v := range f.vectors {
		c.vectors[id] = v
	}
	return c
}

func scan(metric domain.DistanceMetric, vectors map[string][]float32, query []float32, k int) []domain.Neighbor {
	out := make([]domain.Neighbor, 0, len(vectors))
	for id, v := range vectors {
		out = append(out, domain.Neighbor{ID: id, Distance: Distance(metric, query, v)})
	}
	sortNeighbors(out)
	if k < len(out) {
		out = out[:k]
	}
	return out
}

func records(vectors map[string][]float32) []domain.IndexRecord {
	out := make([]domain.IndexRecord, 0, len(vectors))
	for id, v := range vectors {
		out = append(out, domain.IndexRecord{ID: id, Vector: copyVector(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
