package driven

import (
	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// VectorIndex holds the embeddings of current documents and answers
// k-nearest-neighbor queries under a metric fixed at construction.
//
// An index belonging to a published snapshot is only read. Writers mutate
// a Clone and publish it as a whole, so implementations need only make
// concurrent Query calls safe.
type VectorIndex interface {
	// Insert adds or replaces the vector for id.
	// Returns domain.ErrDimensionMismatch for a vector of the wrong length.
	Insert(id string, vector []float32) error

	// Remove deletes id. Removing an absent id is a no-op.
	Remove(id string)

	// Query returns up to k neighbors by ascending distance, ties broken by id.
	Query(vector []float32, k int) ([]domain.Neighbor, error)

	// Contains reports whether id has a vector.
	Contains(id string) bool

	// Len returns the number of vectors.
	Len() int

	// Dimensions returns the vector length accepted by the index.
	Dimensions() int

	// Metric returns the distance metric.
	Metric() domain.DistanceMetric

	// Records returns every entry sorted by id.
	Records() []domain.IndexRecord

	// Clone returns an independent copy.
	Clone() VectorIndex
}
