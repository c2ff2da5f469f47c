// Package vectorindex provides the VectorIndex implementations: an exact
// brute-force index and an approximate HNSW graph.
package vectorindex

import (
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

// Kind selects an index implementation
type Kind string

const (
	KindFlat Kind = "flat"
	KindHNSW Kind = "hnsw"
)

// Config holds index construction parameters.
type Config struct {
	Kind       Kind
	Dimensions int
	Metric     domain.DistanceMetric
	HNSW       HNSWConfig
}

// New creates an empty index of the configured kind.
func New(cfg Config) (driven.VectorIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}
	metric, err := domain.ParseDistanceMetric(string(cfg.Metric))
	if err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case "", KindFlat:
		return NewFlat(cfg.Dimensions, metric), nil
	case KindHNSW:
		return NewHNSW(cfg.Dimensions, metric, cfg.HNSW), nil
	default:
		return nil, fmt.Errorf("%w: unknown index kind %q", domain.ErrInvalidInput, cfg.Kind)
	}
}

// Distance computes the distance between a and b under metric.
// Both vectors must have the same length.
func Distance(metric domain.DistanceMetric, a, b []float32) float64 {
	if metric == domain.MetricCosine {
		return cosineDistance(a, b)
	}
	return squaredL2(a, b)
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// cosineDistance is 1 - cosine similarity. A zero vector is at distance 1
// from everything.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// sortNeighbors orders by ascending distance with ties broken by id.
func sortNeighbors(ns []domain.Neighbor) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].Distance != ns[j].Distance {
			return ns[i].Distance < ns[j].Distance
		}
		return ns[i].ID < ns[j].ID
	})
}

func checkDimensions(want int, vector []float32) error {
	if len(vector) != want {
		return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, want, len(vector))
	}
	for _, v := range vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: vector contains NaN or Inf", domain.ErrInvalidInput)
		}
	}
	return nil
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
