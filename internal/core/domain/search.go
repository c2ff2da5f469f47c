package domain

import (
	"fmt"
	"time"
)

// DistanceMetric is fixed per index at construction
type DistanceMetric string

const (
	MetricL2     DistanceMetric = "l2"     // Squared Euclidean (default)
	MetricCosine DistanceMetric = "cosine" // 1 - cosine similarity
)

// ParseDistanceMetric validates a configured metric name.
func ParseDistanceMetric(s string) (DistanceMetric, error) {
	switch DistanceMetric(s) {
	case "", MetricL2:
		return MetricL2, nil
	case MetricCosine:
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("%w: unknown distance metric %q", ErrInvalidInput, s)
	}
}

// RetrievalFilters narrows retrieval to matching tags. Empty fields match anything.
type RetrievalFilters struct {
	Concept    string `json:"concept,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	AgeBand    string `json:"age_band,omitempty"`
}

// IsEmpty reports whether no filter is set.
func (f *RetrievalFilters) IsEmpty() bool {
	return f == nil || (f.Concept == "" && f.Difficulty == "" && f.AgeBand == "")
}

// Matches reports whether doc satisfies every set filter.
func (f *RetrievalFilters) Matches(doc *Document) bool {
	if f == nil {
		return true
	}
	if f.Concept != "" && f.Concept != doc.Concept {
		return false
	}
	if f.Difficulty != "" && f.Difficulty != doc.Difficulty {
		return false
	}
	if f.AgeBand != "" && f.AgeBand != doc.AgeBand {
		return false
	}
	return true
}

// RetrievalOptions configures the retrieval service
type RetrievalOptions struct {
	DefaultK  int `json:"default_k"`
	MaxK      int `json:"max_k"`
	OverFetch int `json:"over_fetch"` // Candidate multiplier applied to k
}

// DefaultRetrievalOptions returns sensible defaults
func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{
		DefaultK:  5,
		MaxK:      100,
		OverFetch: 3,
	}
}

// RetrievalResult represents the result of a retrieve call
type RetrievalResult struct {
	Query     string            `json:"query"`
	K         int               `json:"k"`
	Documents []*RankedDocument `json:"documents"`
	Filters   *RetrievalFilters `json:"filters,omitempty"`
	Took      time.Duration     `json:"took" swaggertype:"integer" example:"1500000"`
}

// RankedDocument is a retrieved document with its distance to the query
type RankedDocument struct {
	Document *Document `json:"document"`
	Distance float64   `json:"distance"`
}
