package driving

import (
	"context"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// RetrievalService answers semantic queries against the current corpus
type RetrievalService interface {
	// Retrieve returns up to k current documents nearest to query.
	// k <= 0 uses the configured default. Fewer than k results is not an error.
	Retrieve(ctx context.Context, query string, k int, filters *domain.RetrievalFilters) (*domain.RetrievalResult, error)
}
