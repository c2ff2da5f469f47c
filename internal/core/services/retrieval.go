package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driving"
	"github.com/custodia-labs/quizcorpus/internal/corpus"
	"github.com/custodia-labs/quizcorpus/internal/retry"
	"github.com/custodia-labs/quizcorpus/internal/runtime"
)

// Ensure retrievalService implements RetrievalService
var _ driving.RetrievalService = (*retrievalService)(nil)

// RetrievalConfig holds the collaborators of the retrieval service
type RetrievalConfig struct {
	Corpus   *corpus.Handle
	Services *runtime.Services
	Options  domain.RetrievalOptions
	Retry    *retry.Config
	Logger   *slog.Logger
}

type retrievalService struct {
	corpus   *corpus.Handle
	services *runtime.Services
	opts     domain.RetrievalOptions
	retry    *retry.Config
	logger   *slog.Logger
}

// NewRetrievalService creates a new RetrievalService
func NewRetrievalService(cfg RetrievalConfig) driving.RetrievalService {
	opts := cfg.Options
	defaults := domain.DefaultRetrievalOptions()
	if opts.DefaultK <= 0 {
		opts.DefaultK = defaults.DefaultK
	}
	if opts.MaxK <= 0 {
		opts.MaxK = defaults.MaxK
	}
	if opts.OverFetch <= 0 {
		opts.OverFetch = defaults.OverFetch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &retrievalService{
		corpus:   cfg.Corpus,
		services: cfg.Services,
		opts:     opts,
		retry:    cfg.Retry,
		logger:   logger,
	}
}

// Retrieve embeds the query and returns the nearest current documents.
// All candidates come from one snapshot, so a concurrent correction is
// either entirely visible or not at all.
func (s *retrievalService) Retrieve(ctx context.Context, query string, k int, filters *domain.RetrievalFilters) (*domain.RetrievalResult, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = s.opts.DefaultK
	}
	if k > s.opts.MaxK {
		k = s.opts.MaxK
	}

	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	snap := s.corpus.Snapshot()
	docs, err := s.search(snap, vector, k, filters)
	if err != nil {
		return nil, err
	}

	if filters.IsEmpty() {
		filters = nil
	}
	return &domain.RetrievalResult{
		Query:     query,
		K:         k,
		Documents: docs,
		Filters:   filters,
		Took:      time.Since(start),
	}, nil
}

func (s *retrievalService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("%w: no embedding service configured", domain.ErrEmbeddingUnavailable)
	}

	vector, err := retry.DoWithResult(ctx, s.retry, func() ([]float32, error) {
		return embedder.EmbedQuery(ctx, query)
	})
	if err != nil {
		s.logger.Warn("query embedding failed", "error", err)
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	return vector, nil
}

// search over-fetches candidates so that filtering still leaves k results,
// doubling the candidate count until it does or the index is exhausted.
func (s *retrievalService) search(snap *corpus.Snapshot, vector []float32, k int, filters *domain.RetrievalFilters) ([]*domain.RankedDocument, error) {
	total := snap.IndexLen()
	if total == 0 {
		return []*domain.RankedDocument{}, nil
	}

	candidates := k * s.opts.OverFetch
	if candidates > total {
		candidates = total
	}

	for {
		neighbors, err := snap.Query(vector, candidates)
		if err != nil {
			return nil, err
		}

		results := make([]*domain.RankedDocument, 0, k)
		for _, n := range neighbors {
			doc, err := snap.Get(n.ID)
			if err != nil || !doc.IsCurrent() {
				continue
			}
			if !filters.Matches(doc) {
				continue
			}
			results = append(results, &domain.RankedDocument{Document: doc, Distance: n.Distance})
			if len(results) == k {
				return results, nil
			}
		}

		if candidates >= total {
			return results, nil
		}
		candidates *= 2
		if candidates > total {
			candidates = total
		}
	}
}
