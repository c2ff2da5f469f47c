package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

// Services holds the external AI collaborators. Each can be replaced at
// runtime; callers fetch the current one per request.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// dimensions every embedder must produce, fixed by the corpus index
	dimensions int

	embeddingService driven.EmbeddingService
	biasAssessor     driven.BiasAssessor
	contentRewriter  driven.ContentRewriter
}

// Capabilities reports which collaborators are configured
type Capabilities struct {
	Embedding      bool   `json:"embedding"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	BiasAssessor   bool   `json:"bias_assessor"`
	AssessorModel  string `json:"assessor_model,omitempty"`
	Rewriter       bool   `json:"rewriter"`
	RewriterModel  string `json:"rewriter_model,omitempty"`
	Dimensions     int    `json:"dimensions"`
}

// NewServices creates a registry for embedders of the given dimensionality
func NewServices(dimensions int) *Services {
	return &Services{dimensions: dimensions}
}

// Dimensions returns the vector length required of embedders.
func (s *Services) Dimensions() int {
	return s.dimensions
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// BiasAssessor returns the current bias assessor (may be nil)
func (s *Services) BiasAssessor() driven.BiasAssessor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.biasAssessor
}

// ContentRewriter returns the current rewriter (may be nil)
func (s *Services) ContentRewriter() driven.ContentRewriter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contentRewriter
}

// SetEmbeddingService swaps the embedder without validation. Closes the old one.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil && s.embeddingService != svc {
		_ = s.embeddingService.Close()
	}
	s.embeddingService = svc
}

// SetBiasAssessor swaps the assessor. Closes the old one.
func (s *Services) SetBiasAssessor(svc driven.BiasAssessor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.biasAssessor != nil && s.biasAssessor != svc {
		_ = s.biasAssessor.Close()
	}
	s.biasAssessor = svc
}

// SetContentRewriter swaps the rewriter. Closes the old one.
func (s *Services) SetContentRewriter(svc driven.ContentRewriter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.contentRewriter != nil && s.contentRewriter != svc {
		_ = s.contentRewriter.Close()
	}
	s.contentRewriter = svc
}

// ValidateAndSetEmbedding checks connectivity and dimensionality before
// installing svc. Vectors of another length could not share the index.
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}

	if s.dimensions > 0 && svc.Dimensions() != s.dimensions {
		_ = svc.Close()
		return fmt.Errorf("%w: embedder %s produces %d dimensions, corpus uses %d",
			domain.ErrDimensionMismatch, svc.Model(), svc.Dimensions(), s.dimensions)
	}
	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetEmbeddingService(svc)
	return nil
}

// ValidateAndSetBiasAssessor checks connectivity before installing svc
func (s *Services) ValidateAndSetBiasAssessor(ctx context.Context, svc driven.BiasAssessor) error {
	if svc == nil {
		s.SetBiasAssessor(nil)
		return nil
	}
	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return err
	}
	s.SetBiasAssessor(svc)
	return nil
}

// ValidateAndSetContentRewriter checks connectivity before installing svc
func (s *Services) ValidateAndSetContentRewriter(ctx context.Context, svc driven.ContentRewriter) error {
	if svc == nil {
		s.SetContentRewriter(nil)
		return nil
	}
	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return err
	}
	s.SetContentRewriter(svc)
	return nil
}

// Capabilities reports the configured collaborators.
func (s *Services) Capabilities() Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := Capabilities{Dimensions: s.dimensions}
	if s.embeddingService != nil {
		c.Embedding = true
		c.EmbeddingModel = s.embeddingService.Model()
	}
	if s.biasAssessor != nil {
		c.BiasAssessor = true
		c.AssessorModel = s.biasAssessor.Model()
	}
	if s.contentRewriter != nil {
		c.Rewriter = true
		c.RewriterModel = s.contentRewriter.Model()
	}
	return c
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	if s.biasAssessor != nil {
		_ = s.biasAssessor.Close()
		s.biasAssessor = nil
	}
	if s.contentRewriter != nil {
		_ = s.contentRewriter.Close()
		s.contentRewriter = nil
	}
	return nil
}
