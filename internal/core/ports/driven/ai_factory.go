package driven

import (
	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// AIServiceFactory creates AI services based on configuration
type AIServiceFactory interface {
	// CreateEmbeddingService creates an embedding service from settings
	// Returns nil, nil if settings are not configured
	CreateEmbeddingService(settings *domain.EmbeddingSettings) (EmbeddingService, error)

	// CreateBiasAssessor creates a bias assessor from settings
	// Returns nil, nil if settings are not configured
	CreateBiasAssessor(settings *domain.LLMSettings) (BiasAssessor, error)

	// CreateContentRewriter creates a content rewriter from settings
	// Returns nil, nil if settings are not configured
	CreateContentRewriter(settings *domain.LLMSettings) (ContentRewriter, error)
}
