package driven

import (
	"context"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// BiasAssessor scores a piece of text for bias
type BiasAssessor interface {
	// Assess returns a structured verdict for text.
	// Transport and timeout failures wrap domain.ErrBiasAssessmentUnavailable.
	Assess(ctx context.Context, text string) (*domain.BiasAssessment, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the assessor is available
	Ping(ctx context.Context) error

	// Close releases resources held by the assessor
	Close() error
}

// ContentRewriter drafts inclusive replacement text for a corpus slot
type ContentRewriter interface {
	// Rewrite returns new document text for req.Slot.
	// Transport and timeout failures wrap domain.ErrRewriteUnavailable.
	Rewrite(ctx context.Context, req *domain.RewriteRequest) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the rewriter is available
	Ping(ctx context.Context) error

	// Close releases resources held by the rewriter
	Close() error
}
