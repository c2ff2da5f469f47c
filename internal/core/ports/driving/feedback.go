package driving

import (
	"context"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// FeedbackService turns learner feedback into corrections and review items
type FeedbackService interface {
	Submit(ctx context.Context, sub domain.FeedbackSubmission) (*domain.FeedbackOutcome, error)

	// Insights summarizes the most recent processed submissions.
	Insights(ctx context.Context) (*domain.FeedbackInsights, error)
}
