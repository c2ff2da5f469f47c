package driving

import (
	"context"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// ModerationService manages the human review queue
type ModerationService interface {
	// Enqueue adds a pending review item and returns its id.
	Enqueue(ctx context.Context, req domain.EnqueueRequest) (string, error)

	// ListPending returns pending items by priority, then age.
	ListPending(ctx context.Context) ([]*domain.ModerationItem, error)

	// Get returns one review item.
	Get(ctx context.Context, reviewID string) (*domain.ModerationItem, error)

	// Resolve records a decision. Decisions that mutate the corpus apply
	// their correction first and leave the item pending when it fails.
	Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.ModerationItem, error)

	// Accuracy returns approve / (approve + reject) over resolved items.
	Accuracy(ctx context.Context) (float64, error)

	// Stats summarises the queue.
	Stats(ctx context.Context) (*domain.ModerationStats, error)

	// History returns resolved items, most recently resolved first.
	History(ctx context.Context, limit int) ([]*domain.ModerationItem, error)

	// FlagBias raises an urgent item on behalf of an administrator.
	FlagBias(ctx context.Context, flag domain.ManualFlag) (string, error)
}
