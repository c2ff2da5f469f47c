package driven

import (
	"context"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// ModerationStore persists review items. Items are never deleted.
type ModerationStore interface {
	// Create inserts a new pending item and assigns its Seq.
	Create(ctx context.Context, item *domain.ModerationItem) error

	// Get retrieves an item by review ID.
	Get(ctx context.Context, reviewID string) (*domain.ModerationItem, error)

	// Resolve records the resolution on a pending item.
	// Returns domain.ErrNotFound for unknown ids and domain.ErrAlreadyResolved
	// when the item is not pending. Exactly one resolution is ever recorded.
	Resolve(ctx context.Context, reviewID string, resolution *domain.Resolution) error

	// List retrieves items matching the filter, ordered by Seq.
	List(ctx context.Context, filter domain.ModerationFilter) ([]*domain.ModerationItem, error)

	// Ping checks if the store backend is healthy.
	Ping(ctx context.Context) error
}
