package driving

import (
	"context"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// CorrectionService replaces corpus documents and exposes their history
type CorrectionService interface {
	// ApplyCorrection supersedes the current document of the request's slot
	// with a new version carrying the given text. The corpus is unchanged on error.
	ApplyCorrection(ctx context.Context, req domain.CorrectionRequest) (*domain.Document, error)

	// Get returns any stored document version by id.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// GetCurrent returns the current document of a slot.
	GetCurrent(ctx context.Context, slot domain.Slot) (*domain.Document, error)

	// Versions returns every document stored for a slot, oldest first.
	Versions(ctx context.Context, slot domain.Slot) ([]*domain.Document, error)

	// Seed inserts starter documents for slots that have no current document.
	Seed(ctx context.Context, docs []domain.SeedDocument) (*domain.SeedResult, error)
}
