package driven

import (
	"context"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// CorpusStore is the durable representation of the corpus.
type CorpusStore interface {
	// Load reads the last committed image. A store with nothing written yet
	// returns an empty image with generation 0. Inconsistent files return
	// domain.ErrCorruptPersistedState.
	Load(ctx context.Context) (*domain.CorpusImage, error)

	// Save atomically replaces the stored image.
	Save(ctx context.Context, image *domain.CorpusImage) error

	// Generation returns the generation of the stored image without loading it.
	Generation(ctx context.Context) (uint64, error)
}
