package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driving"
	"github.com/custodia-labs/quizcorpus/internal/corpus"
	"github.com/custodia-labs/quizcorpus/internal/retry"
	"github.com/custodia-labs/quizcorpus/internal/runtime"
	"github.com/custodia-labs/quizcorpus/internal/textnorm"
)

// Ensure correctionService implements CorrectionService
var _ driving.CorrectionService = (*correctionService)(nil)

// CorrectionConfig holds the collaborators of the correction service
type CorrectionConfig struct {
	Corpus     *corpus.Handle
	Services   *runtime.Services
	Normalizer *textnorm.Pipeline
	Retry      *retry.Config
	Logger     *slog.Logger
}

type correctionService struct {
	corpus     *corpus.Handle
	services   *runtime.Services
	normalizer *textnorm.Pipeline
	retry      *retry.Config
	logger     *slog.Logger
}

// NewCorrectionService creates a new CorrectionService
func NewCorrectionService(cfg CorrectionConfig) driving.CorrectionService {
	normalizer := cfg.Normalizer
	if normalizer == nil {
		normalizer = textnorm.DefaultPipeline()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &correctionService{
		corpus:     cfg.Corpus,
		services:   cfg.Services,
		normalizer: normalizer,
		retry:      cfg.Retry,
		logger:     logger,
	}
}

// ApplyCorrection embeds the new text outside the writer lock, then
// supersedes the slot's current document and swaps its vector in one commit.
func (s *correctionService) ApplyCorrection(ctx context.Context, req domain.CorrectionRequest) (*domain.Document, error) {
	slot := req.Slot()
	if err := slot.Validate(); err != nil {
		return nil, err
	}
	text, err := s.normalizer.Normalize(req.Text)
	if err != nil {
		return nil, err
	}

	vectors, err := s.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	var created *domain.Document
	_, err = s.corpus.Update(ctx, func(tx *corpus.Tx) error {
		doc := &domain.Document{
			ID:         domain.GenerateID(),
			Text:       text,
			Concept:    slot.Concept,
			Difficulty: slot.Difficulty,
			AgeBand:    slot.AgeBand,
			Version:    1,
			Reason:     req.Reason,
			CreatedAt:  tx.Now(),
			UpdatedAt:  tx.Now(),
		}

		prior, err := tx.GetCurrent(slot)
		switch {
		case err == nil:
			doc.Version = prior.Version + 1
			if err := tx.MarkSuperseded(prior.ID, doc.ID); err != nil {
				return err
			}
			tx.Index().Remove(prior.ID)
		case errors.Is(err, domain.ErrNotFound):
			// First document for the slot
		default:
			return err
		}

		if err := tx.Put(doc); err != nil {
			return err
		}
		if err := tx.Index().Insert(doc.ID, vectors[0]); err != nil {
			return err
		}
		created = doc
		return nil
	})
	if err != nil {
		s.logger.Error("correction failed", "slot", slot.String(), "error", err)
		return nil, err
	}

	s.logger.Info("correction applied",
		"slot", slot.String(),
		"document_id", created.ID,
		"version", created.Version,
		"reason", req.Reason,
	)
	return created.Clone(), nil
}

// Get returns any stored document version by id
func (s *correctionService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.corpus.Snapshot().Get(id)
}

// GetCurrent returns the current document of a slot
func (s *correctionService) GetCurrent(ctx context.Context, slot domain.Slot) (*domain.Document, error) {
	if err := slot.Validate(); err != nil {
		return nil, err
	}
	return s.corpus.Snapshot().GetCurrent(slot)
}

// Versions returns every document stored for a slot, oldest first
func (s *correctionService) Versions(ctx context.Context, slot domain.Slot) ([]*domain.Document, error) {
	if err := slot.Validate(); err != nil {
		return nil, err
	}
	versions := s.corpus.Snapshot().Versions(slot)
	if len(versions) == 0 {
		return nil, fmt.Errorf("documents for %s: %w", slot, domain.ErrNotFound)
	}
	return versions, nil
}

// Seed inserts starter documents for empty slots in a single commit.
// Slots that already have a current document are left alone.
func (s *correctionService) Seed(ctx context.Context, seeds []domain.SeedDocument) (*domain.SeedResult, error) {
	result := &domain.SeedResult{}

	snap := s.corpus.Snapshot()
	pending := make([]domain.SeedDocument, 0, len(seeds))
	texts := make([]string, 0, len(seeds))
	seen := make(map[string]bool)

	for _, seed := range seeds {
		slot := domain.Slot{Concept: seed.Concept, Difficulty: seed.Difficulty, AgeBand: seed.AgeBand}
		if err := slot.Validate(); err != nil {
			return nil, fmt.Errorf("seed %s: %w", slot, err)
		}
		if seen[slot.Key()] {
			result.Skipped++
			continue
		}
		seen[slot.Key()] = true

		if _, err := snap.GetCurrent(slot); err == nil {
			result.Skipped++
			continue
		}
		text, err := s.normalizer.Normalize(seed.Text)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", slot, err)
		}
		seed.Text = text
		pending = append(pending, seed)
		texts = append(texts, text)
	}

	if len(pending) == 0 {
		return result, nil
	}

	vectors, err := s.embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	inserted := 0
	_, err = s.corpus.Update(ctx, func(tx *corpus.Tx) error {
		inserted = 0
		for i, seed := range pending {
			slot := domain.Slot{Concept: seed.Concept, Difficulty: seed.Difficulty, AgeBand: seed.AgeBand}
			if _, err := tx.GetCurrent(slot); err == nil {
				continue // filled by a concurrent writer
			}
			doc := &domain.Document{
				ID:         domain.GenerateID(),
				Text:       seed.Text,
				Concept:    seed.Concept,
				Difficulty: seed.Difficulty,
				AgeBand:    seed.AgeBand,
				Version:    1,
				Reason:     "seed",
				CreatedAt:  tx.Now(),
				UpdatedAt:  tx.Now(),
			}
			if err := tx.Put(doc); err != nil {
				return err
			}
			if err := tx.Index().Insert(doc.ID, vectors[i]); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Inserted = inserted
	result.Skipped += len(pending) - inserted
	s.logger.Info("corpus seeded", "inserted", result.Inserted, "skipped", result.Skipped)
	return result, nil
}

func (s *correctionService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("%w: no embedding service configured", domain.ErrEmbeddingUnavailable)
	}

	vectors, err := retry.DoWithResult(ctx, s.retry, func() ([][]float32, error) {
		return embedder.Embed(ctx, texts)
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			domain.ErrEmbeddingUnavailable, len(texts), len(vectors))
	}
	return vectors, nil
}
