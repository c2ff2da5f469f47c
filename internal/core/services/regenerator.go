package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driving"
	"github.com/custodia-labs/quizcorpus/internal/retry"
	"github.com/custodia-labs/quizcorpus/internal/runtime"
)

// Regenerator drafts replacement text for a slot with the content rewriter
// and commits it as a correction. Feedback handling uses it for the slot the
// learner saw; the worker uses it for queued sibling slots.
type Regenerator struct {
	services    *runtime.Services
	corrections driving.CorrectionService
	retry       *retry.Config
	logger      *slog.Logger
}

// NewRegenerator creates a Regenerator. A nil logger uses slog.Default.
func NewRegenerator(services *runtime.Services, corrections driving.CorrectionService, retryCfg *retry.Config, logger *slog.Logger) *Regenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Regenerator{
		services:    services,
		corrections: corrections,
		retry:       retryCfg,
		logger:      logger,
	}
}

// RegenerateRequest describes one slot to rewrite
type RegenerateRequest struct {
	Slot       domain.Slot
	Reason     string
	Comments   string
	Assessment *domain.BiasAssessment
}

// Regenerate rewrites the current text of req.Slot and applies it.
func (r *Regenerator) Regenerate(ctx context.Context, req RegenerateRequest) (*domain.Document, error) {
	if err := req.Slot.Validate(); err != nil {
		return nil, err
	}

	rewriter := r.services.ContentRewriter()
	if rewriter == nil {
		return nil, fmt.Errorf("%w: no content rewriter configured", domain.ErrRewriteUnavailable)
	}

	rewrite := &domain.RewriteRequest{
		Slot:       req.Slot,
		Assessment: req.Assessment,
		Comments:   req.Comments,
	}
	current, err := r.corrections.GetCurrent(ctx, req.Slot)
	switch {
	case err == nil:
		rewrite.CurrentText = current.Text
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, err
	}

	text, err := retry.DoWithResult(ctx, r.retry, func() (string, error) {
		return rewriter.Rewrite(ctx, rewrite)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrRewriteUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrRewriteUnavailable, err)
		}
		r.logger.Warn("rewrite failed", "slot", req.Slot.String(), "error", err)
		return nil, err
	}

	return r.corrections.ApplyCorrection(ctx, domain.CorrectionRequest{
		Concept:    req.Slot.Concept,
		Difficulty: req.Slot.Difficulty,
		AgeBand:    req.Slot.AgeBand,
		Text:       text,
		Reason:     req.Reason,
	})
}
