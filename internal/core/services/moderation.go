package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driving"
	"github.com/custodia-labs/quizcorpus/internal/corpus"
)

// Ensure moderationService implements ModerationService
var _ driving.ModerationService = (*moderationService)(nil)

// DefaultHistoryLimit bounds History when the caller passes no limit.
const DefaultHistoryLimit = 50

// ModerationConfig holds the collaborators of the moderation service
type ModerationConfig struct {
	Store       driven.ModerationStore
	Corpus      *corpus.Handle
	Corrections driving.CorrectionService
	Logger      *slog.Logger
	Now         func() time.Time
}

type moderationService struct {
	store       driven.ModerationStore
	corpus      *corpus.Handle
	corrections driving.CorrectionService
	logger      *slog.Logger
	now         func() time.Time
}

// NewModerationService creates a new ModerationService
func NewModerationService(cfg ModerationConfig) driving.ModerationService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &moderationService{
		store:       cfg.Store,
		corpus:      cfg.Corpus,
		corrections: cfg.Corrections,
		logger:      logger,
		now:         now,
	}
}

// Enqueue adds a pending review item
func (s *moderationService) Enqueue(ctx context.Context, req domain.EnqueueRequest) (string, error) {
	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.IsValid() {
		return "", fmt.Errorf("%w: unknown priority %q", domain.ErrInvalidInput, req.Priority)
	}

	item := &domain.ModerationItem{
		ReviewID:    domain.GenerateID(),
		FeedbackRef: req.FeedbackRef,
		Priority:    priority,
		Status:      domain.ReviewStatusPending,
		Reason:      req.Reason,
		AutoAction:  req.AutoAction,
		CreatedAt:   s.now(),
	}

	err := s.corpus.WithWriteLock(ctx, func(ctx context.Context) error {
		return s.store.Create(ctx, item)
	})
	if err != nil {
		return "", fmt.Errorf("enqueue review: %w", err)
	}

	s.logger.Info("review enqueued",
		"review_id", item.ReviewID,
		"priority", item.Priority,
		"reason", item.Reason,
	)
	return item.ReviewID, nil
}

// ListPending returns pending items, most urgent first and oldest first within a priority
func (s *moderationService) ListPending(ctx context.Context) ([]*domain.ModerationItem, error) {
	items, err := s.store.List(ctx, domain.ModerationFilter{Status: domain.ReviewStatusPending})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Seq < b.Seq
	})
	return items, nil
}

// Get returns one review item
func (s *moderationService) Get(ctx context.Context, reviewID string) (*domain.ModerationItem, error) {
	if reviewID == "" {
		return nil, fmt.Errorf("%w: review_id is required", domain.ErrInvalidInput)
	}
	return s.store.Get(ctx, reviewID)
}

// Resolve records an administrator decision. Corpus-mutating decisions apply
// their correction before the item is closed; if that fails the item stays pending.
func (s *moderationService) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.ModerationItem, error) {
	decision, err := domain.ParseDecision(string(req.Decision))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Actor) == "" {
		return nil, fmt.Errorf("%w: actor is required", domain.ErrInvalidInput)
	}
	if decision.MutatesCorpus() && strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required for %s", domain.ErrInvalidInput, decision)
	}

	var resolved *domain.ModerationItem
	err = s.corpus.WithWriteLock(ctx, func(ctx context.Context) error {
		item, err := s.store.Get(ctx, req.ReviewID)
		if err != nil {
			return err
		}
		if !item.IsPending() {
			return fmt.Errorf("review %s: %w", req.ReviewID, domain.ErrAlreadyResolved)
		}

		resolution := &domain.Resolution{
			Decision: decision,
			Actor:    req.Actor,
			Notes:    req.Notes,
		}

		if decision.MutatesCorpus() {
			slot := s.resolveSlot(item, req)
			doc, err := s.corrections.ApplyCorrection(ctx, domain.CorrectionRequest{
				Concept:    slot.Concept,
				Difficulty: slot.Difficulty,
				AgeBand:    slot.AgeBand,
				Text:       req.Text,
				Reason:     fmt.Sprintf("%s by %s (review %s)", decision, req.Actor, item.ReviewID),
			})
			if err != nil {
				return fmt.Errorf("apply correction: %w", err)
			}
			resolution.AppliedDocument = doc.Ref()
		}

		resolution.ResolvedAt = s.now()
		if err := s.store.Resolve(ctx, item.ReviewID, resolution); err != nil {
			if resolution.AppliedDocument != nil {
				s.logger.Error("correction committed but review not resolved",
					"review_id", item.ReviewID,
					"document_id", resolution.AppliedDocument.DocumentID,
					"error", err,
				)
			}
			return err
		}

		item.Status = domain.ReviewStatusResolved
		item.Resolution = resolution
		resolved = item
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrAlreadyResolved) && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("review resolution failed", "review_id", req.ReviewID, "decision", decision, "error", err)
		}
		return nil, err
	}

	s.logger.Info("review resolved",
		"review_id", resolved.ReviewID,
		"decision", decision,
		"actor", req.Actor,
	)
	return resolved, nil
}

// resolveSlot picks the correction target: explicit request fields first,
// then the auto-corrected document, then the feedback that raised the item.
func (s *moderationService) resolveSlot(item *domain.ModerationItem, req domain.ResolveRequest) domain.Slot {
	slot := domain.Slot{
		Concept:    item.FeedbackRef.Concept,
		Difficulty: req.Difficulty,
		AgeBand:    req.AgeBand,
	}

	if item.AutoAction != nil {
		if doc, err := s.corpus.Snapshot().Get(item.AutoAction.DocumentID); err == nil {
			if slot.Concept == "" {
				slot.Concept = doc.Concept
			}
			if slot.Difficulty == "" {
				slot.Difficulty = doc.Difficulty
			}
			if slot.AgeBand == "" {
				slot.AgeBand = doc.AgeBand
			}
		}
	}

	if slot.Difficulty == "" {
		slot.Difficulty = item.FeedbackRef.Difficulty
	}
	if slot.AgeBand == "" {
		slot.AgeBand = item.FeedbackRef.AgeBand
	}
	return slot
}

// Accuracy returns approve / (approve + reject) over resolved items
func (s *moderationService) Accuracy(ctx context.Context) (float64, error) {
	resolved, err := s.store.List(ctx, domain.ModerationFilter{Status: domain.ReviewStatusResolved})
	if err != nil {
		return 0, err
	}
	return domain.Accuracy(decisionCounts(resolved)), nil
}

// Stats summarises the whole queue
func (s *moderationService) Stats(ctx context.Context) (*domain.ModerationStats, error) {
	items, err := s.store.List(ctx, domain.ModerationFilter{})
	if err != nil {
		return nil, err
	}

	stats := &domain.ModerationStats{
		Total:             len(items),
		PendingByPriority: make(map[domain.Priority]int),
		Decisions:         make(map[domain.Decision]int),
	}
	for _, p := range domain.Priorities {
		stats.PendingByPriority[p] = 0
	}

	var resolved []*domain.ModerationItem
	for _, item := range items {
		if item.IsManualFlag() {
			stats.ManualBiasFlags++
		}
		if item.IsPending() {
			stats.Pending++
			stats.PendingByPriority[item.Priority]++
			continue
		}
		stats.Resolved++
		resolved = append(resolved, item)
	}

	stats.Decisions = decisionCounts(resolved)
	stats.Accuracy = domain.Accuracy(stats.Decisions)
	return stats, nil
}

// History returns resolved items, newest resolution first
func (s *moderationService) History(ctx context.Context, limit int) ([]*domain.ModerationItem, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	items, err := s.store.List(ctx, domain.ModerationFilter{Status: domain.ReviewStatusResolved})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		return resolvedAt(items[i]).After(resolvedAt(items[j]))
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// FlagBias raises an urgent review on behalf of an administrator
func (s *moderationService) FlagBias(ctx context.Context, flag domain.ManualFlag) (string, error) {
	if strings.TrimSpace(flag.Concept) == "" {
		return "", fmt.Errorf("%w: concept is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(flag.Description) == "" {
		return "", fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}

	return s.Enqueue(ctx, domain.EnqueueRequest{
		FeedbackRef: domain.FeedbackRef{
			QuizID:     domain.ManualBiasFlag,
			UserID:     flag.Actor,
			Comments:   flag.Description,
			Concept:    flag.Concept,
			Difficulty: flag.Difficulty,
			AgeBand:    flag.AgeBand,
		},
		Priority: domain.PriorityUrgent,
		Reason:   fmt.Sprintf("manual bias flag: %s", flag.Description),
	})
}

func decisionCounts(items []*domain.ModerationItem) map[domain.Decision]int {
	counts := make(map[domain.Decision]int)
	for _, item := range items {
		if item.Resolution != nil {
			counts[item.Resolution.Decision]++
		}
	}
	return counts
}

func resolvedAt(item *domain.ModerationItem) time.Time {
	if item.Resolution == nil {
		return time.Time{}
	}
	return item.Resolution.ResolvedAt
}
