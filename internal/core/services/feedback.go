package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driving"
	"github.com/custodia-labs/quizcorpus/internal/retry"
	"github.com/custodia-labs/quizcorpus/internal/runtime"
)

// Ensure feedbackService implements FeedbackService
var _ driving.FeedbackService = (*feedbackService)(nil)

// FeedbackConfig holds the collaborators of the feedback service
type FeedbackConfig struct {
	Services    *runtime.Services
	Regenerator *Regenerator
	Moderation  driving.ModerationService
	// Queue receives correction tasks for the other levels of a concept.
	// Nil disables sibling corrections.
	Queue  driven.TaskQueue
	Policy domain.Policy
	Levels []domain.LevelBand
	Retry  *retry.Config
	Logger *slog.Logger
	// HistorySize bounds the submissions kept for Insights. Default 1000.
	HistorySize int
}

const defaultFeedbackHistory = 1000

type feedbackService struct {
	services    *runtime.Services
	regenerator *Regenerator
	moderation  driving.ModerationService
	queue       driven.TaskQueue
	policy      domain.Policy
	levels      []domain.LevelBand
	retry       *retry.Config
	logger      *slog.Logger

	historyMu   sync.Mutex
	history     []domain.FeedbackRecord
	historySize int
}

// NewFeedbackService creates a new FeedbackService
func NewFeedbackService(cfg FeedbackConfig) driving.FeedbackService {
	levels := cfg.Levels
	if len(levels) == 0 {
		levels = domain.DefaultLevels()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	historySize := cfg.HistorySize
	if historySize <= 0 {
		historySize = defaultFeedbackHistory
	}
	return &feedbackService{
		historySize: historySize,
		services:    cfg.Services,
		regenerator: cfg.Regenerator,
		moderation:  cfg.Moderation,
		queue:       cfg.Queue,
		policy:      cfg.Policy,
		levels:      levels,
		retry:       cfg.Retry,
		logger:      logger,
	}
}

// Submit assesses and classifies learner feedback, auto-corrects the corpus
// when the bias verdict allows it and enqueues a review when policy says so.
func (s *feedbackService) Submit(ctx context.Context, sub domain.FeedbackSubmission) (*domain.FeedbackOutcome, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	outcome := &domain.FeedbackOutcome{
		FeedbackID: domain.GenerateID(),
		Timestamp:  time.Now(),
	}
	logger := s.logger.With("feedback_id", outcome.FeedbackID)

	var assessment *domain.BiasAssessment
	if strings.TrimSpace(sub.Comments) != "" {
		a, err := s.assess(ctx, sub.Comments)
		if err != nil {
			logger.Warn("bias assessment unavailable, routing to review", "error", err)
			a = domain.UnavailableAssessment(err)
			outcome.Actions = append(outcome.Actions, domain.ActionAssessmentFailed)
		} else {
			outcome.Actions = append(outcome.Actions, domain.ActionBiasAssessed)
		}
		assessment = a
		outcome.Assessment = a
	}

	ref := sub.Ref(outcome.FeedbackID, assessment)
	classification := domain.Classify(s.policy, ref, assessment)
	outcome.Classification = classification

	if classification.AutoCorrect {
		s.autoCorrect(ctx, logger, sub, assessment, outcome)
	}

	if classification.Enqueue {
		reviewID, err := s.moderation.Enqueue(ctx, domain.EnqueueRequest{
			FeedbackRef: ref,
			Priority:    classification.Priority,
			AutoAction:  outcome.AutoAction,
			Reason:      classification.Reason(),
		})
		if err != nil {
			return nil, fmt.Errorf("enqueue review: %w", err)
		}
		outcome.ReviewID = reviewID
		outcome.Actions = append(outcome.Actions, domain.ActionFlaggedForReview, domain.ActionAddedToQueue)
	}

	if sub.DifficultyPerception == domain.PerceptionTooEasy || sub.DifficultyPerception == domain.PerceptionTooHard {
		outcome.Actions = append(outcome.Actions, domain.ActionDifficultyAdjustment)
	}
	if sub.RelevanceScore != nil && *sub.RelevanceScore <= 2 {
		outcome.Actions = append(outcome.Actions, domain.ActionPersonalization)
	}

	s.record(sub, assessment)

	logger.Info("feedback processed",
		"concept", sub.Concept,
		"rating", sub.Rating,
		"priority", classification.Priority,
		"review_id", outcome.ReviewID,
		"actions", strings.Join(outcome.Actions, ","),
	)
	return outcome, nil
}

// Insights summarizes the retained submissions.
func (s *feedbackService) Insights(_ context.Context) (*domain.FeedbackInsights, error) {
	s.historyMu.Lock()
	records := make([]domain.FeedbackRecord, len(s.history))
	copy(records, s.history)
	s.historyMu.Unlock()

	insights := domain.SummarizeFeedback(records)
	return &insights, nil
}

func (s *feedbackService) record(sub domain.FeedbackSubmission, assessment *domain.BiasAssessment) {
	rec := domain.FeedbackRecord{
		Concept:    sub.Concept,
		Rating:     sub.Rating,
		HasBias:    assessment != nil && assessment.HasBias,
		Perception: sub.DifficultyPerception,
	}

	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	if len(s.history) >= s.historySize {
		// Drop the oldest.
		copy(s.history, s.history[1:])
		s.history = s.history[:len(s.history)-1]
	}
	s.history = append(s.history, rec)
}

func (s *feedbackService) assess(ctx context.Context, text string) (*domain.BiasAssessment, error) {
	assessor := s.services.BiasAssessor()
	if assessor == nil {
		return nil, fmt.Errorf("%w: no bias assessor configured", domain.ErrBiasAssessmentUnavailable)
	}

	a, err := retry.DoWithResult(ctx, s.retry, func() (*domain.BiasAssessment, error) {
		return assessor.Assess(ctx, text)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrBiasAssessmentUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrBiasAssessmentUnavailable, err)
		}
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: empty assessment", domain.ErrBiasAssessmentUnavailable)
	}
	a.Normalize()
	return a, nil
}

// autoCorrect rewrites the slot the learner saw and queues the other levels
// of the same concept. Failures are reported as actions; the review item
// still carries the feedback to a human.
func (s *feedbackService) autoCorrect(ctx context.Context, logger *slog.Logger, sub domain.FeedbackSubmission, assessment *domain.BiasAssessment, outcome *domain.FeedbackOutcome) {
	reason := fmt.Sprintf("auto-correction for feedback %s", outcome.FeedbackID)
	slot := sub.Slot()

	if slot.Validate() == nil && s.regenerator != nil {
		doc, err := s.regenerator.Regenerate(ctx, RegenerateRequest{
			Slot:       slot,
			Reason:     reason,
			Comments:   sub.Comments,
			Assessment: assessment,
		})
		if err != nil {
			logger.Error("auto-correction failed", "slot", slot.String(), "error", err)
			outcome.Actions = append(outcome.Actions, domain.ActionAutoCorrectionFailed)
		} else {
			outcome.AutoAction = doc.Ref()
			outcome.Actions = append(outcome.Actions, domain.ActionAutoCorrected)
		}
	}

	if s.queue == nil {
		return
	}

	var tasks []*domain.Task
	for _, level := range s.levels {
		sibling := domain.Slot{Concept: sub.Concept, Difficulty: level.Difficulty, AgeBand: level.AgeBand}
		if sibling == slot {
			continue
		}
		tasks = append(tasks, domain.NewCorrectionTask(sibling, reason, outcome.FeedbackID, sub.Comments))
	}
	if len(tasks) == 0 {
		return
	}
	if err := s.queue.EnqueueBatch(ctx, tasks); err != nil {
		logger.Error("failed to queue sibling corrections", "error", err)
		return
	}
	outcome.Actions = append(outcome.Actions, domain.ActionSiblingCorrectionsQueued)
}
