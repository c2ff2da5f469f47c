package domain

import (
	"fmt"
	"strings"
	"time"
)

// DifficultyPerception is how a learner felt about quiz difficulty
type DifficultyPerception string

const (
	PerceptionTooEasy   DifficultyPerception = "too_easy"
	PerceptionJustRight DifficultyPerception = "just_right"
	PerceptionTooHard   DifficultyPerception = "too_hard"
)

// Feedback actions reported back to the caller
const (
	ActionFlaggedForReview         = "flagged_for_review"
	ActionBiasAssessed             = "bias_assessed"
	ActionAssessmentFailed         = "bias_assessment_failed"
	ActionAutoCorrected            = "knowledge_base_updated"
	ActionAutoCorrectionFailed     = "auto_correction_failed"
	ActionSiblingCorrectionsQueued = "sibling_corrections_queued"
	ActionAddedToQueue             = "added_to_admin_queue"
	ActionDifficultyAdjustment     = "difficulty_adjustment_needed"
	ActionPersonalization          = "personalization_improvement_needed"
)

// FeedbackSubmission is what a learner sends after a quiz
type FeedbackSubmission struct {
	QuizID               string               `json:"quiz_id"`
	UserID               string               `json:"user_id"`
	Concept              string               `json:"concept"`
	Difficulty           string               `json:"difficulty"`
	AgeBand              string               `json:"age_band"`
	Rating               int                  `json:"rating"` // 1-5
	Comments             string               `json:"comments,omitempty"`
	DifficultyPerception DifficultyPerception `json:"difficulty_perception,omitempty"`
	RelevanceScore       *int                 `json:"relevance_score,omitempty"` // 1-5
}

// Validate checks field ranges.
func (f *FeedbackSubmission) Validate() error {
	if strings.TrimSpace(f.Concept) == "" {
		return fmt.Errorf("%w: concept is required", ErrInvalidInput)
	}
	if f.Rating < 1 || f.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	if f.RelevanceScore != nil && (*f.RelevanceScore < 1 || *f.RelevanceScore > 5) {
		return fmt.Errorf("%w: relevance_score must be between 1 and 5", ErrInvalidInput)
	}
	return nil
}

// Slot returns the triple the feedback is about.
func (f *FeedbackSubmission) Slot() Slot {
	return Slot{Concept: f.Concept, Difficulty: f.Difficulty, AgeBand: f.AgeBand}
}

// Ref builds the typed feedback reference stored on review items.
func (f *FeedbackSubmission) Ref(feedbackID string, a *BiasAssessment) FeedbackRef {
	rating := f.Rating
	ref := FeedbackRef{
		FeedbackID: feedbackID,
		QuizID:     f.QuizID,
		UserID:     f.UserID,
		Rating:     &rating,
		Comments:   f.Comments,
		Concept:    f.Concept,
		Difficulty: f.Difficulty,
		AgeBand:    f.AgeBand,
	}
	if a != nil {
		confidence := a.Confidence
		ref.Confidence = &confidence
		ref.Severity = a.Severity
		ref.BiasTypes = append([]string(nil), a.Types...)
	}
	return ref
}

// FeedbackOutcome reports what the feedback handler did
type FeedbackOutcome struct {
	FeedbackID     string          `json:"feedback_id"`
	Actions        []string        `json:"actions_taken"`
	Assessment     *BiasAssessment `json:"assessment,omitempty"`
	Classification Classification  `json:"classification"`
	ReviewID       string          `json:"review_id,omitempty"`
	AutoAction     *DocumentRef    `json:"auto_action_taken,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// LevelBand maps a difficulty level to its age band.
type LevelBand struct {
	Difficulty string `json:"difficulty" yaml:"difficulty"`
	AgeBand    string `json:"age_band" yaml:"age_band"`
}

// DefaultLevels mirrors the three learner levels of the quiz engine.
func DefaultLevels() []LevelBand {
	return []LevelBand{
		{Difficulty: "beginner", AgeBand: "age_6_9"},
		{Difficulty: "intermediate", AgeBand: "age_10_12"},
		{Difficulty: "advanced", AgeBand: "age_13_17"},
	}
}
