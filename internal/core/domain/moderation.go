package domain

import (
	"fmt"
	"time"
)

// Priority orders review items. Lower rank is more urgent.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}

// Rank returns 0 for urgent through 3 for low. Unknown priorities rank last.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	return p.Rank() < 4
}

// MoreUrgent returns whichever of p and other ranks higher.
func (p Priority) MoreUrgent(other Priority) Priority {
	if other.Rank() < p.Rank() {
		return other
	}
	return p
}

// ReviewStatus is the lifecycle state of a review item
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusResolved ReviewStatus = "resolved"
)

// Decision is an administrator's verdict on a review item
type Decision string

const (
	DecisionApprove     Decision = "approve"
	DecisionReject      Decision = "reject"
	DecisionFlagBias    Decision = "flag_bias"
	DecisionForceUpdate Decision = "force_update"
	DecisionDismiss     Decision = "dismiss"
)

// Decisions lists every decision.
var Decisions = []Decision{DecisionApprove, DecisionReject, DecisionFlagBias, DecisionForceUpdate, DecisionDismiss}

// ParseDecision accepts the canonical names plus the legacy "update_content" alias.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject, DecisionFlagBias, DecisionForceUpdate, DecisionDismiss:
		return Decision(s), nil
	case "update_content":
		return DecisionForceUpdate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDecision, s)
	}
}

// MutatesCorpus reports whether resolving with this decision writes a correction.
func (d Decision) MutatesCorpus() bool {
	return d == DecisionFlagBias || d == DecisionForceUpdate
}

// FeedbackRef is the signal that triggered a review. Every field is optional.
type FeedbackRef struct {
	FeedbackID string   `json:"feedback_id,omitempty"`
	QuizID     string   `json:"quiz_id,omitempty"`
	UserID     string   `json:"user_id,omitempty"`
	Rating     *int     `json:"rating,omitempty"`
	Comments   string   `json:"comments,omitempty"`
	Concept    string   `json:"concept,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	AgeBand    string   `json:"age_band,omitempty"`
	Severity   Severity `json:"severity,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	BiasTypes  []string `json:"bias_types,omitempty"`
}

// Resolution records how a review item was closed
type Resolution struct {
	Decision        Decision     `json:"decision"`
	Actor           string       `json:"actor"`
	Notes           string       `json:"notes,omitempty"`
	ResolvedAt      time.Time    `json:"resolved_at"`
	AppliedDocument *DocumentRef `json:"applied_document,omitempty"` // Set for flag_bias / force_update
}

// ModerationItem is a queued review
type ModerationItem struct {
	ReviewID    string       `json:"review_id"`
	Seq         int64        `json:"seq"` // Store-assigned insertion order
	FeedbackRef FeedbackRef  `json:"feedback_ref"`
	Priority    Priority     `json:"priority"`
	Status      ReviewStatus `json:"status"`
	Reason      string       `json:"reason,omitempty"`
	AutoAction  *DocumentRef `json:"auto_action_taken,omitempty"`
	Resolution  *Resolution  `json:"resolution,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// IsPending reports whether the item still awaits a decision.
func (m *ModerationItem) IsPending() bool {
	return m.Status == ReviewStatusPending
}

// ManualBiasFlag marks a synthetic item raised by an administrator.
const ManualBiasFlag = "manual_bias_flag"

// IsManualFlag reports whether the item was raised by an administrator.
func (m *ModerationItem) IsManualFlag() bool {
	return m.FeedbackRef.QuizID == ManualBiasFlag
}

// EnqueueRequest creates a review item
type EnqueueRequest struct {
	FeedbackRef FeedbackRef  `json:"feedback_ref"`
	Priority    Priority     `json:"priority"`
	AutoAction  *DocumentRef `json:"auto_action_taken,omitempty"`
	Reason      string       `json:"reason,omitempty"`
}

// ResolveRequest closes a review item. Text and the slot fields are used by
// decisions that write a correction.
type ResolveRequest struct {
	ReviewID   string   `json:"review_id"`
	Decision   Decision `json:"decision"`
	Actor      string   `json:"actor"`
	Notes      string   `json:"notes,omitempty"`
	Text       string   `json:"text,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	AgeBand    string   `json:"age_band,omitempty"`
}

// ManualFlag is an administrator-raised bias report
type ManualFlag struct {
	Concept     string `json:"concept"`
	Difficulty  string `json:"difficulty,omitempty"`
	AgeBand     string `json:"age_band,omitempty"`
	Description string `json:"description"`
	Actor       string `json:"actor"`
}

// ModerationFilter narrows store listings
type ModerationFilter struct {
	Status   ReviewStatus
	Priority Priority
	Limit    int
	Offset   int
}

// ModerationStats summarises the queue
type ModerationStats struct {
	Total             int              `json:"total"`
	Pending           int              `json:"pending"`
	Resolved          int              `json:"resolved"`
	PendingByPriority map[Priority]int `json:"pending_by_priority"`
	Decisions         map[Decision]int `json:"decisions"`
	ManualBiasFlags   int              `json:"manual_bias_flags"`
	Accuracy          float64          `json:"accuracy"`
}

// Accuracy returns approve / (approve + reject), or 0 when neither occurred.
// Other decisions do not judge the automatic verdict and are excluded.
func Accuracy(decisions map[Decision]int) float64 {
	approved := decisions[DecisionApprove]
	judged := approved + decisions[DecisionReject]
	if judged == 0 {
		return 0
	}
	return float64(approved) / float64(judged)
}
