package domain

import (
	"fmt"
	"strings"
)

// DefaultConcerningKeywords are comment fragments that always warrant a look.
var DefaultConcerningKeywords = []string{
	"biased", "offensive", "inappropriate", "stereotype",
	"racist", "sexist", "discriminat", "exclusive", "unfair",
}

// Policy holds the thresholds of the enqueue table
type Policy struct {
	// RatingFloor: ratings strictly below this are enqueued at high.
	RatingFloor int `json:"rating_floor"`

	// ConfidenceThreshold: assessments below this go to medium and are never auto-corrected.
	ConfidenceThreshold float64 `json:"confidence_threshold"`

	ConcerningKeywords []string `json:"concerning_keywords"`
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		RatingFloor:         3,
		ConfidenceThreshold: 0.6,
		ConcerningKeywords:  DefaultConcerningKeywords,
	}
}

// Classification is the outcome of Classify
type Classification struct {
	Enqueue     bool     `json:"enqueue"`
	Priority    Priority `json:"priority,omitempty"`
	AutoCorrect bool     `json:"auto_correct"`
	Reasons     []string `json:"reasons,omitempty"`
}

// Reason joins the individual rule reasons.
func (c Classification) Reason() string {
	return strings.Join(c.Reasons, "; ")
}

// Classify maps a feedback signal and its bias verdict to a review priority
// and an auto-correction decision. When several rules fire the most urgent
// priority wins. A nil assessment falls back to the severity and confidence
// carried on the feedback.
func Classify(policy Policy, ref FeedbackRef, assessment *BiasAssessment) Classification {
	var c Classification

	raise := func(p Priority, reason string) {
		if !c.Enqueue {
			c.Priority = p
		} else {
			c.Priority = c.Priority.MoreUrgent(p)
		}
		c.Enqueue = true
		c.Reasons = append(c.Reasons, reason)
	}

	hasBias, severity, confidence, assessed := verdict(ref, assessment)

	if ref.Rating != nil && *ref.Rating < policy.RatingFloor {
		raise(PriorityHigh, fmt.Sprintf("low rating detected: %d", *ref.Rating))
	}

	lowConfidence := assessed && confidence < policy.ConfidenceThreshold
	if lowConfidence {
		raise(PriorityMedium, fmt.Sprintf("low automatic confidence (%.0f%%), possible missed bias", confidence*100))
	} else if hasBias {
		switch severity {
		case SeverityHigh:
			raise(PriorityUrgent, "high severity bias detected")
			c.AutoCorrect = true
		case SeverityMedium:
			raise(PriorityHigh, "medium severity bias detected")
			c.AutoCorrect = true
		}
	}

	if !c.Enqueue && containsAny(ref.Comments, policy.ConcerningKeywords) {
		raise(PriorityUrgent, "feedback contains concerning keywords")
	}

	return c
}

func verdict(ref FeedbackRef, a *BiasAssessment) (hasBias bool, severity Severity, confidence float64, assessed bool) {
	if a != nil {
		return a.HasBias, a.Severity, a.Confidence, true
	}
	if ref.Confidence == nil && ref.Severity == "" {
		return false, "", 0, false
	}
	confidence = 1
	if ref.Confidence != nil {
		confidence = *ref.Confidence
	}
	return ref.Severity != "", ref.Severity, confidence, ref.Confidence != nil
}

func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
