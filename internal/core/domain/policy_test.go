package domain

import "testing"

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name        string
		ref         FeedbackRef
		assessment  *BiasAssessment
		enqueue     bool
		priority    Priority
		autoCorrect bool
	}{
		{
			name:       "happy learner",
			ref:        FeedbackRef{Rating: intPtr(5), Comments: "loved it"},
			assessment: &BiasAssessment{HasBias: false, Severity: SeverityLow, Confidence: 0.9},
			enqueue:    false,
		},
		{
			name:        "high severity bias",
			ref:         FeedbackRef{Rating: intPtr(4), Comments: "only boys save money"},
			assessment:  &BiasAssessment{HasBias: true, Severity: SeverityHigh, Confidence: 0.9},
			enqueue:     true,
			priority:    PriorityUrgent,
			autoCorrect: true,
		},
		{
			name:        "medium severity bias",
			ref:         FeedbackRef{Rating: intPtr(4)},
			assessment:  &BiasAssessment{HasBias: true, Severity: SeverityMedium, Confidence: 0.8},
			enqueue:     true,
			priority:    PriorityHigh,
			autoCorrect: true,
		},
		{
			name:       "low severity bias is not queued",
			ref:        FeedbackRef{Rating: intPtr(4)},
			assessment: &BiasAssessment{HasBias: true, Severity: SeverityLow, Confidence: 0.8},
			enqueue:    false,
		},
		{
			name:       "low confidence without bias",
			ref:        FeedbackRef{Rating: intPtr(4)},
			assessment: &BiasAssessment{HasBias: false, Severity: SeverityLow, Confidence: 0.4},
			enqueue:    true,
			priority:   PriorityMedium,
		},
		{
			name:        "low confidence overrides severity",
			ref:         FeedbackRef{Rating: intPtr(4)},
			assessment:  &BiasAssessment{HasBias: true, Severity: SeverityHigh, Confidence: 0.3},
			enqueue:     true,
			priority:    PriorityMedium,
			autoCorrect: false,
		},
		{
			name:        "high severity at half confidence goes to review without correction",
			ref:         FeedbackRef{Rating: intPtr(5)},
			assessment:  &BiasAssessment{HasBias: true, Severity: SeverityHigh, Confidence: 0.5},
			enqueue:     true,
			priority:    PriorityMedium,
			autoCorrect: false,
		},
		{
			name:        "high severity at the confidence threshold corrects",
			ref:         FeedbackRef{Rating: intPtr(5)},
			assessment:  &BiasAssessment{HasBias: true, Severity: SeverityHigh, Confidence: 0.6},
			enqueue:     true,
			priority:    PriorityUrgent,
			autoCorrect: true,
		},
		{
			name:       "rating below floor",
			ref:        FeedbackRef{Rating: intPtr(2)},
			assessment: nil,
			enqueue:    true,
			priority:   PriorityHigh,
		},
		{
			name:       "rating at floor is fine",
			ref:        FeedbackRef{Rating: intPtr(3)},
			assessment: nil,
			enqueue:    false,
		},
		{
			name:       "rating and low confidence take the more urgent",
			ref:        FeedbackRef{Rating: intPtr(1)},
			assessment: &BiasAssessment{Confidence: 0.1},
			enqueue:    true,
			priority:   PriorityHigh,
		},
		{
			name:        "rating and high severity",
			ref:         FeedbackRef{Rating: intPtr(1)},
			assessment:  &BiasAssessment{HasBias: true, Severity: SeverityHigh, Confidence: 0.95},
			enqueue:     true,
			priority:    PriorityUrgent,
			autoCorrect: true,
		},
		{
			name:       "concerning keyword alone",
			ref:        FeedbackRef{Rating: intPtr(4), Comments: "This story felt Sexist"},
			assessment: &BiasAssessment{HasBias: false, Confidence: 0.9},
			enqueue:    true,
			priority:   PriorityUrgent,
		},
		{
			name:       "keyword ignored when another rule fired",
			ref:        FeedbackRef{Rating: intPtr(2), Comments: "unfair and boring"},
			assessment: &BiasAssessment{HasBias: false, Confidence: 0.9},
			enqueue:    true,
			priority:   PriorityHigh,
		},
		{
			name:        "verdict carried on feedback ref",
			ref:         FeedbackRef{Severity: SeverityMedium, Confidence: floatPtr(0.7)},
			assessment:  nil,
			enqueue:     true,
			priority:    PriorityHigh,
			autoCorrect: true,
		},
		{
			name:       "low confidence carried on feedback ref",
			ref:        FeedbackRef{Severity: SeverityHigh, Confidence: floatPtr(0.5)},
			assessment: nil,
			enqueue:    true,
			priority:   PriorityMedium,
		},
		{
			name:    "empty feedback",
			ref:     FeedbackRef{},
			enqueue: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(policy, tt.ref, tt.assessment)

			if c.Enqueue != tt.enqueue {
				t.Fatalf("expected Enqueue=%v, got %v (%s)", tt.enqueue, c.Enqueue, c.Reason())
			}
			if tt.enqueue && c.Priority != tt.priority {
				t.Errorf("expected priority %s, got %s (%s)", tt.priority, c.Priority, c.Reason())
			}
			if c.AutoCorrect != tt.autoCorrect {
				t.Errorf("expected AutoCorrect=%v, got %v", tt.autoCorrect, c.AutoCorrect)
			}
			if c.Enqueue && c.Reason() == "" {
				t.Error("expected a reason when enqueueing")
			}
		})
	}
}

func TestClassifyCustomPolicy(t *testing.T) {
	policy := Policy{RatingFloor: 5, ConfidenceThreshold: 0.9}

	c := Classify(policy, FeedbackRef{Rating: intPtr(4)}, &BiasAssessment{Confidence: 0.95})
	if !c.Enqueue || c.Priority != PriorityHigh {
		t.Errorf("expected high for rating below custom floor, got %+v", c)
	}

	c = Classify(policy, FeedbackRef{Rating: intPtr(5), Comments: "racist"}, &BiasAssessment{Confidence: 0.95})
	if c.Enqueue {
		t.Errorf("expected no keyword rule with empty keyword list, got %+v", c)
	}
}
