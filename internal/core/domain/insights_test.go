package domain

import "testing"

func TestSummarizeFeedback_Empty(t *testing.T) {
	got := SummarizeFeedback(nil)
	if got.TotalFeedbacks != 0 || got.OverallHealth != HealthNoData {
		t.Errorf("unexpected empty insights: %+v", got)
	}
	if got.NeedsImprovement == nil || len(got.NeedsImprovement) != 0 {
		t.Errorf("expected an empty improvement list, got %v", got.NeedsImprovement)
	}
}

func TestSummarizeFeedback(t *testing.T) {
	records := []FeedbackRecord{
		{Concept: "saving", Rating: 5, Perception: PerceptionJustRight},
		{Concept: "budgeting", Rating: 2, HasBias: true, Perception: PerceptionTooHard},
		{Concept: "saving", Rating: 4, Perception: PerceptionTooEasy},
		{Concept: "budgeting", Rating: 3},
	}

	got := SummarizeFeedback(records)

	if got.TotalFeedbacks != 4 {
		t.Errorf("TotalFeedbacks = %d, want 4", got.TotalFeedbacks)
	}
	if got.AverageRating != 3.5 {
		t.Errorf("AverageRating = %v, want 3.5", got.AverageRating)
	}
	if got.BiasDetectedCount != 1 || got.BiasPercentage != 25 {
		t.Errorf("bias = %d / %v%%, want 1 / 25%%", got.BiasDetectedCount, got.BiasPercentage)
	}
	want := map[DifficultyPerception]int{PerceptionTooEasy: 1, PerceptionJustRight: 1, PerceptionTooHard: 1}
	for k, v := range want {
		if got.DifficultyDistribution[k] != v {
			t.Errorf("distribution[%s] = %d, want %d", k, got.DifficultyDistribution[k], v)
		}
	}
	if len(got.NeedsImprovement) != 1 {
		t.Fatalf("expected one concept needing improvement, got %+v", got.NeedsImprovement)
	}
	c := got.NeedsImprovement[0]
	if c.Concept != "budgeting" || c.AverageRating != 2.5 || c.FeedbackCount != 2 {
		t.Errorf("unexpected concept rating: %+v", c)
	}
	if got.OverallHealth != HealthNeedsAttention {
		t.Errorf("OverallHealth = %q, want %q", got.OverallHealth, HealthNeedsAttention)
	}
}

func TestSummarizeFeedback_Health(t *testing.T) {
	tests := []struct {
		name    string
		records []FeedbackRecord
		want    string
	}{
		{"high ratings no bias", []FeedbackRecord{{Concept: "a", Rating: 4}, {Concept: "a", Rating: 5}}, HealthGood},
		{"high ratings with bias", []FeedbackRecord{{Concept: "a", Rating: 5, HasBias: true}}, HealthNeedsAttention},
		{"low ratings", []FeedbackRecord{{Concept: "a", Rating: 3}, {Concept: "a", Rating: 4}}, HealthNeedsAttention},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SummarizeFeedback(tt.records).OverallHealth; got != tt.want {
				t.Errorf("OverallHealth = %q, want %q", got, tt.want)
			}
		})
	}
}
