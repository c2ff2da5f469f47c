package domain

import "math"

// ConceptNeedsImprovementBelow is the per-concept average rating under which
// a concept is reported as needing improvement.
const ConceptNeedsImprovementBelow = 3.5

// Overall health labels reported by FeedbackInsights.
const (
	HealthGood           = "good"
	HealthNeedsAttention = "needs_attention"
	HealthNoData         = "no_data"
)

// FeedbackRecord is the part of a processed submission kept for aggregation.
type FeedbackRecord struct {
	Concept    string               `json:"concept"`
	Rating     int                  `json:"rating"`
	HasBias    bool                 `json:"has_bias"`
	Perception DifficultyPerception `json:"difficulty_perception,omitempty"`
}

// ConceptRating is a concept whose learners rate it poorly.
type ConceptRating struct {
	Concept       string  `json:"concept"`
	AverageRating float64 `json:"average_rating"`
	FeedbackCount int     `json:"feedback_count"`
}

// FeedbackInsights aggregates recent feedback.
type FeedbackInsights struct {
	TotalFeedbacks         int                          `json:"total_feedbacks"`
	AverageRating          float64                      `json:"average_rating"`
	BiasDetectedCount      int                          `json:"bias_detected_count"`
	BiasPercentage         float64                      `json:"bias_percentage"`
	DifficultyDistribution map[DifficultyPerception]int `json:"difficulty_distribution"`
	NeedsImprovement       []ConceptRating              `json:"concepts_needing_improvement"`
	OverallHealth          string                       `json:"overall_health"`
}

// SummarizeFeedback computes insights over records. Concepts needing
// improvement keep the order in which each concept was first seen.
func SummarizeFeedback(records []FeedbackRecord) FeedbackInsights {
	out := FeedbackInsights{
		DifficultyDistribution: map[DifficultyPerception]int{
			PerceptionTooEasy:   0,
			PerceptionJustRight: 0,
			PerceptionTooHard:   0,
		},
		NeedsImprovement: []ConceptRating{},
		OverallHealth:    HealthNoData,
	}
	if len(records) == 0 {
		return out
	}

	type acc struct{ sum, n int }
	perConcept := make(map[string]*acc)
	var order []string
	sum := 0

	for _, r := range records {
		sum += r.Rating
		if r.HasBias {
			out.BiasDetectedCount++
		}
		if _, ok := out.DifficultyDistribution[r.Perception]; ok {
			out.DifficultyDistribution[r.Perception]++
		}
		a, ok := perConcept[r.Concept]
		if !ok {
			a = &acc{}
			perConcept[r.Concept] = a
			order = append(order, r.Concept)
		}
		a.sum += r.Rating
		a.n++
	}

	total := len(records)
	avg := float64(sum) / float64(total)
	out.TotalFeedbacks = total
	out.AverageRating = round(avg, 2)
	out.BiasPercentage = round(float64(out.BiasDetectedCount)/float64(total)*100, 1)

	for _, c := range order {
		a := perConcept[c]
		cavg := float64(a.sum) / float64(a.n)
		if cavg < ConceptNeedsImprovementBelow {
			out.NeedsImprovement = append(out.NeedsImprovement, ConceptRating{
				Concept:       c,
				AverageRating: cavg,
				FeedbackCount: a.n,
			})
		}
	}

	if avg >= 4.0 && out.BiasDetectedCount == 0 {
		out.OverallHealth = HealthGood
	} else {
		out.OverallHealth = HealthNeedsAttention
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
