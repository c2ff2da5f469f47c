package domain

import (
	"fmt"
	"strings"
	"time"
)

// Severity grades a detected bias
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity normalises a provider-supplied severity. Unknown values map to low.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// BiasAssessment is the verdict of the bias signal port
type BiasAssessment struct {
	HasBias         bool      `json:"has_bias"`
	Types           []string  `json:"bias_types"`
	Severity        Severity  `json:"severity"`
	Confidence      float64   `json:"confidence_score"`
	Issues          []string  `json:"specific_issues,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}

// Normalize clamps confidence into [0,1] and fills a valid severity.
func (a *BiasAssessment) Normalize() {
	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}
	a.Severity = ParseSeverity(string(a.Severity))
}

// UnavailableAssessment is used when the assessor cannot be reached.
// Zero confidence routes the feedback to human review.
func UnavailableAssessment(err error) *BiasAssessment {
	return &BiasAssessment{
		Severity:        SeverityLow,
		Issues:          []string{fmt.Sprintf("automatic analysis failed: %v", err)},
		Recommendations: []string{"manual review recommended"},
		AnalyzedAt:      time.Now(),
	}
}

// RewriteRequest asks the rewriter for inclusive replacement text
type RewriteRequest struct {
	Slot        Slot            `json:"slot"`
	CurrentText string          `json:"current_text,omitempty"`
	Assessment  *BiasAssessment `json:"assessment,omitempty"`
	Comments    string          `json:"comments,omitempty"`
}
