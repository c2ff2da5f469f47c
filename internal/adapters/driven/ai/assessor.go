package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

// Ensure assessors implement BiasAssessor
var (
	_ driven.BiasAssessor = (*LLMAssessor)(nil)
	_ driven.BiasAssessor = (*KeywordAssessor)(nil)
)

const assessSystemPrompt = "You are an educational content bias expert."

const assessPrompt = `Analyze the following learner feedback about a financial education quiz for children.

Feedback: %s

Analyze for the following types of bias:
1. Gender bias - Does the content stereotype or exclude any gender?
2. Cultural bias - Is the content culturally insensitive or exclusive?
3. Age appropriateness - Is the content suitable for the age group?
4. Stereotypes - Does the content perpetuate harmful stereotypes?
5. Accessibility - Are there concerns about content accessibility?
6. Economic bias - Does it assume certain economic backgrounds?

Reply with a JSON object:
{
    "has_bias": true/false,
    "bias_types": ["gender", "cultural", ...],
    "severity": "low/medium/high",
    "specific_issues": ["description of each issue"],
    "recommendations": ["suggestions to fix the bias"],
    "confidence_score": 0.0-1.0
}`

// LLMAssessor asks a chat model for a structured bias verdict.
type LLMAssessor struct {
	chat    chatModel
	limiter *rate.Limiter
	now     func() time.Time
}

func newLLMAssessor(chat chatModel, requestsPerMinute int) *LLMAssessor {
	return &LLMAssessor{chat: chat, limiter: newLimiter(requestsPerMinute), now: time.Now}
}

// NewOpenAIAssessor creates an assessor backed by an OpenAI-compatible chat endpoint.
func NewOpenAIAssessor(apiKey, baseURL, model string, requestsPerMinute int) *LLMAssessor {
	if model == "" {
		model = "gpt-4o"
	}
	return newLLMAssessor(newOpenAIChat(apiKey, baseURL, model), requestsPerMinute)
}

// NewAzureAssessor creates an assessor backed by an Azure OpenAI deployment.
func NewAzureAssessor(apiKey, endpoint, apiVersion, deployment string, requestsPerMinute int) *LLMAssessor {
	return newLLMAssessor(newAzureChat(apiKey, endpoint, apiVersion, deployment), requestsPerMinute)
}

// NewAnthropicAssessor creates an assessor backed by the Anthropic messages API.
func NewAnthropicAssessor(apiKey, baseURL, model string, requestsPerMinute int) *LLMAssessor {
	if model == "" {
		model = defaultAnthropicModel
	}
	return newLLMAssessor(newAnthropicChat(apiKey, baseURL, model), requestsPerMinute)
}

// Assess returns the model's verdict on text
func (a *LLMAssessor) Assess(ctx context.Context, text string) (*domain.BiasAssessment, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBiasAssessmentUnavailable, err)
	}

	reply, err := a.chat.complete(ctx, chatRequest{
		system:      assessSystemPrompt,
		prompt:      fmt.Sprintf(assessPrompt, text),
		temperature: 0.3,
		maxTokens:   800,
		jsonReply:   true,
	})
	if err != nil {
		return nil, openAIError(domain.ErrBiasAssessmentUnavailable, err)
	}

	var verdict domain.BiasAssessment
	if err := json.Unmarshal([]byte(extractJSON(reply)), &verdict); err != nil {
		return nil, fmt.Errorf("%w: unparseable verdict: %v", domain.ErrBiasAssessmentUnavailable, err)
	}
	verdict.Normalize()
	verdict.AnalyzedAt = a.now()
	return &verdict, nil
}

func (a *LLMAssessor) Model() string { return a.chat.model() }
func (a *LLMAssessor) Close() error  { return nil }

// Ping sends a short probe
func (a *LLMAssessor) Ping(ctx context.Context) error {
	_, err := a.chat.complete(ctx, chatRequest{system: "Reply with OK.", prompt: "ping", maxTokens: 5})
	if err != nil {
		return openAIError(domain.ErrBiasAssessmentUnavailable, err)
	}
	return nil
}

// biasLexicon maps phrases to the bias type they suggest.
var biasLexicon = map[string][]string{
	"gender":   {"only boys", "only girls", "boys only", "girls only", "sexist", "gender", "like a girl", "man's job", "woman's job"},
	"cultural": {"racist", "culture", "cultural", "religion", "foreign", "accent"},
	"economic": {"rich", "poor", "expensive", "can't afford", "cannot afford", "wealthy"},
	"age":      {"too old", "too young", "babyish", "age appropriate", "inappropriate"},
	"stereotype": {
		"stereotype", "cliche", "always the", "all the",
	},
	"accessibility": {"can't read", "cannot read", "accessible", "disability", "blind", "deaf"},
}

// KeywordAssessor is an offline heuristic. It reports bias when feedback
// mentions known phrases, grading severity by how many bias types match.
type KeywordAssessor struct {
	now func() time.Time
}

// NewKeywordAssessor creates the offline assessor.
func NewKeywordAssessor() *KeywordAssessor {
	return &KeywordAssessor{now: time.Now}
}

// Assess scans text for bias phrases
func (k *KeywordAssessor) Assess(ctx context.Context, text string) (*domain.BiasAssessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lower := strings.ToLower(text)
	verdict := &domain.BiasAssessment{Severity: domain.SeverityLow, Confidence: 0.6, AnalyzedAt: k.now()}

	for _, biasType := range sortedKeys(biasLexicon) {
		for _, phrase := range biasLexicon[biasType] {
			if strings.Contains(lower, phrase) {
				verdict.Types = append(verdict.Types, biasType)
				verdict.Issues = append(verdict.Issues, fmt.Sprintf("feedback mentions %q", phrase))
				break
			}
		}
	}

	switch n := len(verdict.Types); {
	case n == 0:
		verdict.Confidence = 0.7
	case n == 1:
		verdict.HasBias = true
		verdict.Severity = domain.SeverityMedium
		verdict.Confidence = 0.75
	default:
		verdict.HasBias = true
		verdict.Severity = domain.SeverityHigh
		verdict.Confidence = 0.8
	}
	if verdict.HasBias {
		verdict.Recommendations = []string{"use diverse characters and neutral examples"}
	}
	return verdict, nil
}

func (k *KeywordAssessor) Model() string                  { return "keyword-heuristic" }
func (k *KeywordAssessor) Ping(ctx context.Context) error { return nil }
func (k *KeywordAssessor) Close() error                   { return nil }
