package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

// Ensure rewriters implement ContentRewriter
var (
	_ driven.ContentRewriter = (*LLMRewriter)(nil)
	_ driven.ContentRewriter = (*TemplateRewriter)(nil)
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

const rewriteSystemPrompt = "You are an expert in creating inclusive, unbiased educational content for children."

// LLMRewriter asks a chat model for replacement lesson text.
type LLMRewriter struct {
	chat    chatModel
	limiter *rate.Limiter
}

func newLLMRewriter(chat chatModel, requestsPerMinute int) *LLMRewriter {
	return &LLMRewriter{chat: chat, limiter: newLimiter(requestsPerMinute)}
}

// NewOpenAIRewriter creates a rewriter backed by an OpenAI-compatible chat endpoint.
func NewOpenAIRewriter(apiKey, baseURL, model string, requestsPerMinute int) *LLMRewriter {
	if model == "" {
		model = "gpt-4o"
	}
	return newLLMRewriter(newOpenAIChat(apiKey, baseURL, model), requestsPerMinute)
}

// NewAzureRewriter creates a rewriter backed by an Azure OpenAI deployment.
func NewAzureRewriter(apiKey, endpoint, apiVersion, deployment string, requestsPerMinute int) *LLMRewriter {
	return newLLMRewriter(newAzureChat(apiKey, endpoint, apiVersion, deployment), requestsPerMinute)
}

// NewAnthropicRewriter creates a rewriter backed by the Anthropic messages API.
func NewAnthropicRewriter(apiKey, baseURL, model string, requestsPerMinute int) *LLMRewriter {
	if model == "" {
		model = defaultAnthropicModel
	}
	return newLLMRewriter(newAnthropicChat(apiKey, baseURL, model), requestsPerMinute)
}

// Rewrite drafts new text for req.Slot
func (r *LLMRewriter) Rewrite(ctx context.Context, req *domain.RewriteRequest) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRewriteUnavailable, err)
	}

	reply, err := r.chat.complete(ctx, chatRequest{
		system:      rewriteSystemPrompt,
		prompt:      rewritePrompt(req),
		temperature: 0.7,
		maxTokens:   1200,
	})
	if err != nil {
		return "", openAIError(domain.ErrRewriteUnavailable, err)
	}

	text := strings.TrimSpace(reply)
	if text == "" {
		return "", fmt.Errorf("%w: %v", domain.ErrRewriteUnavailable, errEmptyReply)
	}
	return text, nil
}

func (r *LLMRewriter) Model() string { return r.chat.model() }
func (r *LLMRewriter) Close() error  { return nil }

// Ping sends a short probe
func (r *LLMRewriter) Ping(ctx context.Context) error {
	_, err := r.chat.complete(ctx, chatRequest{system: "Reply with OK.", prompt: "ping", maxTokens: 5})
	if err != nil {
		return openAIError(domain.ErrRewriteUnavailable, err)
	}
	return nil
}

func rewritePrompt(req *domain.RewriteRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Educational content about %q has been flagged for bias.\n\n", req.Slot.Concept)
	fmt.Fprintf(&b, "Audience: %s learners, %s.\n", req.Slot.Difficulty, ageBandLabel(req.Slot.AgeBand))

	if a := req.Assessment; a != nil {
		b.WriteString("\nBias details:\n")
		fmt.Fprintf(&b, "- Types: %s\n", strings.Join(a.Types, ", "))
		fmt.Fprintf(&b, "- Severity: %s\n", a.Severity)
		if len(a.Issues) > 0 {
			fmt.Fprintf(&b, "- Issues: %s\n", strings.Join(a.Issues, "; "))
		}
		if len(a.Recommendations) > 0 {
			fmt.Fprintf(&b, "- Recommendations: %s\n", strings.Join(a.Recommendations, "; "))
		}
	}
	if req.Comments != "" {
		fmt.Fprintf(&b, "\nLearner feedback: %s\n", req.Comments)
	}
	if req.CurrentText != "" {
		fmt.Fprintf(&b, "\nCurrent text:\n%s\n", req.CurrentText)
	}

	b.WriteString(`
Write improved content for this audience that:
1. Is inclusive of all genders, cultures, and backgrounds
2. Avoids stereotypes
3. Uses diverse examples and characters
4. Is accessible to all learners
5. Uses age-appropriate language

Reply with the lesson text only.`)
	return b.String()
}

// TemplateRewriter is the offline fallback. It produces a neutral lesson
// built from the slot tags so corrections still land without a model.
type TemplateRewriter struct{}

// NewTemplateRewriter creates the offline rewriter.
func NewTemplateRewriter() *TemplateRewriter {
	return &TemplateRewriter{}
}

var conceptLessons = map[string]string{
	"saving":          "Saving means keeping some money now so you can use it later.",
	"budgeting":       "A budget is a plan for how money coming in will be spent and saved.",
	"needs_vs_wants":  "Needs are things we must have to live well; wants are extras that are nice to have.",
	"earning":         "Earning means getting money in return for work or ideas.",
	"spending":        "Spending wisely means comparing choices before you buy.",
	"investing":       "Investing means putting money to work so it can grow over time.",
	"banking":         "A bank keeps money safe and can help it grow with interest.",
	"giving":          "Giving means sharing money or time to help others.",
	"credit":          "Credit lets you borrow money now and pay it back later, often with interest.",
	"interest":        "Interest is extra money paid for saving or charged for borrowing.",
	"financial_goals": "A financial goal is something you plan and save for step by step.",
}

// Rewrite fills the lesson template for req.Slot
func (t *TemplateRewriter) Rewrite(ctx context.Context, req *domain.RewriteRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	concept := strings.ReplaceAll(req.Slot.Concept, "_", " ")
	lesson, ok := conceptLessons[req.Slot.Concept]
	if !ok {
		lesson = fmt.Sprintf("Learning about %s helps everyone make good choices with money.", concept)
	}

	return fmt.Sprintf("%s Amara, Diego, Mei and Sam each practise %s in their own way, "+
		"whatever their family, background or ability. This lesson is written for %s learners, %s.",
		lesson, concept, req.Slot.Difficulty, ageBandLabel(req.Slot.AgeBand)), nil
}

func (t *TemplateRewriter) Model() string                  { return "template" }
func (t *TemplateRewriter) Ping(ctx context.Context) error { return nil }
func (t *TemplateRewriter) Close() error                   { return nil }

// ageBandLabel turns "age_6_9" into "ages 6-9".
func ageBandLabel(band string) string {
	parts := strings.Split(strings.TrimPrefix(band, "age_"), "_")
	if len(parts) == 2 {
		return fmt.Sprintf("ages %s-%s", parts[0], parts[1])
	}
	return strings.ReplaceAll(band, "_", " ")
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
