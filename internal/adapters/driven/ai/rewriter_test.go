package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

var beginnerSaving = domain.Slot{Concept: "saving", Difficulty: "beginner", AgeBand: "age_6_9"}

func TestOpenAIRewriter_Rewrite(t *testing.T) {
	server := chatServer(t, http.StatusOK, "  Priya and Sam both save coins.  ", func(body map[string]any) {
		if _, ok := body["response_format"]; ok {
			t.Error("rewrites should not request JSON")
		}
		messages, _ := body["messages"].([]any)
		user, _ := messages[1].(map[string]any)
		prompt := user["content"].(string)
		for _, want := range []string{"saving", "ages 6-9", "Only boys save.", "gender"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("expected prompt to mention %q", want)
			}
		}
	})
	defer server.Close()

	rewriter := NewOpenAIRewriter("sk-test", server.URL+"/v1", "", 0)
	if rewriter.Model() != "gpt-4o" {
		t.Errorf("expected default model gpt-4o, got %s", rewriter.Model())
	}

	text, err := rewriter.Rewrite(context.Background(), &domain.RewriteRequest{
		Slot:        beginnerSaving,
		CurrentText: "Only boys save.",
		Assessment:  &domain.BiasAssessment{HasBias: true, Types: []string{"gender"}, Severity: domain.SeverityHigh},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Priya and Sam both save coins." {
		t.Errorf("unexpected text %q", text)
	}
}

func TestOpenAIRewriter_EmptyReply(t *testing.T) {
	server := chatServer(t, http.StatusOK, "   ", nil)
	defer server.Close()

	rewriter := NewOpenAIRewriter("sk-test", server.URL+"/v1", "gpt-4o", 0)
	_, err := rewriter.Rewrite(context.Background(), &domain.RewriteRequest{Slot: beginnerSaving})
	if !errors.Is(err, domain.ErrRewriteUnavailable) {
		t.Errorf("expected ErrRewriteUnavailable, got %v", err)
	}
}

func TestTemplateRewriter(t *testing.T) {
	rewriter := NewTemplateRewriter()

	text, err := rewriter.Rewrite(context.Background(), &domain.RewriteRequest{Slot: beginnerSaving})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(text, "Saving means") {
		t.Errorf("expected concept lesson first, got %q", text)
	}
	if !strings.Contains(text, "beginner learners, ages 6-9") {
		t.Errorf("expected audience line, got %q", text)
	}

	again, _ := rewriter.Rewrite(context.Background(), &domain.RewriteRequest{Slot: beginnerSaving})
	if again != text {
		t.Error("expected deterministic output")
	}

	other, _ := rewriter.Rewrite(context.Background(), &domain.RewriteRequest{
		Slot: domain.Slot{Concept: "tax_basics", Difficulty: "advanced", AgeBand: "age_13_17"},
	})
	if !strings.Contains(other, "tax basics") {
		t.Errorf("expected fallback lesson for unknown concept, got %q", other)
	}
}

func TestAgeBandLabel(t *testing.T) {
	testCases := map[string]string{
		"age_6_9":   "ages 6-9",
		"age_13_17": "ages 13-17",
		"adults":    "adults",
	}
	for in, want := range testCases {
		if got := ageBandLabel(in); got != want {
			t.Errorf("ageBandLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
