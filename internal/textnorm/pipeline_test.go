package textnorm

import (
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

func TestPipeline_OrdersProcessors(t *testing.T) {
	p := NewPipeline()
	p.Add(NewLengthLimiter(10))
	p.Add(NewWhitespaceNormalizer())
	p.Add(NewControlStripper())

	_ = p.Process("x")
	names := p.List()
	want := []string{"control-stripper", "whitespace-normalizer", "length-limiter"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestWhitespaceNormalizer(t *testing.T) {
	w := NewWhitespaceNormalizer()

	tests := []struct {
		in, want string
	}{
		{"  Saving   money  ", "Saving money"},
		{"line one\r\nline two", "line one\nline two"},
		{"a\n\n\n\n\nb", "a\n\nb"},
		{"tab\tseparated", "tab separated"},
	}
	for _, tt := range tests {
		if got := w.Process(tt.in); got != tt.want {
			t.Errorf("Process(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestControlStripper(t *testing.T) {
	got := NewControlStripper().Process("Save\x00 your\x07 coins\n")
	if got != "Save your coins\n" {
		t.Errorf("unexpected %q", got)
	}
}

func TestSentenceDeduplicator(t *testing.T) {
	d := NewSentenceDeduplicator()

	got := d.Process("Everyone can save. A piggy bank helps. everyone can save. Goals matter!")
	want := "Everyone can save. A piggy bank helps. Goals matter!"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	decimal := "Save 2.50 each week. Save 2.50 each week."
	if got := d.Process(decimal); got != "Save 2.50 each week." {
		t.Errorf("decimals must not split sentences, got %q", got)
	}
}

func TestLengthLimiter(t *testing.T) {
	text := "First sentence here. Second sentence is longer than the limit allows."
	got := NewLengthLimiter(30).Process(text)
	if got != "First sentence here." {
		t.Errorf("expected cut at sentence boundary, got %q", got)
	}

	short := "Short."
	if got := NewLengthLimiter(30).Process(short); got != short {
		t.Errorf("short text must be unchanged, got %q", got)
	}

	multibyte := strings.Repeat("é", 20)
	got = NewLengthLimiter(9).Process(multibyte)
	if !strings.HasPrefix(multibyte, got) || len(got) > 9 {
		t.Errorf("expected rune-safe cut, got %q", got)
	}
}

func TestNormalize_RejectsEmpty(t *testing.T) {
	p := DefaultPipeline()

	if _, err := p.Normalize(" \n\t\x00 "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	got, err := p.Normalize("  Everyone can save money.  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Everyone can save money." {
		t.Errorf("unexpected %q", got)
	}
}
