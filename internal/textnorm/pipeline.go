// Package textnorm cleans document text before it is embedded and stored.
package textnorm

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// Processor is one step of the pipeline.
type Processor interface {
	Process(text string) string
	Name() string
	Order() int
}

// Pipeline chains processors sorted by Order.
type Pipeline struct {
	mu         sync.RWMutex
	processors []Processor
	sorted     bool
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Add adds a processor to the pipeline.
func (p *Pipeline) Add(processor Processor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	p.sorted = false
}

// Process applies every processor in order.
func (p *Pipeline) Process(text string) string {
	p.mu.Lock()
	if !p.sorted {
		sort.SliceStable(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}
	processors := make([]Processor, len(p.processors))
	copy(processors, p.processors)
	p.mu.Unlock()

	for _, proc := range processors {
		text = proc.Process(text)
	}
	return text
}

// Normalize processes text and rejects a result with nothing left in it.
func (p *Pipeline) Normalize(text string) (string, error) {
	out := p.Process(text)
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: document text is empty", domain.ErrInvalidInput)
	}
	return out, nil
}

// List returns processor names in order.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// DefaultPipeline strips control characters, normalises whitespace, drops
// repeated sentences and caps the length.
func DefaultPipeline() *Pipeline {
	p := NewPipeline()
	p.Add(NewControlStripper())
	p.Add(NewWhitespaceNormalizer())
	p.Add(NewSentenceDeduplicator())
	p.Add(NewLengthLimiter(DefaultMaxLength))
	return p
}

// ControlStripper removes control characters other than newlines and tabs.
type ControlStripper struct{}

func NewControlStripper() *ControlStripper { return &ControlStripper{} }

func (c *ControlStripper) Process(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, text)
}

func (c *ControlStripper) Name() string { return "control-stripper" }
func (c *ControlStripper) Order() int   { return 0 }

// WhitespaceNormalizer normalizes line endings and collapses runs of spaces.
type WhitespaceNormalizer struct{}

func NewWhitespaceNormalizer() *WhitespaceNormalizer { return &WhitespaceNormalizer{} }

func (w *WhitespaceNormalizer) Process(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\t", " ")

	// Collapse multiple spaces (but preserve newlines)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.Join(lines, "\n")

	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}

func (w *WhitespaceNormalizer) Name() string { return "whitespace-normalizer" }
func (w *WhitespaceNormalizer) Order() int   { return 5 }

// SentenceDeduplicator drops sentences that repeat an earlier one,
// ignoring case. Generated rewrites sometimes echo themselves.
type SentenceDeduplicator struct{}

func NewSentenceDeduplicator() *SentenceDeduplicator { return &SentenceDeduplicator{} }

func (d *SentenceDeduplicator) Process(text string) string {
	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		return text
	}

	seen := make(map[string]bool, len(sentences))
	var b strings.Builder
	for _, s := range sentences {
		key := strings.ToLower(strings.TrimSpace(s))
		if key != "" && seen[key] {
			continue
		}
		seen[key] = true
		b.WriteString(s)
	}
	return strings.TrimSpace(b.String())
}

func (d *SentenceDeduplicator) Name() string { return "sentence-deduplicator" }
func (d *SentenceDeduplicator) Order() int   { return 10 }

// splitSentences splits after sentence terminators, keeping the terminator
// and the following whitespace with the sentence.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			end := i + 1
			for end < len(text) && (text[end] == ' ' || text[end] == '\n') {
				end++
			}
			if end == i+1 && end < len(text) {
				continue // "3.5" or "e.g" style, not a boundary
			}
			out = append(out, text[start:end])
			start = end
			i = end - 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// DefaultMaxLength caps stored document text, in bytes.
const DefaultMaxLength = 4000

// LengthLimiter truncates text at the last sentence or word boundary
// before the limit.
type LengthLimiter struct {
	max int
}

func NewLengthLimiter(max int) *LengthLimiter { return &LengthLimiter{max: max} }

func (l *LengthLimiter) Process(text string) string {
	if l.max <= 0 || len(text) <= l.max {
		return text
	}
	return strings.TrimSpace(text[:breakPoint(text, l.max)])
}

func (l *LengthLimiter) Name() string { return "length-limiter" }
func (l *LengthLimiter) Order() int   { return 20 }

// breakPoint finds a good cut position at or before maxEnd.
func breakPoint(text string, maxEnd int) int {
	searchStart := maxEnd - 200
	if searchStart < 0 {
		searchStart = 0
	}
	window := text[searchStart:maxEnd]

	if idx := strings.LastIndex(window, "\n\n"); idx != -1 {
		return searchStart + idx
	}

	best := -1
	for _, ender := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if idx := strings.LastIndex(window, ender); idx != -1 && idx+1 > best {
			best = idx + 1
		}
	}
	if best > 0 {
		return searchStart + best
	}

	if idx := strings.LastIndex(window, " "); idx != -1 {
		return searchStart + idx
	}

	// No boundary found; back off to a rune start
	end := maxEnd
	for end > 0 && !isRuneStart(text[end]) {
		end--
	}
	return end
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
