// Package seed provides the starter lessons for an empty corpus.
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

//go:embed seed.yaml
var defaultSeed []byte

type seedFile struct {
	Documents []domain.SeedDocument `yaml:"documents"`
}

// Default returns the built-in starter lessons.
func Default() ([]domain.SeedDocument, error) {
	return Parse(defaultSeed)
}

// Load reads starter lessons from path, or the built-in set when path is empty.
func Load(path string) ([]domain.SeedDocument, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document list and checks every entry names a full slot.
func Parse(data []byte) ([]domain.SeedDocument, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse seed file: %v", domain.ErrInvalidInput, err)
	}

	seen := make(map[string]bool, len(f.Documents))
	for i := range f.Documents {
		doc := &f.Documents[i]
		doc.Text = strings.TrimSpace(doc.Text)

		slot := domain.Slot{Concept: doc.Concept, Difficulty: doc.Difficulty, AgeBand: doc.AgeBand}
		if err := slot.Validate(); err != nil {
			return nil, fmt.Errorf("seed document %d: %w", i, err)
		}
		if doc.Text == "" {
			return nil, fmt.Errorf("%w: seed document %d (%s) has no text", domain.ErrInvalidInput, i, slot)
		}
		if seen[slot.Key()] {
			return nil, fmt.Errorf("%w: seed file lists %s twice", domain.ErrInvalidInput, slot)
		}
		seen[slot.Key()] = true
	}
	return f.Documents, nil
}
