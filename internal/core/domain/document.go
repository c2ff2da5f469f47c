package domain

import (
	"fmt"
	"strings"
	"time"
)

// Slot is the (concept, difficulty, age band) triple a document occupies.
// At most one current document exists per slot.
type Slot struct {
	Concept    string `json:"concept"`
	Difficulty string `json:"difficulty"`
	AgeBand    string `json:"age_band"`
}

// Key returns a stable map key for the slot.
func (s Slot) Key() string {
	return s.Concept + "\x1f" + s.Difficulty + "\x1f" + s.AgeBand
}

// String renders the slot for logs.
func (s Slot) String() string {
	return fmt.Sprintf("%s/%s/%s", s.Concept, s.Difficulty, s.AgeBand)
}

// Validate checks that every component of the slot is set.
func (s Slot) Validate() error {
	if strings.TrimSpace(s.Concept) == "" {
		return fmt.Errorf("%w: concept is required", ErrInvalidInput)
	}
	if strings.TrimSpace(s.Difficulty) == "" {
		return fmt.Errorf("%w: difficulty is required", ErrInvalidInput)
	}
	if strings.TrimSpace(s.AgeBand) == "" {
		return fmt.Errorf("%w: age_band is required", ErrInvalidInput)
	}
	return nil
}

// Document is a corpus entry.
type Document struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	Concept      string    `json:"concept"`
	Difficulty   string    `json:"difficulty"`
	AgeBand      string    `json:"age_band"`
	Version      int       `json:"version"`
	SupersededBy string    `json:"superseded_by,omitempty"`
	Reason       string    `json:"reason,omitempty"` // Why this version was written
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Slot returns the triple the document occupies.
func (d *Document) Slot() Slot {
	return Slot{Concept: d.Concept, Difficulty: d.Difficulty, AgeBand: d.AgeBand}
}

// IsCurrent reports whether the document has not been replaced.
func (d *Document) IsCurrent() bool {
	return d.SupersededBy == ""
}

// Clone returns a copy safe to hand out of an immutable snapshot.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// Ref returns a lightweight reference to this document version.
func (d *Document) Ref() *DocumentRef {
	return &DocumentRef{DocumentID: d.ID, Version: d.Version}
}

// DocumentRef points at one document version produced by a correction
type DocumentRef struct {
	DocumentID string `json:"document_id"`
	Version    int    `json:"version"`
}

// IndexRecord is the embedding owned by a current document
type IndexRecord struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"vector"`
}

// Neighbor is a single k-nearest-neighbor hit
type Neighbor struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
}

// CorpusImage is the durable form of the corpus: every document ever stored
// plus the vectors of the current ones, tagged with a commit generation.
type CorpusImage struct {
	Generation uint64         `json:"generation"`
	Dimensions int            `json:"dimensions"`
	Metric     DistanceMetric `json:"metric"`
	Documents  []*Document    `json:"documents"`
	Vectors    []IndexRecord  `json:"vectors"`
}

// CorrectionRequest asks for the current document of a slot to be replaced.
type CorrectionRequest struct {
	Concept    string `json:"concept"`
	Difficulty string `json:"difficulty"`
	AgeBand    string `json:"age_band"`
	Text       string `json:"text"`
	Reason     string `json:"reason"`
}

// Slot returns the triple the correction targets.
func (r *CorrectionRequest) Slot() Slot {
	return Slot{Concept: r.Concept, Difficulty: r.Difficulty, AgeBand: r.AgeBand}
}

// SeedDocument is a starter corpus entry loaded when a slot is empty.
type SeedDocument struct {
	Concept    string `json:"concept" yaml:"concept"`
	Difficulty string `json:"difficulty" yaml:"difficulty"`
	AgeBand    string `json:"age_band" yaml:"age_band"`
	Text       string `json:"text" yaml:"text"`
}

// SeedResult summarises a seeding run
type SeedResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}
