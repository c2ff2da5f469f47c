package corpus

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// DocumentSet holds every document version ever stored, indexed by id and
// by slot. Stored documents are never mutated in place: writes replace the
// pointer with an updated copy, so a cloned set can share documents with
// the snapshot it came from.
type DocumentSet struct {
	byID    map[string]*domain.Document
	current map[string]string   // slot key -> current document id
	bySlot  map[string][]string // slot key -> every document id of the slot
}

// NewDocumentSet creates an empty set.
func NewDocumentSet() *DocumentSet {
	return &DocumentSet{
		byID:    make(map[string]*domain.Document),
		current: make(map[string]string),
		bySlot:  make(map[string][]string),
	}
}

// Get returns a copy of the document with id.
func (s *DocumentSet) Get(id string) (*domain.Document, error) {
	doc, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return doc.Clone(), nil
}

// GetCurrent returns a copy of the current document of slot.
func (s *DocumentSet) GetCurrent(slot domain.Slot) (*domain.Document, error) {
	id, ok := s.current[slot.Key()]
	if !ok {
		return nil, fmt.Errorf("current document for %s: %w", slot, domain.ErrNotFound)
	}
	return s.byID[id].Clone(), nil
}

// Put inserts a new document or updates an existing one.
//
// For an existing id only Text, Version, Reason and UpdatedAt change.
// A new document must be current, and its slot must not already have a
// current document.
func (s *DocumentSet) Put(doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	if existing, ok := s.byID[doc.ID]; ok {
		updated := existing.Clone()
		updated.Text = doc.Text
		updated.Version = doc.Version
		updated.Reason = doc.Reason
		updated.UpdatedAt = doc.UpdatedAt
		s.byID[doc.ID] = updated
		return nil
	}

	if !doc.IsCurrent() {
		return fmt.Errorf("%w: new document %s cannot be superseded", domain.ErrInvalidInput, doc.ID)
	}
	slot := doc.Slot()
	if err := slot.Validate(); err != nil {
		return err
	}
	key := slot.Key()
	if cur, ok := s.current[key]; ok {
		return fmt.Errorf("%w: %s holds %s", domain.ErrCurrentDocumentExists, slot, cur)
	}

	s.byID[doc.ID] = doc.Clone()
	s.current[key] = doc.ID
	s.bySlot[key] = append(s.bySlot[key], doc.ID)
	return nil
}

// MarkSuperseded records that id was replaced by byID. The slot is left
// without a current document until the replacement is put.
func (s *DocumentSet) MarkSuperseded(id, byID string) error {
	doc, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if !doc.IsCurrent() {
		return fmt.Errorf("document %s: %w by %s", id, domain.ErrAlreadySuperseded, doc.SupersededBy)
	}
	if byID == "" || byID == id {
		return fmt.Errorf("%w: invalid successor for %s", domain.ErrInvalidInput, id)
	}

	updated := doc.Clone()
	updated.SupersededBy = byID
	s.byID[id] = updated
	delete(s.current, doc.Slot().Key())
	return nil
}

// Versions returns every document of slot ordered by version.
func (s *DocumentSet) Versions(slot domain.Slot) []*domain.Document {
	ids := s.bySlot[slot.Key()]
	out := make([]*domain.Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id].Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// Current returns the current documents sorted by id.
func (s *DocumentSet) Current() []*domain.Document {
	out := make([]*domain.Document, 0, len(s.current))
	for _, id := range s.current {
		out = append(out, s.byID[id].Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every stored document sorted by id.
func (s *DocumentSet) All() []*domain.Document {
	out := make([]*domain.Document, 0, len(s.byID))
	for _, doc := range s.byID {
		out = append(out, doc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of stored documents including superseded ones.
func (s *DocumentSet) Len() int { return len(s.byID) }

// CurrentLen returns the number of current documents.
func (s *DocumentSet) CurrentLen() int { return len(s.current) }

func (s *DocumentSet) isCurrent(id string) bool {
	doc, ok := s.byID[id]
	return ok && doc.IsCurrent()
}

// clone copies the maps. Documents are shared since they are never mutated.
func (s *DocumentSet) clone() *DocumentSet {
	c := &DocumentSet{
		byID:    make(map[string]*domain.Document, len(s.byID)),
		current: make(map[string]string, len(s.current)),
		bySlot:  make(map[string][]string, len(s.bySlot)),
	}
	for id, doc := range s.byID {
		c.byID[id] = doc
	}
	for k, id := range s.current {
		c.current[k] = id
	}
	for k, ids := range s.bySlot {
		c.bySlot[k] = append([]string(nil), ids...)
	}
	return c
}

// restore rebuilds a set from persisted documents, rejecting any that
// would break the one-current-per-slot rule.
func restore(docs []*domain.Document) (*DocumentSet, error) {
	s := NewDocumentSet()
	for _, doc := range docs {
		if doc == nil || doc.ID == "" {
			return nil, fmt.Errorf("%w: document without id", domain.ErrCorruptPersistedState)
		}
		if _, dup := s.byID[doc.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate document %s", domain.ErrCorruptPersistedState, doc.ID)
		}
		key := doc.Slot().Key()
		if doc.IsCurrent() {
			if cur, ok := s.current[key]; ok {
				return nil, fmt.Errorf("%w: %s and %s are both current for %s",
					domain.ErrCorruptPersistedState, cur, doc.ID, doc.Slot())
			}
			s.current[key] = doc.ID
		}
		s.byID[doc.ID] = doc.Clone()
		s.bySlot[key] = append(s.bySlot[key], doc.ID)
	}
	return s, nil
}
