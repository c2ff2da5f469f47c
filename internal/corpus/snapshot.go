package corpus

import (
	"fmt"
	"time"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

// Snapshot is an immutable view of the corpus at one commit generation.
// Any number of readers may use a snapshot while writers build the next one.
type Snapshot struct {
	generation uint64
	docs       *DocumentSet
	index      driven.VectorIndex
}

// Generation returns the commit generation of the snapshot.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Get returns any stored document by id.
func (s *Snapshot) Get(id string) (*domain.Document, error) { return s.docs.Get(id) }

// GetCurrent returns the current document of slot.
func (s *Snapshot) GetCurrent(slot domain.Slot) (*domain.Document, error) {
	return s.docs.GetCurrent(slot)
}

// Versions returns the document history of slot.
func (s *Snapshot) Versions(slot domain.Slot) []*domain.Document { return s.docs.Versions(slot) }

// Current returns every current document sorted by id.
func (s *Snapshot) Current() []*domain.Document { return s.docs.Current() }

// IsCurrent reports whether id names a current document.
func (s *Snapshot) IsCurrent(id string) bool { return s.docs.isCurrent(id) }

// Query runs a nearest neighbor query against the snapshot's index.
func (s *Snapshot) Query(vector []float32, k int) ([]domain.Neighbor, error) {
	return s.index.Query(vector, k)
}

// IndexLen returns the number of indexed vectors.
func (s *Snapshot) IndexLen() int { return s.index.Len() }

// Dimensions returns the vector length of the index.
func (s *Snapshot) Dimensions() int { return s.index.Dimensions() }

// Stats summarises the snapshot.
func (s *Snapshot) Stats() Stats {
	return Stats{
		Generation: s.generation,
		Documents:  s.docs.Len(),
		Current:    s.docs.CurrentLen(),
		Vectors:    s.index.Len(),
		Dimensions: s.index.Dimensions(),
		Metric:     s.index.Metric(),
	}
}

// Stats describes a snapshot
type Stats struct {
	Generation uint64                `json:"generation"`
	Documents  int                   `json:"documents"`
	Current    int                   `json:"current"`
	Vectors    int                   `json:"vectors"`
	Dimensions int                   `json:"dimensions"`
	Metric     domain.DistanceMetric `json:"metric"`
}

// Verify checks that the index holds exactly the current documents and
// that every superseded document points at a stored successor.
func (s *Snapshot) Verify() error {
	return verify(s.docs, s.index)
}

func verify(docs *DocumentSet, index driven.VectorIndex) error {
	if index.Len() != docs.CurrentLen() {
		return fmt.Errorf("%w: %d vectors for %d current documents",
			domain.ErrCorruptPersistedState, index.Len(), docs.CurrentLen())
	}
	for key, id := range docs.current {
		doc := docs.byID[id]
		if doc == nil || !doc.IsCurrent() || doc.Slot().Key() != key {
			return fmt.Errorf("%w: slot index points at %s", domain.ErrCorruptPersistedState, id)
		}
		if !index.Contains(id) {
			return fmt.Errorf("%w: current document %s has no vector", domain.ErrCorruptPersistedState, id)
		}
	}
	for id, doc := range docs.byID {
		if doc.IsCurrent() {
			if docs.current[doc.Slot().Key()] != id {
				return fmt.Errorf("%w: second current document %s for %s",
					domain.ErrCorruptPersistedState, id, doc.Slot())
			}
			continue
		}
		if _, ok := docs.byID[doc.SupersededBy]; !ok {
			return fmt.Errorf("%w: %s superseded by unknown %s",
				domain.ErrCorruptPersistedState, id, doc.SupersededBy)
		}
	}
	return nil
}

func (s *Snapshot) image() *domain.CorpusImage {
	return &domain.CorpusImage{
		Generation: s.generation,
		Dimensions: s.index.Dimensions(),
		Metric:     s.index.Metric(),
		Documents:  s.docs.All(),
		Vectors:    s.index.Records(),
	}
}

// Tx is the mutable copy of a snapshot handed to an Update function.
// Nothing written through a Tx is visible until the update commits.
type Tx struct {
	docs    *DocumentSet
	index   driven.VectorIndex
	now     time.Time
	changed bool
}

// Get returns any stored document by id.
func (tx *Tx) Get(id string) (*domain.Document, error) { return tx.docs.Get(id) }

// GetCurrent returns the current document of slot.
func (tx *Tx) GetCurrent(slot domain.Slot) (*domain.Document, error) {
	return tx.docs.GetCurrent(slot)
}

// Put stores a document.
func (tx *Tx) Put(doc *domain.Document) error {
	if err := tx.docs.Put(doc); err != nil {
		return err
	}
	tx.changed = true
	return nil
}

// MarkSuperseded records that id was replaced by byID.
func (tx *Tx) MarkSuperseded(id, byID string) error {
	if err := tx.docs.MarkSuperseded(id, byID); err != nil {
		return err
	}
	tx.changed = true
	return nil
}

// Index returns the index copy owned by the transaction.
func (tx *Tx) Index() driven.VectorIndex {
	tx.changed = true
	return tx.index
}

// Now returns the commit timestamp shared by every write in the transaction.
func (tx *Tx) Now() time.Time { return tx.now }
