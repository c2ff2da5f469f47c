package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// MockCorpusStore keeps the last saved image in memory.
type MockCorpusStore struct {
	mu       sync.Mutex
	image    *domain.CorpusImage
	saves    int
	failNext int
	loadErr  error
}

// NewMockCorpusStore creates an empty store.
func NewMockCorpusStore() *MockCorpusStore {
	return &MockCorpusStore{}
}

func (m *MockCorpusStore) Load(ctx context.Context) (*domain.CorpusImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.image == nil {
		return &domain.CorpusImage{}, nil
	}
	return copyImage(m.image), nil
}

func (m *MockCorpusStore) Save(ctx context.Context, image *domain.CorpusImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext > 0 {
		m.failNext--
		return errors.New("mock: disk full")
	}
	m.image = copyImage(image)
	m.saves++
	return nil
}

func (m *MockCorpusStore) Generation(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.image == nil {
		return 0, nil
	}
	return m.image.Generation, nil
}

// FailNextSaves makes the next n Save calls fail.
func (m *MockCorpusStore) FailNextSaves(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// SetLoadError makes Load fail with err.
func (m *MockCorpusStore) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// Saves returns the number of successful saves.
func (m *MockCorpusStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Image returns a copy of the last saved image, or nil.
func (m *MockCorpusStore) Image() *domain.CorpusImage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.image == nil {
		return nil
	}
	return copyImage(m.image)
}

func copyImage(src *domain.CorpusImage) *domain.CorpusImage {
	dst := &domain.CorpusImage{
		Generation: src.Generation,
		Dimensions: src.Dimensions,
		Metric:     src.Metric,
		Documents:  make([]*domain.Document, len(src.Documents)),
		Vectors:    make([]domain.IndexRecord, len(src.Vectors)),
	}
	for i, d := range src.Documents {
		dst.Documents[i] = d.Clone()
	}
	for i, r := range src.Vectors {
		dst.Vectors[i] = domain.IndexRecord{ID: r.ID, Vector: append([]float32(nil), r.Vector...)}
	}
	return dst
}
