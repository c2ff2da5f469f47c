package mocks

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// MockModerationStore is an in-memory ModerationStore.
type MockModerationStore struct {
	mu          sync.Mutex
	items       map[string]*domain.ModerationItem
	seq         int64
	failResolve bool
}

// NewMockModerationStore creates an empty store.
func NewMockModerationStore() *MockModerationStore {
	return &MockModerationStore{items: make(map[string]*domain.ModerationItem)}
}

func (m *MockModerationStore) Create(ctx context.Context, item *domain.ModerationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[item.ReviewID]; exists {
		return domain.ErrInvalidInput
	}
	m.seq++
	item.Seq = m.seq
	m.items[item.ReviewID] = copyItem(item)
	return nil
}

func (m *MockModerationStore) Get(ctx context.Context, reviewID string) (*domain.ModerationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[reviewID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyItem(item), nil
}

func (m *MockModerationStore) Resolve(ctx context.Context, reviewID string, resolution *domain.Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failResolve {
		return errors.New("mock: store unavailable")
	}
	item, ok := m.items[reviewID]
	if !ok {
		return domain.ErrNotFound
	}
	if !item.IsPending() {
		return domain.ErrAlreadyResolved
	}
	r := *resolution
	item.Resolution = &r
	item.Status = domain.ReviewStatusResolved
	return nil
}

func (m *MockModerationStore) List(ctx context.Context, filter domain.ModerationFilter) ([]*domain.ModerationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.ModerationItem
	for _, item := range m.items {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && item.Priority != filter.Priority {
			continue
		}
		out = append(out, copyItem(item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MockModerationStore) Ping(ctx context.Context) error {
	return nil
}

// SetFailResolve makes Resolve fail with a backend error.
func (m *MockModerationStore) SetFailResolve(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failResolve = fail
}

func copyItem(src *domain.ModerationItem) *domain.ModerationItem {
	c := *src
	if src.Resolution != nil {
		r := *src.Resolution
		c.Resolution = &r
	}
	if src.AutoAction != nil {
		a := *src.AutoAction
		c.AutoAction = &a
	}
	return &c
}
