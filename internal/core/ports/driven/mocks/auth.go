package mocks

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// MockAuthAdapter compares passwords in plain text and encodes claims as
// JSON behind a "mock." prefix.
type MockAuthAdapter struct{}

// NewMockAuthAdapter creates a new MockAuthAdapter
func NewMockAuthAdapter() *MockAuthAdapter {
	return &MockAuthAdapter{}
}

func (m *MockAuthAdapter) HashPassword(password string) (string, error) {
	return password, nil
}

func (m *MockAuthAdapter) VerifyPassword(password, hash string) bool {
	return password == hash
}

func (m *MockAuthAdapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	data, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return "mock." + string(data), nil
}

func (m *MockAuthAdapter) ParseToken(token string) (*domain.TokenClaims, error) {
	payload, ok := strings.CutPrefix(token, "mock.")
	if !ok {
		return nil, errors.New("not a mock token")
	}
	var claims domain.TokenClaims
	if err := json.Unmarshal([]byte(payload), &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// MockAccountStore is an in-memory AccountStore
type MockAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

// NewMockAccountStore creates a store holding accounts
func NewMockAccountStore(accounts ...*domain.Account) *MockAccountStore {
	m := &MockAccountStore{accounts: make(map[string]*domain.Account)}
	for _, a := range accounts {
		m.accounts[strings.ToLower(a.Email)] = a
	}
	return m
}

func (m *MockAccountStore) GetByEmail(email string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *a
	return &c, nil
}
