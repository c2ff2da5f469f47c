package auth

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

// Ensure StaticAccounts implements AccountStore
var _ driven.AccountStore = (*StaticAccounts)(nil)

// StaticAccounts serves operator accounts declared in configuration.
// Emails match case-insensitively.
type StaticAccounts struct {
	byEmail map[string]*domain.Account
}

// NewStaticAccounts validates accounts and indexes them by email.
func NewStaticAccounts(accounts []domain.Account) (*StaticAccounts, error) {
	s := &StaticAccounts{byEmail: make(map[string]*domain.Account, len(accounts))}
	for i := range accounts {
		acc := accounts[i]
		key := strings.ToLower(strings.TrimSpace(acc.Email))
		if key == "" {
			return nil, fmt.Errorf("%w: account %d has no email", domain.ErrInvalidInput, i)
		}
		if !strings.HasPrefix(acc.PasswordHash, "$2") {
			return nil, fmt.Errorf("%w: account %s needs a bcrypt password hash", domain.ErrInvalidInput, acc.Email)
		}
		switch acc.Role {
		case domain.RoleAdmin, domain.RoleReviewer:
		case "":
			acc.Role = domain.RoleAdmin
		default:
			return nil, fmt.Errorf("%w: account %s has unknown role %q", domain.ErrInvalidInput, acc.Email, acc.Role)
		}
		if _, dup := s.byEmail[key]; dup {
			return nil, fmt.Errorf("%w: duplicate account %s", domain.ErrInvalidInput, acc.Email)
		}
		s.byEmail[key] = &acc
	}
	return s, nil
}

// GetByEmail returns domain.ErrNotFound for unknown emails
func (s *StaticAccounts) GetByEmail(email string) (*domain.Account, error) {
	acc, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *acc
	return &c, nil
}

// Len returns the number of configured accounts.
func (s *StaticAccounts) Len() int { return len(s.byEmail) }
