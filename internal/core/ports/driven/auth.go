package driven

import "github.com/custodia-labs/quizcorpus/internal/core/domain"

// AuthAdapter handles authentication cryptographic operations.
// Account lookup is done by AccountStore.
type AuthAdapter interface {
	// Password operations
	HashPassword(password string) (string, error)
	VerifyPassword(password, hash string) bool

	// Token operations
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}

// AccountStore resolves operator accounts by email.
type AccountStore interface {
	// GetByEmail returns domain.ErrNotFound for unknown emails.
	GetByEmail(email string) (*domain.Account, error)
}
