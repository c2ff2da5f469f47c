package domain

import "time"

// Role defines operator permission level
type Role string

const (
	RoleAdmin    Role = "admin"    // Corrections, moderation, documents
	RoleReviewer Role = "reviewer" // Moderation only
)

// Account is an operator allowed to use the administrative surface
type Account struct {
	Email        string `json:"email" yaml:"email"`
	Name         string `json:"name" yaml:"name"`
	PasswordHash string `json:"-" yaml:"password_hash"` // bcrypt, never serialize
	Role         Role   `json:"role" yaml:"role"`
}

// AccountSummary provides a safe view of an account (no password hash)
type AccountSummary struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// ToSummary converts an Account to AccountSummary
func (a *Account) ToSummary() *AccountSummary {
	return &AccountSummary{Email: a.Email, Name: a.Name, Role: a.Role}
}

// AuthContext contains authenticated operator info for request context
type AuthContext struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// IsAdmin checks if the authenticated operator is an admin
func (a *AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanModerate checks if the operator may work the review queue
func (a *AuthContext) CanModerate() bool {
	return a.Role == RoleAdmin || a.Role == RoleReviewer
}

// Actor is the name recorded on resolutions.
func (a *AuthContext) Actor() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// LoginRequest represents a login attempt
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned after successful authentication
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   *AccountSummary `json:"account"`
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
