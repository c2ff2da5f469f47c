package domain

import (
	"testing"
	"time"
)

func TestAuthContextRoles(t *testing.T) {
	tests := []struct {
		role        Role
		admin       bool
		canModerate bool
	}{
		{RoleAdmin, true, true},
		{RoleReviewer, false, true},
		{Role("guest"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			ctx := &AuthContext{Role: tt.role}
			if ctx.IsAdmin() != tt.admin {
				t.Errorf("expected IsAdmin() = %v for role %s", tt.admin, tt.role)
			}
			if ctx.CanModerate() != tt.canModerate {
				t.Errorf("expected CanModerate() = %v for role %s", tt.canModerate, tt.role)
			}
		})
	}
}

func TestAuthContextActor(t *testing.T) {
	named := &AuthContext{Email: "ana@example.com", Name: "Ana"}
	if named.Actor() != "Ana" {
		t.Errorf("expected actor Ana, got %s", named.Actor())
	}

	unnamed := &AuthContext{Email: "ops@example.com"}
	if unnamed.Actor() != "ops@example.com" {
		t.Errorf("expected actor ops@example.com, got %s", unnamed.Actor())
	}
}

func TestAccountToSummary(t *testing.T) {
	acct := &Account{Email: "ana@example.com", Name: "Ana", PasswordHash: "secret", Role: RoleAdmin}

	summary := acct.ToSummary()
	if summary.Email != "ana@example.com" {
		t.Errorf("expected email ana@example.com, got %s", summary.Email)
	}
	if summary.Role != RoleAdmin {
		t.Errorf("expected role admin, got %s", summary.Role)
	}
}

func TestTokenClaims(t *testing.T) {
	now := time.Now()
	claims := &TokenClaims{
		Email:     "ana@example.com",
		Role:      RoleAdmin,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(24 * time.Hour).Unix(),
	}

	if claims.Role != RoleAdmin {
		t.Errorf("expected Role admin, got %s", claims.Role)
	}
	if claims.ExpiresAt <= claims.IssuedAt {
		t.Error("ExpiresAt should be after IssuedAt")
	}
}
