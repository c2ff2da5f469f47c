package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{name: "valid bearer token", header: "Bearer abc123", expected: "abc123"},
		{name: "bearer with extra spaces", header: "Bearer   token-with-spaces   ", expected: "token-with-spaces"},
		{name: "lowercase bearer", header: "bearer token123", expected: "token123"},
		{name: "empty header", header: "", expected: ""},
		{name: "no bearer prefix", header: "token123", expected: ""},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			if result := extractBearerToken(req); result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestGetAuthContext(t *testing.T) {
	if GetAuthContext(context.Background()) != nil {
		t.Error("expected nil for context without auth")
	}

	authCtx := &domain.AuthContext{Email: "ada@example.com", Name: "Ada", Role: domain.RoleReviewer}
	ctx := context.WithValue(context.Background(), authContextKey, authCtx)

	result := GetAuthContext(ctx)
	if result == nil {
		t.Fatal("expected auth context to be returned")
	}
	if result.Email != "ada@example.com" || result.Role != domain.RoleReviewer {
		t.Errorf("unexpected auth context %+v", result)
	}
}

func TestAuthenticate(t *testing.T) {
	auth := &mockAuthService{
		validateTokenFn: func(ctx context.Context, token string) (*domain.AuthContext, error) {
			switch token {
			case "good":
				return &domain.AuthContext{Email: "ada@example.com", Role: domain.RoleAdmin}, nil
			case "old":
				return nil, domain.ErrTokenExpired
			default:
				return nil, domain.ErrTokenInvalid
			}
		},
	}
	m := NewAuthMiddleware(auth)

	var seen *domain.AuthContext
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetAuthContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"missing token", "", http.StatusUnauthorized, "missing authorization token"},
		{"expired", "Bearer old", http.StatusUnauthorized, "token expired"},
		{"invalid", "Bearer forged", http.StatusUnauthorized, "invalid token"},
		{"valid", "Bearer good", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rr.Code)
			}
			if tt.message != "" {
				if got := decodeError(t, rr); got != tt.message {
					t.Errorf("expected error %q, got %q", tt.message, got)
				}
			}
			if tt.status == http.StatusOK && (seen == nil || seen.Email != "ada@example.com") {
				t.Errorf("expected auth context to reach the handler, got %+v", seen)
			}
		})
	}
}

func TestRoleChecks(t *testing.T) {
	m := NewAuthMiddleware(&mockAuthService{})
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name    string
		wrap    func(http.Handler) http.Handler
		role    domain.Role
		noAuth  bool
		allowed bool
	}{
		{"admin passes admin check", m.RequireAdmin, domain.RoleAdmin, false, true},
		{"reviewer fails admin check", m.RequireAdmin, domain.RoleReviewer, false, false},
		{"reviewer passes moderator check", m.RequireModerator, domain.RoleReviewer, false, true},
		{"admin passes moderator check", m.RequireModerator, domain.RoleAdmin, false, true},
		{"unknown role fails moderator check", m.RequireModerator, domain.Role("learner"), false, false},
		{"no auth context", m.RequireModerator, "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if !tt.noAuth {
				ctx := context.WithValue(req.Context(), authContextKey, &domain.AuthContext{Role: tt.role})
				req = req.WithContext(ctx)
			}
			rr := httptest.NewRecorder()

			tt.wrap(ok).ServeHTTP(rr, req)

			switch {
			case tt.allowed && rr.Code != http.StatusOK:
				t.Errorf("expected 200, got %d", rr.Code)
			case !tt.allowed && tt.noAuth && rr.Code != http.StatusUnauthorized:
				t.Errorf("expected 401, got %d", rr.Code)
			case !tt.allowed && !tt.noAuth && rr.Code != http.StatusForbidden:
				t.Errorf("expected 403, got %d", rr.Code)
			}
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	middleware := NewLoggingMiddleware(slog.Default())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	middleware.Handler(handler).ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	if rr.Code != http.StatusTeapot {
		t.Errorf("expected status 418, got %d", rr.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	middleware := NewRecoveryMiddleware(nil)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("boom"))
	})

	rr := httptest.NewRecorder()
	middleware.Handler(handler).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}
	if got := decodeError(t, rr); got != "internal server error" {
		t.Errorf("unexpected error %q", got)
	}
}

func TestCORSMiddleware(t *testing.T) {
	middleware := NewCORSMiddleware([]string{"https://tutor.example.com"})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "https://tutor.example.com")
		rr := httptest.NewRecorder()

		middleware.Handler(next).ServeHTTP(rr, req)

		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://tutor.example.com" {
			t.Errorf("expected origin header, got %q", got)
		}
	})

	t.Run("foreign origin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rr := httptest.NewRecorder()

		middleware.Handler(next).ServeHTTP(rr, req)

		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("expected no origin header, got %q", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/", nil)
		req.Header.Set("Origin", "https://tutor.example.com")
		rr := httptest.NewRecorder()

		middleware.Handler(next).ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rr.Code)
		}
	})
}
