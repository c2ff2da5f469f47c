package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrForbidden", ErrForbidden, "forbidden"},
		{"ErrTokenExpired", ErrTokenExpired, "token expired"},
		{"ErrTokenInvalid", ErrTokenInvalid, "token invalid"},
		{"ErrInvalidCredentials", ErrInvalidCredentials, "invalid credentials"},
		{"ErrDimensionMismatch", ErrDimensionMismatch, "dimension mismatch"},
		{"ErrCurrentDocumentExists", ErrCurrentDocumentExists, "current document already exists for slot"},
		{"ErrAlreadySuperseded", ErrAlreadySuperseded, "document already superseded"},
		{"ErrAlreadyResolved", ErrAlreadyResolved, "review already resolved"},
		{"ErrPersistFailed", ErrPersistFailed, "persist failed"},
		{"ErrCorruptPersistedState", ErrCorruptPersistedState, "corrupt persisted state"},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable, "embedding unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrUnauthorized,
		ErrForbidden,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrInvalidCredentials,
		ErrInvalidProvider,
		ErrServiceUnavailable,
		ErrDimensionMismatch,
		ErrCurrentDocumentExists,
		ErrAlreadySuperseded,
		ErrAlreadyResolved,
		ErrInvalidDecision,
		ErrPersistFailed,
		ErrCorruptPersistedState,
		ErrEmbeddingUnavailable,
		ErrBiasAssessmentUnavailable,
		ErrRewriteUnavailable,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{ErrEmbeddingUnavailable, true},
		{fmt.Errorf("embed query: %w", ErrEmbeddingUnavailable), true},
		{ErrBiasAssessmentUnavailable, true},
		{ErrRewriteUnavailable, true},
		{ErrPersistFailed, false},
		{ErrDimensionMismatch, false},
		{errors.New("boom"), false},
	}

	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.expected {
			t.Errorf("IsTransient(%v) = %v, expected %v", tt.err, got, tt.expected)
		}
	}
}
