package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// MockBiasAssessor returns a canned assessment, or one chosen by AssessFn.
type MockBiasAssessor struct {
	mu         sync.Mutex
	assessment domain.BiasAssessment
	err        error
	texts      []string

	AssessFn func(text string) (*domain.BiasAssessment, error)
}

// NewMockBiasAssessor creates an assessor that reports no bias with high confidence.
func NewMockBiasAssessor() *MockBiasAssessor {
	return &MockBiasAssessor{
		assessment: domain.BiasAssessment{Severity: domain.SeverityLow, Confidence: 0.9},
	}
}

func (m *MockBiasAssessor) Assess(ctx context.Context, text string) (*domain.BiasAssessment, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	fn, a, err := m.AssessFn, m.assessment, m.err
	m.mu.Unlock()

	if fn != nil {
		return fn(text)
	}
	if err != nil {
		return nil, err
	}
	a.Types = append([]string(nil), a.Types...)
	return &a, nil
}

func (m *MockBiasAssessor) Model() string                  { return "mock-bias-model" }
func (m *MockBiasAssessor) Ping(ctx context.Context) error { return nil }
func (m *MockBiasAssessor) Close() error                   { return nil }

// SetAssessment sets the verdict returned for every text.
func (m *MockBiasAssessor) SetAssessment(a domain.BiasAssessment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assessment = a
}

// SetError makes every Assess call fail.
func (m *MockBiasAssessor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Texts returns every text assessed so far.
func (m *MockBiasAssessor) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// MockContentRewriter produces predictable replacement text.
type MockContentRewriter struct {
	mu       sync.Mutex
	err      error
	requests []domain.RewriteRequest
}

// NewMockContentRewriter creates a new MockContentRewriter
func NewMockContentRewriter() *MockContentRewriter {
	return &MockContentRewriter{}
}

func (m *MockContentRewriter) Rewrite(ctx context.Context, req *domain.RewriteRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, *req)
	if m.err != nil {
		return "", m.err
	}
	return fmt.Sprintf("Inclusive %s lesson for %s learners (%s).",
		req.Slot.Concept, req.Slot.Difficulty, strings.ReplaceAll(req.Slot.AgeBand, "_", " ")), nil
}

func (m *MockContentRewriter) Model() string                  { return "mock-rewrite-model" }
func (m *MockContentRewriter) Ping(ctx context.Context) error { return nil }
func (m *MockContentRewriter) Close() error                   { return nil }

// SetError makes every Rewrite call fail.
func (m *MockContentRewriter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns every rewrite request received.
func (m *MockContentRewriter) Requests() []domain.RewriteRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.RewriteRequest(nil), m.requests...)
}
