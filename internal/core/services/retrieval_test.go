package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

func TestRetrievalService_Retrieve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.put(t, savingBeginner, "Mia puts coins in a jar.", []float32{1, 0, 0, 0})
	b := env.put(t, budgetingBeginner, "Leo plans his pocket money.", []float32{0, 1, 0, 0})
	c := env.put(t, savingAdvanced, "Compound interest grows savings.", []float32{0.8, 0.2, 0, 0})

	env.embedder.SetVector("how do I save money", []float32{1, 0, 0, 0})

	result, err := env.retrieval.Retrieve(ctx, "how do I save money", 2, nil)
	require.NoError(t, err)
	require.Len(t, result.Documents, 2)
	assert.Equal(t, a.ID, result.Documents[0].Document.ID)
	assert.Equal(t, c.ID, result.Documents[1].Document.ID)
	assert.Equal(t, 2, result.K)
	assert.Nil(t, result.Filters)
	assert.LessOrEqual(t, result.Documents[0].Distance, result.Documents[1].Distance)

	all, err := env.retrieval.Retrieve(ctx, "how do I save money", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRetrievalOptions().DefaultK, all.K)
	assert.Len(t, all.Documents, 3)
	assert.Equal(t, b.ID, all.Documents[2].Document.ID)
}

func TestRetrievalService_EmptyQuery(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.retrieval.Retrieve(context.Background(), "   ", 5, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetrievalService_EmptyCorpus(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.retrieval.Retrieve(context.Background(), "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Documents)
}

func TestRetrievalService_CapsK(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.retrieval.Retrieve(context.Background(), "anything", 1000, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRetrievalOptions().MaxK, result.K)
}

func TestRetrievalService_FiltersOverFetch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Nine budgeting documents sit closer to the query than the only saving one
	for i := 0; i < 9; i++ {
		slot := domain.Slot{Concept: "budgeting", Difficulty: fmt.Sprintf("level-%d", i), AgeBand: "age_10_12"}
		env.put(t, slot, fmt.Sprintf("Budget story %d.", i), []float32{1, float32(i) * 0.01, 0, 0})
	}
	target := env.put(t, savingBeginner, "Saving story.", []float32{0, 0, 1, 0})

	env.embedder.SetVector("money", []float32{1, 0, 0, 0})

	result, err := env.retrieval.Retrieve(ctx, "money", 1, &domain.RetrievalFilters{Concept: "saving"})
	require.NoError(t, err)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, target.ID, result.Documents[0].Document.ID)
	require.NotNil(t, result.Filters)
	assert.Equal(t, "saving", result.Filters.Concept)

	none, err := env.retrieval.Retrieve(ctx, "money", 3, &domain.RetrievalFilters{Concept: "investing"})
	require.NoError(t, err)
	assert.Empty(t, none.Documents)
}

func TestRetrievalService_OnlyCurrentDocuments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	old := env.put(t, savingBeginner, "Old text.", []float32{1, 0, 0, 0})
	current := env.put(t, savingBeginner, "New text.", []float32{0, 1, 0, 0})

	env.embedder.SetVector("old", []float32{1, 0, 0, 0})
	result, err := env.retrieval.Retrieve(ctx, "old", 5, nil)
	require.NoError(t, err)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, current.ID, result.Documents[0].Document.ID)
	assert.NotEqual(t, old.ID, result.Documents[0].Document.ID)
}

func TestRetrievalService_EmbeddingUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.SetFailAlways(true)

	_, err := env.retrieval.Retrieve(context.Background(), "saving", 5, nil)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestRetrievalService_TransientEmbeddingFailureIsRetried(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, savingBeginner, "Mia saves.", []float32{1, 0, 0, 0})
	env.embedder.SetFailNext(true)

	result, err := env.retrieval.Retrieve(context.Background(), "saving", 5, nil)
	require.NoError(t, err)
	assert.Len(t, result.Documents, 1)
}

func TestRetrievalService_NoEmbedder(t *testing.T) {
	env := newTestEnv(t)
	env.services.SetEmbeddingService(nil)

	_, err := env.retrieval.Retrieve(context.Background(), "saving", 5, nil)
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}
