package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quizcorpus/internal/adapters/driven/queue/memory"
	"github.com/custodia-labs/quizcorpus/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/quizcorpus/internal/corpus"
	"github.com/custodia-labs/quizcorpus/internal/retry"
	"github.com/custodia-labs/quizcorpus/internal/runtime"
)

const testDims = 4

var (
	savingBeginner     = domain.Slot{Concept: "saving", Difficulty: "beginner", AgeBand: "age_6_9"}
	savingIntermediate = domain.Slot{Concept: "saving", Difficulty: "intermediate", AgeBand: "age_10_12"}
	savingAdvanced     = domain.Slot{Concept: "saving", Difficulty: "advanced", AgeBand: "age_13_17"}
	budgetingBeginner  = domain.Slot{Concept: "budgeting", Difficulty: "beginner", AgeBand: "age_6_9"}
)

// fastRetry keeps failure-path tests quick.
var fastRetry = &retry.Config{
	MaxRetries:   2,
	InitialDelay: time.Millisecond,
	MaxDelay:     2 * time.Millisecond,
	Multiplier:   2,
}

type testEnv struct {
	handle      *corpus.Handle
	corpusStore *mocks.MockCorpusStore
	embedder    *mocks.MockEmbeddingService
	assessor    *mocks.MockBiasAssessor
	rewriter    *mocks.MockContentRewriter
	modStore    *mocks.MockModerationStore
	queue       *memory.Queue
	services    *runtime.Services

	corrections *correctionService
	moderation  *moderationService
	retrieval   *retrievalService
	regenerator *Regenerator
	feedback    *feedbackService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		corpusStore: mocks.NewMockCorpusStore(),
		embedder:    mocks.NewMockEmbeddingService(),
		assessor:    mocks.NewMockBiasAssessor(),
		rewriter:    mocks.NewMockContentRewriter(),
		modStore:    mocks.NewMockModerationStore(),
		queue:       memory.NewQueue(),
		services:    runtime.NewServices(testDims),
	}
	env.embedder.SetDimensions(testDims)
	env.services.SetEmbeddingService(env.embedder)
	env.services.SetBiasAssessor(env.assessor)
	env.services.SetContentRewriter(env.rewriter)

	handle, err := corpus.NewHandle(corpus.Config{
		Store: env.corpusStore,
		NewIndex: func() (driven.VectorIndex, error) {
			return vectorindex.NewFlat(testDims, domain.MetricL2), nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, handle.Load(context.Background()))
	env.handle = handle

	env.corrections = NewCorrectionService(CorrectionConfig{
		Corpus:   handle,
		Services: env.services,
		Retry:    fastRetry,
	}).(*correctionService)

	env.moderation = NewModerationService(ModerationConfig{
		Store:       env.modStore,
		Corpus:      handle,
		Corrections: env.corrections,
		Now:         newClock(),
	}).(*moderationService)

	env.retrieval = NewRetrievalService(RetrievalConfig{
		Corpus:   handle,
		Services: env.services,
		Retry:    fastRetry,
	}).(*retrievalService)

	env.regenerator = NewRegenerator(env.services, env.corrections, fastRetry, nil)

	env.feedback = NewFeedbackService(FeedbackConfig{
		Services:    env.services,
		Regenerator: env.regenerator,
		Moderation:  env.moderation,
		Queue:       env.queue,
		Policy:      domain.DefaultPolicy(),
		Retry:       fastRetry,
	}).(*feedbackService)

	return env
}

// newClock returns a time source that advances one second per call.
func newClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

// put writes text into slot with a pinned embedding and returns the new document.
func (e *testEnv) put(t *testing.T, slot domain.Slot, text string, vec []float32) *domain.Document {
	t.Helper()
	e.embedder.SetVector(text, vec)
	doc, err := e.corrections.ApplyCorrection(context.Background(), domain.CorrectionRequest{
		Concept:    slot.Concept,
		Difficulty: slot.Difficulty,
		AgeBand:    slot.AgeBand,
		Text:       text,
		Reason:     "test",
	})
	require.NoError(t, err)
	return doc
}
