package services

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

func enqueue(t *testing.T, env *testEnv, priority domain.Priority, ref domain.FeedbackRef) string {
	t.Helper()
	id, err := env.moderation.Enqueue(context.Background(), domain.EnqueueRequest{
		FeedbackRef: ref,
		Priority:    priority,
		Reason:      "test",
	})
	require.NoError(t, err)
	return id
}

func TestModerationService_ListPendingOrder(t *testing.T) {
	env := newTestEnv(t)

	low := enqueue(t, env, domain.PriorityLow, domain.FeedbackRef{})
	urgent1 := enqueue(t, env, domain.PriorityUrgent, domain.FeedbackRef{})
	medium := enqueue(t, env, domain.PriorityMedium, domain.FeedbackRef{})
	urgent2 := enqueue(t, env, domain.PriorityUrgent, domain.FeedbackRef{})

	items, err := env.moderation.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 4)

	got := []string{items[0].ReviewID, items[1].ReviewID, items[2].ReviewID, items[3].ReviewID}
	assert.Equal(t, []string{urgent1, urgent2, medium, low}, got)
}

func TestModerationService_EnqueueDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := enqueue(t, env, "", domain.FeedbackRef{Concept: "saving"})
	item, err := env.moderation.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityMedium, item.Priority)
	assert.True(t, item.IsPending())
	assert.False(t, item.CreatedAt.IsZero())

	_, err = env.moderation.Enqueue(ctx, domain.EnqueueRequest{Priority: "critical"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.moderation.Get(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestModerationService_Accuracy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc, err := env.moderation.Accuracy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, acc)

	for _, d := range []domain.Decision{domain.DecisionApprove, domain.DecisionReject, domain.DecisionApprove, domain.DecisionDismiss} {
		id := enqueue(t, env, domain.PriorityMedium, domain.FeedbackRef{})
		_, err := env.moderation.Resolve(ctx, domain.ResolveRequest{ReviewID: id, Decision: d, Actor: "admin"})
		require.NoError(t, err)
	}

	acc, err = env.moderation.Accuracy(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, acc, 1e-9)
}

func TestModerationService_ResolveOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := enqueue(t, env, domain.PriorityHigh, domain.FeedbackRef{})

	item, err := env.moderation.Resolve(ctx, domain.ResolveRequest{ReviewID: id, Decision: domain.DecisionApprove, Actor: "admin", Notes: "fine"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewStatusResolved, item.Status)
	require.NotNil(t, item.Resolution)
	assert.Equal(t, "admin", item.Resolution.Actor)
	assert.Nil(t, item.Resolution.AppliedDocument)

	_, err = env.moderation.Resolve(ctx, domain.ResolveRequest{ReviewID: id, Decision: domain.DecisionReject, Actor: "other"})
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)

	stored, err := env.moderation.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionApprove, stored.Resolution.Decision)

	_, err = env.moderation.Resolve(ctx, domain.ResolveRequest{ReviewID: "missing", Decision: domain.DecisionApprove, Actor: "admin"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestModerationService_ResolveValidation(t *testing.T) {
	env := newTestEnv(t)
	id := enqueue(t, env, domain.PriorityHigh, domain.FeedbackRef{Concept: "saving"})

	tests := []struct {
		name string
		req  domain.ResolveRequest
		want error
	}{
		{"unknown decision", domain.ResolveRequest{ReviewID: id, Decision: "escalate", Actor: "admin"}, domain.ErrInvalidDecision},
		{"missing actor", domain.ResolveRequest{ReviewID: id, Decision: domain.DecisionApprove}, domain.ErrInvalidInput},
		{"flag bias without text", domain.ResolveRequest{ReviewID: id, Decision: domain.DecisionFlagBias, Actor: "admin"}, domain.ErrInvalidInput},
		{"force update without text", domain.ResolveRequest{ReviewID: id, Decision: domain.DecisionForceUpdate, Actor: "admin", Text: "  "}, domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.moderation.Resolve(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	item, err := env.moderation.Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, item.IsPending())
}

func TestModerationService_FlagBiasAppliesCorrection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	biased := env.put(t, savingBeginner, "Only boys can open a bank account.", []float32{1, 0, 0, 0})
	id := enqueue(t, env, domain.PriorityUrgent, domain.FeedbackRef{
		Concept: "saving", Difficulty: "beginner", AgeBand: "age_6_9",
	})

	item, err := env.moderation.Resolve(ctx, domain.ResolveRequest{
		ReviewID: id,
		Decision: domain.DecisionFlagBias,
		Actor:    "admin@example.com",
		Text:     "Any child can open a savings account with a grown-up.",
	})
	require.NoError(t, err)
	require.NotNil(t, item.Resolution.AppliedDocument)

	current, err := env.corrections.GetCurrent(ctx, savingBeginner)
	require.NoError(t, err)
	assert.Equal(t, current.ID, item.Resolution.AppliedDocument.DocumentID)
	assert.Equal(t, 2, current.Version)
	assert.Contains(t, current.Reason, "admin@example.com")
	assert.False(t, env.handle.Snapshot().IsCurrent(biased.ID))
}

func TestModerationService_ForceUpdateUsesAutoActionSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	auto := env.put(t, savingIntermediate, "Auto-corrected text.", []float32{0, 1, 0, 0})
	id, err := env.moderation.Enqueue(ctx, domain.EnqueueRequest{
		FeedbackRef: domain.FeedbackRef{Concept: "saving"},
		Priority:    domain.PriorityHigh,
		AutoAction:  auto.Ref(),
	})
	require.NoError(t, err)

	item, err := env.moderation.Resolve(ctx, domain.ResolveRequest{
		ReviewID: id,
		Decision: "update_content",
		Actor:    "admin",
		Text:     "Reviewed text.",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionForceUpdate, item.Resolution.Decision)

	current, err := env.corrections.GetCurrent(ctx, savingIntermediate)
	require.NoError(t, err)
	assert.Equal(t, "Reviewed text.", current.Text)
	assert.Equal(t, 2, current.Version)
}

func TestModerationService_FailedCorrectionKeepsItemPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prior := env.put(t, savingBeginner, "Original text.", []float32{1, 0, 0, 0})
	id := enqueue(t, env, domain.PriorityUrgent, domain.FeedbackRef{
		Concept: "saving", Difficulty: "beginner", AgeBand: "age_6_9",
	})
	generation := env.handle.Snapshot().Generation()

	env.embedder.SetFailAlways(true)
	_, err := env.moderation.Resolve(ctx, domain.ResolveRequest{
		ReviewID: id,
		Decision: domain.DecisionFlagBias,
		Actor:    "admin",
		Text:     "Replacement.",
	})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	item, err := env.moderation.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, item.IsPending())
	assert.Equal(t, generation, env.handle.Snapshot().Generation())

	current, err := env.corrections.GetCurrent(ctx, savingBeginner)
	require.NoError(t, err)
	assert.Equal(t, prior.ID, current.ID)

	// Once embeddings recover the same item can be resolved
	env.embedder.SetFailAlways(false)
	_, err = env.moderation.Resolve(ctx, domain.ResolveRequest{
		ReviewID: id,
		Decision: domain.DecisionFlagBias,
		Actor:    "admin",
		Text:     "Replacement.",
	})
	require.NoError(t, err)
}

func TestModerationService_FlagBiasWithoutSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := enqueue(t, env, domain.PriorityUrgent, domain.FeedbackRef{Concept: "saving"})

	_, err := env.moderation.Resolve(ctx, domain.ResolveRequest{
		ReviewID: id,
		Decision: domain.DecisionFlagBias,
		Actor:    "admin",
		Text:     "Replacement.",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	item, err := env.moderation.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, item.IsPending())
}

func TestModerationService_StoreFailureAfterCorrection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.put(t, savingBeginner, "Original text.", []float32{1, 0, 0, 0})
	id := enqueue(t, env, domain.PriorityUrgent, domain.FeedbackRef{
		Concept: "saving", Difficulty: "beginner", AgeBand: "age_6_9",
	})

	env.modStore.SetFailResolve(true)
	_, err := env.moderation.Resolve(ctx, domain.ResolveRequest{
		ReviewID: id,
		Decision: domain.DecisionForceUpdate,
		Actor:    "admin",
		Text:     "Committed text.",
	})
	require.Error(t, err)

	current, err := env.corrections.GetCurrent(ctx, savingBeginner)
	require.NoError(t, err)
	assert.Equal(t, "Committed text.", current.Text)

	item, err := env.moderation.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, item.IsPending())
}

func TestModerationService_StatsAndHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := enqueue(t, env, domain.PriorityHigh, domain.FeedbackRef{})
	second := enqueue(t, env, domain.PriorityLow, domain.FeedbackRef{})
	enqueue(t, env, domain.PriorityUrgent, domain.FeedbackRef{})

	flagID, err := env.moderation.FlagBias(ctx, domain.ManualFlag{
		Concept:     "budgeting",
		Description: "examples only mention expensive hobbies",
		Actor:       "admin",
	})
	require.NoError(t, err)

	_, err = env.moderation.Resolve(ctx, domain.ResolveRequest{ReviewID: first, Decision: domain.DecisionApprove, Actor: "admin"})
	require.NoError(t, err)
	_, err = env.moderation.Resolve(ctx, domain.ResolveRequest{ReviewID: second, Decision: domain.DecisionReject, Actor: "admin"})
	require.NoError(t, err)

	stats, err := env.moderation.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 2, stats.Resolved)
	assert.Equal(t, 2, stats.PendingByPriority[domain.PriorityUrgent])
	assert.Equal(t, 0, stats.PendingByPriority[domain.PriorityHigh])
	assert.Contains(t, stats.PendingByPriority, domain.PriorityLow)
	assert.Equal(t, 1, stats.ManualBiasFlags)
	assert.Equal(t, 1, stats.Decisions[domain.DecisionApprove])
	assert.True(t, math.Abs(stats.Accuracy-0.5) < 1e-9)

	history, err := env.moderation.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second, history[0].ReviewID)
	assert.Equal(t, first, history[1].ReviewID)

	limited, err := env.moderation.History(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	flag, err := env.moderation.Get(ctx, flagID)
	require.NoError(t, err)
	assert.True(t, flag.IsManualFlag())
	assert.Equal(t, domain.PriorityUrgent, flag.Priority)
	assert.Equal(t, "admin", flag.FeedbackRef.UserID)
}

func TestModerationService_FlagBiasValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.moderation.FlagBias(ctx, domain.ManualFlag{Description: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.moderation.FlagBias(ctx, domain.ManualFlag{Concept: "saving"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
