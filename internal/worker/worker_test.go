package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/quizcorpus/internal/adapters/driven/queue/memory"
	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
	"github.com/custodia-labs/quizcorpus/internal/core/services"
)

// mockTaskQueue implements driven.TaskQueue for testing
type mockTaskQueue struct {
	mu           sync.Mutex
	tasks        []*domain.Task
	dequeueDelay time.Duration
	ackFn        func(string) error
	nackFn       func(string, string) error
	pingFn       func() error
}

func newMockTaskQueue() *mockTaskQueue {
	return &mockTaskQueue{
		tasks: make([]*domain.Task, 0),
	}
}

func (m *mockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *mockTaskQueue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	for _, t := range tasks {
		if err := m.Enqueue(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	if m.dequeueDelay > 0 {
		select {
		case <-time.After(m.dequeueDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tasks) == 0 {
		return nil, nil
	}
	task := m.tasks[0]
	m.tasks = m.tasks[1:]
	return task, nil
}

func (m *mockTaskQueue) Ack(ctx context.Context, taskID string) error {
	if m.ackFn != nil {
		return m.ackFn(taskID)
	}
	return nil
}

func (m *mockTaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	if m.nackFn != nil {
		return m.nackFn(taskID, reason)
	}
	return nil
}

func (m *mockTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	return nil, nil
}

func (m *mockTaskQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &driven.QueueStats{PendingCount: int64(len(m.tasks))}, nil
}

func (m *mockTaskQueue) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn()
	}
	return nil
}

func (m *mockTaskQueue) Close() error {
	return nil
}

// fakeRegenerator records requests and returns a new document version.
type fakeRegenerator struct {
	mu       sync.Mutex
	requests []services.RegenerateRequest
	err      error
	calls    chan struct{}
}

func newFakeRegenerator() *fakeRegenerator {
	return &fakeRegenerator{calls: make(chan struct{}, 16)}
}

func (f *fakeRegenerator) Regenerate(ctx context.Context, req services.RegenerateRequest) (*domain.Document, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.err
	f.mu.Unlock()

	defer func() { f.calls <- struct{}{} }()
	if err != nil {
		return nil, err
	}
	return &domain.Document{ID: "doc-2", Concept: req.Slot.Concept, Difficulty: req.Slot.Difficulty, AgeBand: req.Slot.AgeBand, Version: 2}, nil
}

func (f *fakeRegenerator) Requests() []services.RegenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]services.RegenerateRequest(nil), f.requests...)
}

type fakeRefresher struct {
	started chan time.Duration
}

func (f *fakeRefresher) RunRefresher(ctx context.Context, interval time.Duration) {
	f.started <- interval
	<-ctx.Done()
}

var beginnerSaving = domain.Slot{Concept: "saving", Difficulty: "beginner", AgeBand: "age_6_9"}

func TestNewWorker(t *testing.T) {
	w := NewWorker(WorkerConfig{
		TaskQueue:      newMockTaskQueue(),
		Regenerator:    newFakeRegenerator(),
		Logger:         slog.Default(),
		Concurrency:    2,
		DequeueTimeout: 2 * time.Second,
	})

	if w == nil {
		t.Fatal("expected non-nil worker")
	}
	if w.concurrency != 2 {
		t.Errorf("expected concurrency 2, got %d", w.concurrency)
	}
	if w.dequeueTimeout != 2*time.Second {
		t.Errorf("expected dequeue timeout 2s, got %s", w.dequeueTimeout)
	}
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(WorkerConfig{TaskQueue: newMockTaskQueue()})

	if w.concurrency != 1 {
		t.Errorf("expected default concurrency 1, got %d", w.concurrency)
	}
	if w.dequeueTimeout != 5*time.Second {
		t.Errorf("expected default dequeue timeout 5s, got %s", w.dequeueTimeout)
	}
	if w.refreshInterval != 30*time.Second {
		t.Errorf("expected default refresh interval 30s, got %s", w.refreshInterval)
	}
	if w.logger == nil {
		t.Error("expected default logger")
	}
}

func TestWorker_StartWithoutRegenerator(t *testing.T) {
	w := NewWorker(WorkerConfig{TaskQueue: newMockTaskQueue()})

	err := w.Start(context.Background())
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if w.Health(context.Background()).Running {
		t.Error("worker should not be running")
	}
}

func TestWorker_StartStop(t *testing.T) {
	queue := newMockTaskQueue()
	queue.dequeueDelay = 50 * time.Millisecond
	refresher := &fakeRefresher{started: make(chan time.Duration, 1)}

	w := NewWorker(WorkerConfig{
		TaskQueue:       queue,
		Regenerator:     newFakeRegenerator(),
		Refresher:       refresher,
		RefreshInterval: time.Minute,
		Concurrency:     2,
		DequeueTimeout:  100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}

	if !w.Health(ctx).Running {
		t.Error("expected worker to be running")
	}

	// Start again should be no-op
	if err := w.Start(ctx); err != nil {
		t.Errorf("second start should not error: %v", err)
	}

	select {
	case interval := <-refresher.started:
		if interval != time.Minute {
			t.Errorf("expected refresh interval 1m, got %s", interval)
		}
	case <-time.After(time.Second):
		t.Fatal("refresher was not started")
	}

	w.Stop()

	if w.Health(ctx).Running {
		t.Error("expected worker to be stopped")
	}

	// Stop again should be no-op
	w.Stop()
}

func TestWorker_Health_QueueError(t *testing.T) {
	queue := newMockTaskQueue()
	queue.pingFn = func() error {
		return errors.New("connection failed")
	}

	w := NewWorker(WorkerConfig{TaskQueue: queue, Regenerator: newFakeRegenerator()})

	health := w.Health(context.Background())
	if health.QueueHealth {
		t.Error("expected queue to be unhealthy")
	}
	if health.Error != "connection failed" {
		t.Errorf("expected error message, got %q", health.Error)
	}
}

func TestWorker_ProcessTask_Correction(t *testing.T) {
	queue := newMockTaskQueue()
	var acked []string
	queue.ackFn = func(taskID string) error {
		acked = append(acked, taskID)
		return nil
	}
	regen := newFakeRegenerator()

	w := NewWorker(WorkerConfig{TaskQueue: queue, Regenerator: regen})

	task := domain.NewCorrectionTask(beginnerSaving, "gender bias", "fb-1", "only boys")
	w.processTask(context.Background(), task, slog.Default())

	if len(acked) != 1 || acked[0] != task.ID {
		t.Fatalf("expected task to be acked, got %v", acked)
	}

	reqs := regen.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 regenerate call, got %d", len(reqs))
	}
	if reqs[0].Slot != beginnerSaving {
		t.Errorf("expected slot %s, got %s", beginnerSaving, reqs[0].Slot)
	}
	if reqs[0].Reason != "gender bias" || reqs[0].Comments != "only boys" {
		t.Errorf("unexpected request %+v", reqs[0])
	}
	if w.Health(context.Background()).Processed != 1 {
		t.Error("expected processed count 1")
	}
}

func TestWorker_ProcessTask_RegenerateFailure(t *testing.T) {
	queue := newMockTaskQueue()
	var reasons []string
	queue.nackFn = func(taskID, reason string) error {
		reasons = append(reasons, reason)
		return nil
	}
	regen := newFakeRegenerator()
	regen.err = domain.ErrRewriteUnavailable

	w := NewWorker(WorkerConfig{TaskQueue: queue, Regenerator: regen})

	task := domain.NewCorrectionTask(beginnerSaving, "bias", "fb-1", "")
	w.processTask(context.Background(), task, slog.Default())

	if len(reasons) != 1 {
		t.Fatalf("expected 1 nack, got %d", len(reasons))
	}
	if reasons[0] != domain.ErrRewriteUnavailable.Error() {
		t.Errorf("unexpected nack reason %q", reasons[0])
	}
	if w.Health(context.Background()).Failed != 1 {
		t.Error("expected failed count 1")
	}
}

func TestWorker_ProcessTask_UnknownType(t *testing.T) {
	queue := newMockTaskQueue()
	var nacked []string
	queue.nackFn = func(taskID, reason string) error {
		nacked = append(nacked, taskID)
		return nil
	}

	w := NewWorker(WorkerConfig{TaskQueue: queue, Regenerator: newFakeRegenerator()})

	task := &domain.Task{ID: "task-123", Type: domain.TaskType("unknown_type")}
	w.processTask(context.Background(), task, slog.Default())

	if len(nacked) != 1 {
		t.Errorf("expected 1 nack for unknown type, got %d", len(nacked))
	}
}

func TestWorker_ProcessTask_MissingSlot(t *testing.T) {
	queue := newMockTaskQueue()
	var nacked []string
	queue.nackFn = func(taskID, reason string) error {
		nacked = append(nacked, taskID)
		return nil
	}
	regen := newFakeRegenerator()

	w := NewWorker(WorkerConfig{TaskQueue: queue, Regenerator: regen})

	task := domain.NewTask(domain.TaskTypeCorrection, map[string]string{"concept": "saving"})
	w.processTask(context.Background(), task, slog.Default())

	if len(nacked) != 1 {
		t.Errorf("expected 1 nack for incomplete slot, got %d", len(nacked))
	}
	if len(regen.Requests()) != 0 {
		t.Error("regenerator should not be called for an invalid slot")
	}
}

func TestWorker_DrainsMemoryQueue(t *testing.T) {
	queue := memory.NewQueue()
	regen := newFakeRegenerator()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := domain.NewCorrectionTask(beginnerSaving, "bias", "fb-1", "")
	second := domain.NewCorrectionTask(
		domain.Slot{Concept: "saving", Difficulty: "advanced", AgeBand: "age_13_17"}, "bias", "fb-1", "")
	if err := queue.EnqueueBatch(ctx, []*domain.Task{first, second}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	w := NewWorker(WorkerConfig{
		TaskQueue:      queue,
		Regenerator:    regen,
		Concurrency:    2,
		DequeueTimeout: 50 * time.Millisecond,
	})
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-regen.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for task %d", i+1)
		}
	}
	w.Stop()

	stats, err := queue.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.CompletedCount != 2 {
		t.Errorf("expected 2 completed tasks, got %+v", stats)
	}
}
