package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// pollInterval bounds how late a delayed task is picked up by a waiting dequeue.
const pollInterval = 50 * time.Millisecond

// Queue is a process-local TaskQueue for single-node deployments and tests.
// Tasks do not survive a restart.
type Queue struct {
	mu     sync.Mutex
	tasks  map[string]*domain.Task
	notify chan struct{}
	closed bool
}

// NewQueue creates an empty in-memory queue.
func NewQueue() *Queue {
	return &Queue{
		tasks:  make(map[string]*domain.Task),
		notify: make(chan struct{}, 1),
	}
}

// Enqueue adds a task to the queue.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	return q.EnqueueBatch(ctx, []*domain.Task{task})
}

// EnqueueBatch adds multiple tasks atomically.
func (q *Queue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.New("queue is closed")
	}
	for _, task := range tasks {
		if task == nil {
			return errors.New("task is required")
		}
	}
	for _, task := range tasks {
		q.tasks[task.ID] = copyTask(task)
	}
	q.signal()
	return nil
}

// DequeueWithTimeout returns the most urgent ready task, waiting up to timeout.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	deadline := time.Now().Add(timeout)

	for {
		if task := q.next(); task != nil {
			return task, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		wait := pollInterval
		if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (q *Queue) next() *domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ready []*domain.Task
	now := time.Now()
	for _, task := range q.tasks {
		if task.Status == domain.TaskStatusPending && !task.ScheduledFor.After(now) {
			ready = append(ready, task)
		}
	}
	if len(ready) == 0 {
		return nil
	}

	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority > ready[j].Priority
		}
		if !ready[i].CreatedAt.Equal(ready[j].CreatedAt) {
			return ready[i].CreatedAt.Before(ready[j].CreatedAt)
		}
		return ready[i].ID < ready[j].ID
	})

	task := ready[0]
	task.MarkProcessing()
	return copyTask(task)
}

// Ack marks a task completed.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	task.MarkCompleted()
	return nil
}

// Nack reschedules a task with backoff, or marks it failed once attempts run out.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	if task.CanRetry() {
		task.Retry(reason)
	} else {
		task.MarkFailed(reason)
	}
	return nil
}

// GetTask returns a copy of the task, or nil when unknown.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return nil, nil
	}
	return copyTask(task), nil
}

// Stats counts tasks by status.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := &driven.QueueStats{}
	for _, task := range q.tasks {
		switch task.Status {
		case domain.TaskStatusPending:
			stats.PendingCount++
		case domain.TaskStatusProcessing:
			stats.ProcessingCount++
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

// Ping always succeeds.
func (q *Queue) Ping(ctx context.Context) error {
	return nil
}

// Close rejects further enqueues.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func copyTask(t *domain.Task) *domain.Task {
	c := *t
	if t.Payload != nil {
		c.Payload = make(map[string]string, len(t.Payload))
		for k, v := range t.Payload {
			c.Payload[k] = v
		}
	}
	return &c
}
