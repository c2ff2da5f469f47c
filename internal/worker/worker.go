package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
	"github.com/custodia-labs/quizcorpus/internal/core/services"
)

// Regenerator rewrites the current document of a slot.
type Regenerator interface {
	Regenerate(ctx context.Context, req services.RegenerateRequest) (*domain.Document, error)
}

// Refresher keeps an in-process corpus view in step with the shared store.
type Refresher interface {
	RunRefresher(ctx context.Context, interval time.Duration)
}

// Worker processes correction tasks from the task queue.
type Worker struct {
	taskQueue   driven.TaskQueue
	regenerator Regenerator
	refresher   Refresher
	logger      *slog.Logger

	concurrency     int
	dequeueTimeout  time.Duration
	refreshInterval time.Duration

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	cancel  context.CancelFunc

	processed int64
	failed    int64
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue   driven.TaskQueue
	Regenerator Regenerator
	Logger      *slog.Logger

	// Refresher is optional. When set, the worker reloads the corpus every
	// RefreshInterval so corrections made by other processes become visible.
	Refresher       Refresher
	RefreshInterval time.Duration

	Concurrency    int           // Number of concurrent task processors
	DequeueTimeout time.Duration // How long to wait for a task before checking again
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}

	refreshInterval := cfg.RefreshInterval
	if refreshInterval <= 0 {
		refreshInterval = 30 * time.Second
	}

	return &Worker{
		taskQueue:       cfg.TaskQueue,
		regenerator:     cfg.Regenerator,
		refresher:       cfg.Refresher,
		logger:          logger,
		concurrency:     concurrency,
		dequeueTimeout:  dequeueTimeout,
		refreshInterval: refreshInterval,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	if w.taskQueue == nil || w.regenerator == nil {
		w.mu.Unlock()
		return fmt.Errorf("%w: worker needs a task queue and a regenerator", domain.ErrInvalidInput)
	}
	ctx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup

	if w.refresher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.refresher.RunRefresher(ctx, w.refreshInterval)
		}()
	}

	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker. A task already being processed is
// allowed to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.cancel()
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	w.mu.RLock()
	done := w.doneCh
	w.mu.RUnlock()
	if done != nil {
		<-done
	}
}

func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Debug("worker stop signal received")
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			case <-w.stopCh:
			}
			continue
		}

		if task == nil {
			continue
		}

		// Processing uses a context detached from Stop so an in-flight
		// correction is not torn down between rewrite and commit.
		w.processTask(context.WithoutCancel(ctx), task, logger)
	}
}

func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "attempt", task.Attempts)
	logger.Info("processing task")

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeCorrection:
		err = w.handleCorrection(ctx, task, logger)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		w.mu.Lock()
		w.failed++
		w.mu.Unlock()

		logger.Error("task failed", "duration", duration, "error", err)

		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	w.mu.Lock()
	w.processed++
	w.mu.Unlock()

	logger.Info("task completed", "duration", duration)

	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

func (w *Worker) handleCorrection(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	slot := task.Slot()
	if err := slot.Validate(); err != nil {
		return fmt.Errorf("correction task payload: %w", err)
	}

	doc, err := w.regenerator.Regenerate(ctx, services.RegenerateRequest{
		Slot:     slot,
		Reason:   task.PayloadValue("reason"),
		Comments: task.PayloadValue("comments"),
	})
	if err != nil {
		return err
	}

	logger.Info("slot regenerated",
		"slot", slot.String(),
		"document_id", doc.ID,
		"version", doc.Version,
		"feedback_id", task.PayloadValue("feedback_id"),
	)
	return nil
}

// Health describes the worker and its queue.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Processed   int64  `json:"processed"`
	Failed      int64  `json:"failed"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	health := Health{
		Running:   w.running,
		Processed: w.processed,
		Failed:    w.failed,
	}
	w.mu.RUnlock()

	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
