// Package corpus owns the in-memory corpus: a versioned document set plus
// the vector index of its current documents, published as immutable
// snapshots and persisted on every commit.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

// DefaultLockName is the distributed lock shared by every corpus writer.
const DefaultLockName = "corpus-writer"

// ErrLockTimeout is returned when the distributed writer lock cannot be acquired.
var ErrLockTimeout = errors.New("corpus writer lock timeout")

// Config holds the collaborators of a Handle.
type Config struct {
	Store driven.CorpusStore

	// NewIndex creates an empty index with the configured dimensions and metric.
	NewIndex func() (driven.VectorIndex, error)

	// Lock, when set, serialises writers across processes.
	Lock     driven.DistributedLock
	LockName string
	LockTTL  time.Duration
	LockWait time.Duration

	Logger *slog.Logger
}

// Handle is the single entry point to the corpus. Readers take a Snapshot
// and never block; writers go through Update, one at a time.
type Handle struct {
	store    driven.CorpusStore
	newIndex func() (driven.VectorIndex, error)
	lock     driven.DistributedLock
	lockName string
	lockTTL  time.Duration
	lockWait time.Duration
	logger   *slog.Logger

	mu      sync.Mutex // writer lock
	current atomic.Pointer[Snapshot]
}

type writeLockKey struct{}

// NewHandle creates a handle holding an empty corpus. Call Load to read
// the persisted state.
func NewHandle(cfg Config) (*Handle, error) {
	if cfg.Store == nil || cfg.NewIndex == nil {
		return nil, fmt.Errorf("%w: corpus store and index factory are required", domain.ErrInvalidInput)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lockName := cfg.LockName
	if lockName == "" {
		lockName = DefaultLockName
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	lockWait := cfg.LockWait
	if lockWait <= 0 {
		lockWait = 10 * time.Second
	}

	index, err := cfg.NewIndex()
	if err != nil {
		return nil, err
	}

	h := &Handle{
		store:    cfg.Store,
		newIndex: cfg.NewIndex,
		lock:     cfg.Lock,
		lockName: lockName,
		lockTTL:  lockTTL,
		lockWait: lockWait,
		logger:   logger.With("component", "corpus"),
	}
	h.current.Store(&Snapshot{docs: NewDocumentSet(), index: index})
	return h, nil
}

// Snapshot returns the latest published snapshot.
func (h *Handle) Snapshot() *Snapshot {
	return h.current.Load()
}

// Stats describes the latest published snapshot.
func (h *Handle) Stats() Stats {
	return h.Snapshot().Stats()
}

// Load replaces the in-memory corpus with the persisted one.
func (h *Handle) Load(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap, err := h.loadSnapshot(ctx)
	if err != nil {
		return err
	}
	h.current.Store(snap)
	h.logger.Info("corpus loaded",
		"generation", snap.generation,
		"documents", snap.docs.Len(),
		"current", snap.docs.CurrentLen(),
	)
	return nil
}

// Refresh reloads the corpus when another process committed a newer generation.
func (h *Handle) Refresh(ctx context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refreshLocked(ctx)
}

func (h *Handle) refreshLocked(ctx context.Context) (bool, error) {
	gen, err := h.store.Generation(ctx)
	if err != nil {
		return false, err
	}
	if gen <= h.Snapshot().generation {
		return false, nil
	}

	snap, err := h.loadSnapshot(ctx)
	if err != nil {
		return false, err
	}
	h.current.Store(snap)
	h.logger.Info("corpus refreshed", "generation", snap.generation)
	return true, nil
}

// RunRefresher polls for newer generations until ctx is cancelled.
func (h *Handle) RunRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := h.Refresh(ctx); err != nil {
				h.logger.Warn("corpus refresh failed", "error", err)
			}
		}
	}
}

func (h *Handle) loadSnapshot(ctx context.Context) (*Snapshot, error) {
	image, err := h.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	index, err := h.newIndex()
	if err != nil {
		return nil, err
	}
	if len(image.Vectors) > 0 {
		if image.Dimensions != index.Dimensions() {
			return nil, fmt.Errorf("%w: persisted corpus has %d dimensions, configured %d",
				domain.ErrDimensionMismatch, image.Dimensions, index.Dimensions())
		}
		if image.Metric != "" && image.Metric != index.Metric() {
			return nil, fmt.Errorf("%w: persisted corpus uses metric %s, configured %s",
				domain.ErrInvalidInput, image.Metric, index.Metric())
		}
	}

	docs, err := restore(image.Documents)
	if err != nil {
		return nil, err
	}
	for _, rec := range image.Vectors {
		if err := index.Insert(rec.ID, rec.Vector); err != nil {
			return nil, fmt.Errorf("%w: vector %s: %v", domain.ErrCorruptPersistedState, rec.ID, err)
		}
	}
	if err := verify(docs, index); err != nil {
		return nil, err
	}
	return &Snapshot{generation: image.Generation, docs: docs, index: index}, nil
}

// Update applies fn to a private copy of the corpus, checks the result,
// persists it and publishes it. If fn, the check or the save fails the
// copy is discarded and readers keep seeing the previous snapshot.
func (h *Handle) Update(ctx context.Context, fn func(tx *Tx) error) (*Snapshot, error) {
	var published *Snapshot

	err := h.WithWriteLock(ctx, func(ctx context.Context) error {
		base := h.Snapshot()
		tx := &Tx{
			docs:  base.docs.clone(),
			index: base.index.Clone(),
			now:   time.Now().UTC(),
		}
		if err := fn(tx); err != nil {
			return err
		}
		if !tx.changed {
			published = base
			return nil
		}

		if err := verify(tx.docs, tx.index); err != nil {
			return err
		}

		next := &Snapshot{generation: base.generation + 1, docs: tx.docs, index: tx.index}
		if err := h.store.Save(ctx, next.image()); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
		}

		h.current.Store(next)
		published = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return published, nil
}

// WithWriteLock runs fn while holding the corpus writer lock. Calls from
// inside fn that receive its context (including Update) reuse the lock.
func (h *Handle) WithWriteLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if held, _ := ctx.Value(writeLockKey{}).(*Handle); held == h {
		return fn(ctx)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.lock != nil {
		if err := h.acquireDistributed(ctx); err != nil {
			return err
		}
		defer func() {
			if err := h.lock.Release(context.WithoutCancel(ctx), h.lockName); err != nil {
				h.logger.Warn("failed to release corpus lock", "error", err)
			}
		}()

		// Another process may have committed since we last looked.
		if _, err := h.refreshLocked(ctx); err != nil {
			return err
		}
	}

	return fn(context.WithValue(ctx, writeLockKey{}, h))
}

func (h *Handle) acquireDistributed(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = h.lockWait

	err := backoff.Retry(func() error {
		ok, err := h.lock.Acquire(ctx, h.lockName, h.lockTTL)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return ErrLockTimeout
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			return fmt.Errorf("%w after %s", ErrLockTimeout, h.lockWait)
		}
		return fmt.Errorf("acquire corpus lock: %w", err)
	}
	return nil
}

// Verify checks the invariants of the current snapshot.
func (h *Handle) Verify() error {
	return h.Snapshot().Verify()
}
