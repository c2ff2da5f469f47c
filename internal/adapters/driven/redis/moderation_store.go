package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ModerationStore = (*ModerationStore)(nil)

const (
	reviewKeyPrefix = "quizcorpus:review:"
	reviewSeqKey    = "quizcorpus:review-seq"
	reviewsAll      = "quizcorpus:reviews"
	reviewsPending  = "quizcorpus:reviews:pending"
)

// ModerationStore keeps each review item in a hash (data, status,
// resolution) and indexes ids in sorted sets scored by Seq.
type ModerationStore struct {
	client *redis.Client
}

// NewModerationStore creates a new Redis-backed moderation store.
func NewModerationStore(client *redis.Client) *ModerationStore {
	return &ModerationStore{client: client}
}

// Create inserts a pending item and assigns Seq from a counter.
func (s *ModerationStore) Create(ctx context.Context, item *domain.ModerationItem) error {
	seq, err := s.client.Incr(ctx, reviewSeqKey).Result()
	if err != nil {
		return fmt.Errorf("allocate review seq: %w", err)
	}
	item.Seq = seq

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal review item: %w", err)
	}

	key := reviewKeyPrefix + item.ReviewID
	created, err := s.client.HSetNX(ctx, key, "data", data).Result()
	if err != nil {
		return fmt.Errorf("store review item: %w", err)
	}
	if !created {
		return fmt.Errorf("%w: review %s already exists", domain.ErrInvalidInput, item.ReviewID)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "status", string(item.Status))
	pipe.ZAdd(ctx, reviewsAll, redis.Z{Score: float64(seq), Member: item.ReviewID})
	if item.IsPending() {
		pipe.ZAdd(ctx, reviewsPending, redis.Z{Score: float64(seq), Member: item.ReviewID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index review item: %w", err)
	}
	return nil
}

// Get retrieves an item by review ID.
func (s *ModerationStore) Get(ctx context.Context, reviewID string) (*domain.ModerationItem, error) {
	fields, err := s.client.HGetAll(ctx, reviewKeyPrefix+reviewID).Result()
	if err != nil {
		return nil, fmt.Errorf("get review item: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	return decodeItem(fields)
}

// resolveScript sets the resolution only while the status field is pending.
// Returns -1 for unknown ids, 0 when already resolved, 1 on success.
var resolveScript = redis.NewScript(`
	local status = redis.call("hget", KEYS[1], "status")
	if not status then
		return -1
	end
	if status ~= "pending" then
		return 0
	end
	redis.call("hset", KEYS[1], "status", "resolved", "resolution", ARGV[1])
	redis.call("zrem", KEYS[2], ARGV[2])
	return 1
`)

// Resolve records the resolution atomically; exactly one ever wins.
func (s *ModerationStore) Resolve(ctx context.Context, reviewID string, resolution *domain.Resolution) error {
	data, err := json.Marshal(resolution)
	if err != nil {
		return fmt.Errorf("marshal resolution: %w", err)
	}

	result, err := resolveScript.Run(ctx, s.client,
		[]string{reviewKeyPrefix + reviewID, reviewsPending},
		string(data), reviewID,
	).Int64()
	if err != nil {
		return fmt.Errorf("resolve review item: %w", err)
	}

	switch result {
	case 1:
		return nil
	case 0:
		return domain.ErrAlreadyResolved
	default:
		return domain.ErrNotFound
	}
}

// List retrieves items matching the filter, ordered by Seq.
func (s *ModerationStore) List(ctx context.Context, filter domain.ModerationFilter) ([]*domain.ModerationItem, error) {
	index := reviewsAll
	if filter.Status == domain.ReviewStatusPending {
		index = reviewsPending
	}

	ids, err := s.client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list review ids: %w", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, reviewKeyPrefix+id)
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("load review items: %w", err)
		}
	}

	var items []*domain.ModerationItem
	skipped := 0
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		item, err := decodeItem(fields)
		if err != nil {
			return nil, err
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && item.Priority != filter.Priority {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		items = append(items, item)
		if filter.Limit > 0 && len(items) >= filter.Limit {
			break
		}
	}
	return items, nil
}

// Ping checks if the Redis backend is healthy.
func (s *ModerationStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodeItem(fields map[string]string) (*domain.ModerationItem, error) {
	var item domain.ModerationItem
	if err := json.Unmarshal([]byte(fields["data"]), &item); err != nil {
		return nil, fmt.Errorf("unmarshal review item: %w", err)
	}
	if status, ok := fields["status"]; ok {
		item.Status = domain.ReviewStatus(status)
	}
	if raw, ok := fields["resolution"]; ok && raw != "" {
		item.Resolution = &domain.Resolution{}
		if err := json.Unmarshal([]byte(raw), item.Resolution); err != nil {
			return nil, fmt.Errorf("unmarshal resolution: %w", err)
		}
	}
	return &item, nil
}
