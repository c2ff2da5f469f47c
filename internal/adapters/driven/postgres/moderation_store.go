package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ModerationStore = (*ModerationStore)(nil)

// ModerationStore implements driven.ModerationStore using PostgreSQL
type ModerationStore struct {
	db *DB
}

// NewModerationStore creates a new ModerationStore
func NewModerationStore(db *DB) *ModerationStore {
	return &ModerationStore{db: db}
}

const moderationColumns = `review_id, seq, feedback_ref, priority, status, reason, auto_action, resolution, created_at`

// Create inserts a pending item; the sequence column assigns Seq.
func (s *ModerationStore) Create(ctx context.Context, item *domain.ModerationItem) error {
	ref, err := json.Marshal(item.FeedbackRef)
	if err != nil {
		return fmt.Errorf("marshal feedback ref: %w", err)
	}
	autoAction, err := nullJSON(item.AutoAction)
	if err != nil {
		return fmt.Errorf("marshal auto action: %w", err)
	}

	query := `
		INSERT INTO moderation_items (
			review_id, concept, bias_types, feedback_ref, priority, status, reason, auto_action, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`

	err = s.db.QueryRowContext(ctx, query,
		item.ReviewID,
		item.FeedbackRef.Concept,
		pq.Array(item.FeedbackRef.BiasTypes),
		ref,
		item.Priority,
		item.Status,
		item.Reason,
		autoAction,
		item.CreatedAt,
	).Scan(&item.Seq)
	if err != nil {
		return fmt.Errorf("insert review item: %w", err)
	}
	return nil
}

// Get retrieves an item by review ID
func (s *ModerationStore) Get(ctx context.Context, reviewID string) (*domain.ModerationItem, error) {
	query := `SELECT ` + moderationColumns + ` FROM moderation_items WHERE review_id = $1`

	item, err := scanItem(s.db.QueryRowContext(ctx, query, reviewID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get review item: %w", err)
	}
	return item, nil
}

// Resolve closes a pending item. The row is locked for the duration of the
// transaction so that exactly one resolution is ever stored.
func (s *ModerationStore) Resolve(ctx context.Context, reviewID string, resolution *domain.Resolution) error {
	data, err := json.Marshal(resolution)
	if err != nil {
		return fmt.Errorf("marshal resolution: %w", err)
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM moderation_items WHERE review_id = $1 FOR UPDATE`, reviewID,
		).Scan(&status)
		found := true
		if errors.Is(err, sql.ErrNoRows) {
			found = false
		} else if err != nil {
			return fmt.Errorf("lock review item: %w", err)
		}
		if err := resolvable(found, domain.ReviewStatus(status)); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE moderation_items
			SET status = $1, resolution = $2, resolved_at = $3
			WHERE review_id = $4
		`, domain.ReviewStatusResolved, data, resolution.ResolvedAt, reviewID)
		if err != nil {
			return fmt.Errorf("resolve review item: %w", err)
		}
		return nil
	})
}

// resolvable maps the locked row's state to the Resolve outcome.
func resolvable(found bool, status domain.ReviewStatus) error {
	switch {
	case !found:
		return domain.ErrNotFound
	case status != domain.ReviewStatusPending:
		return domain.ErrAlreadyResolved
	default:
		return nil
	}
}

// List retrieves items matching the filter, ordered by Seq
func (s *ModerationStore) List(ctx context.Context, filter domain.ModerationFilter) ([]*domain.ModerationItem, error) {
	query, args := listQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list review items: %w", err)
	}
	defer rows.Close()

	var items []*domain.ModerationItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// listQuery builds the filtered SELECT for List.
func listQuery(filter domain.ModerationFilter) (string, []any) {
	query := `SELECT ` + moderationColumns + ` FROM moderation_items WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		query += fmt.Sprintf(" AND priority = $%d", len(args))
	}

	query += " ORDER BY seq ASC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

// Ping checks if the database is reachable
func (s *ModerationStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*domain.ModerationItem, error) {
	var (
		item       domain.ModerationItem
		ref        []byte
		autoAction []byte
		resolution []byte
		createdAt  time.Time
	)

	err := row.Scan(
		&item.ReviewID,
		&item.Seq,
		&ref,
		&item.Priority,
		&item.Status,
		&item.Reason,
		&autoAction,
		&resolution,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	item.CreatedAt = createdAt

	if err := json.Unmarshal(ref, &item.FeedbackRef); err != nil {
		return nil, fmt.Errorf("unmarshal feedback ref: %w", err)
	}
	if len(autoAction) > 0 {
		item.AutoAction = &domain.DocumentRef{}
		if err := json.Unmarshal(autoAction, item.AutoAction); err != nil {
			return nil, fmt.Errorf("unmarshal auto action: %w", err)
		}
	}
	if len(resolution) > 0 {
		item.Resolution = &domain.Resolution{}
		if err := json.Unmarshal(resolution, item.Resolution); err != nil {
			return nil, fmt.Errorf("unmarshal resolution: %w", err)
		}
	}
	return &item, nil
}

func nullJSON(v *domain.DocumentRef) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
