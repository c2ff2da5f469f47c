package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ModerationStore = (*ModerationStore)(nil)

// ModerationStore implements driven.ModerationStore on SQLite.
// Timestamps are stored as RFC 3339 text.
type ModerationStore struct {
	db *sql.DB
}

const itemColumns = `seq, review_id, feedback_ref, priority, status, reason, auto_action, resolution, created_at`

// Create inserts a pending item; the autoincrement key becomes Seq.
func (s *ModerationStore) Create(ctx context.Context, item *domain.ModerationItem) error {
	ref, err := json.Marshal(item.FeedbackRef)
	if err != nil {
		return fmt.Errorf("marshalling feedback ref: %w", err)
	}
	var autoAction sql.NullString
	if item.AutoAction != nil {
		data, err := json.Marshal(item.AutoAction)
		if err != nil {
			return fmt.Errorf("marshalling auto action: %w", err)
		}
		autoAction = sql.NullString{String: string(data), Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_items (review_id, concept, feedback_ref, priority, status, reason, auto_action, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ReviewID,
		item.FeedbackRef.Concept,
		string(ref),
		string(item.Priority),
		string(item.Status),
		item.Reason,
		autoAction,
		item.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting review item: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading review seq: %w", err)
	}
	item.Seq = seq
	return nil
}

// Get retrieves an item by review ID.
func (s *ModerationStore) Get(ctx context.Context, reviewID string) (*domain.ModerationItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM moderation_items WHERE review_id = ?`, reviewID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting review item: %w", err)
	}
	return item, nil
}

// Resolve closes a pending item. The status guard in the WHERE clause makes
// the first resolution the only one.
func (s *ModerationStore) Resolve(ctx context.Context, reviewID string, resolution *domain.Resolution) error {
	data, err := json.Marshal(resolution)
	if err != nil {
		return fmt.Errorf("marshalling resolution: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE moderation_items
		SET status = ?, resolution = ?, resolved_at = ?
		WHERE review_id = ? AND status = ?
	`,
		string(domain.ReviewStatusResolved),
		string(data),
		resolution.ResolvedAt.UTC().Format(time.RFC3339Nano),
		reviewID,
		string(domain.ReviewStatusPending),
	)
	if err != nil {
		return fmt.Errorf("resolving review item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if rows == 1 {
		return nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM moderation_items WHERE review_id = ?`, reviewID).Scan(&count); err != nil {
		return fmt.Errorf("checking review item: %w", err)
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrAlreadyResolved
}

// List retrieves items matching the filter, ordered by Seq.
func (s *ModerationStore) List(ctx context.Context, filter domain.ModerationFilter) ([]*domain.ModerationItem, error) {
	query := `SELECT ` + itemColumns + ` FROM moderation_items WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, string(filter.Priority))
	}
	query += ` ORDER BY seq ASC`
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1 // SQLite: no limit
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing review items: %w", err)
	}
	defer rows.Close()

	var items []*domain.ModerationItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning review item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Ping checks the database connection.
func (s *ModerationStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.ModerationItem, error) {
	var (
		item                   domain.ModerationItem
		ref, priority, status  string
		autoAction, resolution sql.NullString
		createdAt              string
	)

	if err := row.Scan(&item.Seq, &item.ReviewID, &ref, &priority, &status, &item.Reason, &autoAction, &resolution, &createdAt); err != nil {
		return nil, err
	}
	item.Priority = domain.Priority(priority)
	item.Status = domain.ReviewStatus(status)

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	item.CreatedAt = t

	if err := json.Unmarshal([]byte(ref), &item.FeedbackRef); err != nil {
		return nil, fmt.Errorf("unmarshalling feedback ref: %w", err)
	}
	if autoAction.Valid {
		item.AutoAction = &domain.DocumentRef{}
		if err := json.Unmarshal([]byte(autoAction.String), item.AutoAction); err != nil {
			return nil, fmt.Errorf("unmarshalling auto action: %w", err)
		}
	}
	if resolution.Valid {
		item.Resolution = &domain.Resolution{}
		if err := json.Unmarshal([]byte(resolution.String), item.Resolution); err != nil {
			return nil, fmt.Errorf("unmarshalling resolution: %w", err)
		}
	}
	return &item, nil
}
