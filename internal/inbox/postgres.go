package inbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "coaching-notifier/internal/common/errors"
	"coaching-notifier/internal/models"
)

const notificationColumns = `id, user_id, kind, title, message, metadata, read, created_at`

// PostgresStore keeps notifications in the notifications table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, n models.Notification) error {
	metadata := "{}"
	if len(n.Metadata) > 0 {
		data, err := json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metadata = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)`,
		n.ID, n.UserID, n.Kind, n.Title, n.Message, metadata, n.CreatedAt,
	)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, userID string, status Status, limit int, after *Cursor) ([]models.Notification, error) {
	var (
		where = []string{"user_id = $1"}
		args  = []any{userID}
	)
	switch status {
	case StatusRead:
		where = append(where, "read = true")
	case StatusUnread:
		where = append(where, "read = false")
	}
	if after != nil {
		args = append(args, after.CreatedAt, after.ID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d`,
		notificationColumns, strings.Join(where, " AND "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("inbox.list", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n   models.Notification
			raw []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Message, &raw, &n.Read, &n.CreatedAt); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("inbox.list", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &n.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", n.ID, err)
			}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("inbox.list", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("inbox.mark_read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("inbox.mark_read", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = true WHERE user_id = $1 AND read = false`, userID)
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("inbox.mark_all_read", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = false`, userID).Scan(&n)
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("inbox.unread_count", err)
	}
	return n, nil
}
