package reminder

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "coaching-notifier/internal/common/errors"
	"coaching-notifier/internal/models"
)

// Store is what the scan reads.
type Store interface {
	// DueSchedules returns schedules with next_occurrence in [from, to) whose
	// client has a linked user account.
	DueSchedules(ctx context.Context, from, to time.Time) ([]models.DueSchedule, error)
	// CoachName returns the coach's display name, or "" when it has none.
	CoachName(ctx context.Context, coachID string) (string, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DueSchedules(ctx context.Context, from, to time.Time) ([]models.DueSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.client_id, s.weekday, s.local_time, s.timezone, s.next_occurrence,
		       s.session_count, s.updated_at, c.user_id, c.coach_id
		FROM schedules s
		JOIN clients c ON c.id = s.client_id
		WHERE s.next_occurrence >= $1
		  AND s.next_occurrence < $2
		  AND c.user_id IS NOT NULL
		  AND c.status = 'active'
		ORDER BY s.next_occurrence, s.client_id`,
		from, to,
	)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("reminder.due_schedules", err)
	}
	defer rows.Close()

	var out []models.DueSchedule
	for rows.Next() {
		var d models.DueSchedule
		if err := rows.Scan(
			&d.ClientID, &d.Weekday, &d.LocalTime, &d.Timezone, &d.NextOccurrence,
			&d.SessionCount, &d.UpdatedAt, &d.UserID, &d.CoachID,
		); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("reminder.due_schedules", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("reminder.due_schedules", err)
	}
	return out, nil
}

func (s *PostgresStore) CoachName(ctx context.Context, coachID string) (string, error) {
	var name sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT display_name FROM coaches WHERE id = $1`, coachID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewQueryExecutionFailedError("reminder.coach_name", err)
	}
	return name.String, nil
}
