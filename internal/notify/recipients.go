package notify

import (
	"context"
	"database/sql"
	"errors"

	apperrors "coaching-notifier/internal/common/errors"
	"coaching-notifier/internal/models"
)

var (
	ErrClientNotFound  = errors.New("client not found")
	ErrNoLinkedUser    = errors.New("client has no linked user")
	ErrSessionNotFound = errors.New("session not found")
)

// Directory resolves event references to the data handlers need.
type Directory interface {
	RecipientForClient(ctx context.Context, clientID string) (*models.Recipient, error)
	Session(ctx context.Context, sessionID string) (*models.Session, error)
}

// PostgresDirectory reads recipients from the clients and users tables.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) RecipientForClient(ctx context.Context, clientID string) (*models.Recipient, error) {
	var (
		r      = models.Recipient{ClientID: clientID}
		userID sql.NullString
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT c.user_id,
		       COALESCE(u.email, ''),
		       COALESCE(u.phone, ''),
		       COALESCE(u.display_name, c.display_name),
		       COALESCE(s.timezone, '')
		FROM clients c
		LEFT JOIN users u ON u.id = c.user_id
		LEFT JOIN schedules s ON s.client_id = c.id
		WHERE c.id = $1`,
		clientID,
	).Scan(&userID, &r.Email, &r.Phone, &r.DisplayName, &r.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("directory.recipient", err)
	}
	if !userID.Valid || userID.String == "" {
		return nil, ErrNoLinkedUser
	}
	r.UserID = userID.String
	return &r, nil
}

func (d *PostgresDirectory) Session(ctx context.Context, sessionID string) (*models.Session, error) {
	var s models.Session
	err := d.db.QueryRowContext(ctx, `
		SELECT id, client_id, coach_id, held_at, COALESCE(summary, ''), summary_shared, created_at
		FROM sessions WHERE id = $1`,
		sessionID,
	).Scan(&s.ID, &s.ClientID, &s.CoachID, &s.HeldAt, &s.Summary, &s.SummaryShared, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("directory.session", err)
	}
	return &s, nil
}
