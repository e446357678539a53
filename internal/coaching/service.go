// Package coaching holds the domain operations that produce notification
// events: setting a schedule, logging a session and sharing a resource.
package coaching

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"coaching-notifier/internal/common/database"
	apperrors "coaching-notifier/internal/common/errors"
	"coaching-notifier/internal/common/logger"
	"coaching-notifier/internal/eventbus"
	"coaching-notifier/internal/models"
	"coaching-notifier/internal/schedule"

	"github.com/google/uuid"
)

// Emitter publishes events.
type Emitter interface {
	Emit(ctx context.Context, p eventbus.Payload)
}

type Service struct {
	db     *sql.DB
	bus    Emitter
	logger logger.Logger
	clock  func() time.Time
	newID  func() string
}

func NewService(db *sql.DB, bus Emitter, log logger.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: log.WithFields(map[string]interface{}{"component": "coaching"}),
		clock:  func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

// SetSchedule stores the weekly slot for a client and computes its next
// occurrence from now. The session counter is kept across changes.
func (s *Service) SetSchedule(ctx context.Context, clientID string, rec schedule.Recurrence) (*models.Schedule, error) {
	now := s.clock()
	next, err := rec.Next(now)
	if err != nil {
		return nil, err
	}
	if _, err := s.client(ctx, s.db, clientID); err != nil {
		return nil, err
	}

	out := &models.Schedule{
		ClientID:       clientID,
		Weekday:        rec.Weekday,
		LocalTime:      rec.Time,
		Timezone:       rec.Timezone,
		NextOccurrence: next,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO schedules (client_id, weekday, local_time, timezone, next_occurrence, session_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
		ON CONFLICT (client_id) DO UPDATE SET
			weekday = EXCLUDED.weekday,
			local_time = EXCLUDED.local_time,
			timezone = EXCLUDED.timezone,
			next_occurrence = EXCLUDED.next_occurrence,
			updated_at = EXCLUDED.updated_at
		RETURNING session_count, updated_at`,
		clientID, rec.Weekday, rec.Time, rec.Timezone, next, now,
	).Scan(&out.SessionCount, &out.UpdatedAt)
	if err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	s.logger.Info("schedule set", map[string]interface{}{
		"clientId":       clientID,
		"nextOccurrence": next.UTC().Format(time.RFC3339),
	})
	return out, nil
}

type LogSessionInput struct {
	ClientID string    `json:"clientId"`
	HeldAt   time.Time `json:"heldAt"`
	Summary  string    `json:"summary"`
	// ShareSummary makes the summary visible to the client and notifies them.
	ShareSummary bool `json:"shareSummary"`
}

type LogSessionResult struct {
	Session models.Session `json:"session"`
	// NextOccurrence is nil when the client has no schedule.
	NextOccurrence *time.Time `json:"nextOccurrence,omitempty"`
}

// LogSession records a held session and advances the client's schedule in
// the same transaction. The schedule's next occurrence and session count
// change in a single statement.
func (s *Service) LogSession(ctx context.Context, in LogSessionInput) (*LogSessionResult, error) {
	now := s.clock()
	heldAt := in.HeldAt
	if heldAt.IsZero() {
		heldAt = now
	}
	shared := in.ShareSummary && strings.TrimSpace(in.Summary) != ""

	res := &LogSessionResult{Session: models.Session{
		ID:            s.newID(),
		ClientID:      in.ClientID,
		HeldAt:        heldAt.UTC(),
		Summary:       in.Summary,
		SummaryShared: shared,
		CreatedAt:     now,
	}}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		c, err := s.client(ctx, tx, in.ClientID)
		if err != nil {
			return err
		}
		res.Session.CoachID = c.CoachID

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, client_id, coach_id, held_at, summary, summary_shared, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			res.Session.ID, res.Session.ClientID, res.Session.CoachID, res.Session.HeldAt,
			res.Session.Summary, res.Session.SummaryShared, res.Session.CreatedAt,
		); err != nil {
			return apperrors.NewDatabaseInsertFailedError(err)
		}

		var rec schedule.Recurrence
		err = tx.QueryRowContext(ctx,
			`SELECT weekday, local_time, timezone FROM schedules WHERE client_id = $1 FOR UPDATE`,
			in.ClientID,
		).Scan(&rec.Weekday, &rec.Time, &rec.Timezone)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return apperrors.NewQueryExecutionFailedError("coaching.schedule", err)
		}

		ref := heldAt
		if now.After(ref) {
			ref = now
		}
		next, err := rec.Next(ref)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE schedules
			SET next_occurrence = $1, session_count = session_count + 1, updated_at = $2
			WHERE client_id = $3`,
			next, now, in.ClientID,
		); err != nil {
			return apperrors.NewDatabaseInsertFailedError(err)
		}
		res.NextOccurrence = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("session logged", map[string]interface{}{
		"clientId":      in.ClientID,
		"sessionId":     res.Session.ID,
		"summaryShared": shared,
	})

	if shared {
		s.emit(ctx, eventbus.SessionSummaryPosted{
			ClientID:  in.ClientID,
			SessionID: res.Session.ID,
			CoachName: s.coachName(ctx, res.Session.CoachID),
		})
	}
	return res, nil
}

type ShareResourceInput struct {
	CoachID string `json:"coachId"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

type ShareResourceResult struct {
	Resource models.Resource `json:"resource"`
	Notified int             `json:"notified"`
}

// ShareResource stores a resource and announces it to each of the coach's
// active clients, one event per client.
func (s *Service) ShareResource(ctx context.Context, in ShareResourceInput) (*ShareResourceResult, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperrors.NewRequestInvalidError("title is required")
	}
	name, err := s.lookupCoach(ctx, in.CoachID)
	if err != nil {
		return nil, err
	}

	r := models.Resource{
		ID:        s.newID(),
		CoachID:   in.CoachID,
		Title:     in.Title,
		URL:       in.URL,
		CreatedAt: s.clock(),
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (id, coach_id, title, url, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.CoachID, r.Title, r.URL, r.CreatedAt,
	); err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	clients, err := s.activeClients(ctx, in.CoachID)
	if err != nil {
		// The resource exists; only the announcement is lost.
		s.logger.WithError(err).Error("could not list clients for resource", map[string]interface{}{
			"coachId":    in.CoachID,
			"resourceId": r.ID,
		})
		return &ShareResourceResult{Resource: r}, nil
	}

	for _, clientID := range clients {
		s.emit(ctx, eventbus.ResourceShared{
			ClientID:   clientID,
			ResourceID: r.ID,
			Title:      r.Title,
			URL:        r.URL,
			CoachName:  name,
		})
	}
	return &ShareResourceResult{Resource: r, Notified: len(clients)}, nil
}

// emit never lets a notification-side fault reach the caller.
func (s *Service) emit(ctx context.Context, p eventbus.Payload) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event emission panicked", map[string]interface{}{
				"kind":     string(p.Kind()),
				"clientId": p.ClientRef(),
				"panic":    fmt.Sprint(r),
			})
		}
	}()
	s.bus.Emit(ctx, p)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Service) client(ctx context.Context, q queryRower, clientID string) (*models.Client, error) {
	c := models.Client{ID: clientID}
	var userID sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT coach_id, user_id, display_name, status FROM clients WHERE id = $1`, clientID,
	).Scan(&c.CoachID, &userID, &c.DisplayName, &c.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewResourceNotFoundError("Client", clientID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("coaching.client", err)
	}
	c.UserID = userID.String
	return &c, nil
}

func (s *Service) lookupCoach(ctx context.Context, coachID string) (string, error) {
	var name sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT display_name FROM coaches WHERE id = $1`, coachID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NewResourceNotFoundError("Coach", coachID)
	}
	if err != nil {
		return "", apperrors.NewQueryExecutionFailedError("coaching.coach", err)
	}
	return name.String, nil
}

// coachName is lookupCoach for event payloads, where a failure only costs the
// name.
func (s *Service) coachName(ctx context.Context, coachID string) string {
	name, err := s.lookupCoach(ctx, coachID)
	if err != nil {
		s.logger.Warn("coach name unavailable", map[string]interface{}{
			"coachId": coachID,
			"error":   err.Error(),
		})
	}
	return name
}

func (s *Service) activeClients(ctx context.Context, coachID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM clients WHERE coach_id = $1 AND status = $2 ORDER BY id`,
		coachID, models.ClientStatusActive,
	)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("coaching.active_clients", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("coaching.active_clients", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
