// Package inbox owns persisted in-app notifications and their read state.
package inbox

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "coaching-notifier/internal/common/errors"
	"coaching-notifier/internal/models"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

var (
	// ErrNotFound is returned by stores when a notification does not exist for
	// the requesting user.
	ErrNotFound = errors.New("notification not found")

	ErrUserIDRequired = errors.New("user id is required")
)

// Status filters a listing by read state.
type Status string

const (
	StatusAll    Status = "all"
	StatusRead   Status = "read"
	StatusUnread Status = "unread"
)

func (s Status) Valid() bool {
	switch s {
	case "", StatusAll, StatusRead, StatusUnread:
		return true
	}
	return false
}

// Filter narrows a listing. The zero value lists everything, newest first.
type Filter struct {
	Status    Status
	PageSize  int
	PageToken string
}

// Page is one page of a user's inbox.
type Page struct {
	Notifications []models.Notification `json:"notifications"`
	NextPageToken string                `json:"nextPageToken,omitempty"`
}

// CreateInput is the content of a new notification.
type CreateInput struct {
	UserID   string
	Kind     string
	Title    string
	Message  string
	Metadata map[string]interface{}
}

// Store persists notifications.
type Store interface {
	Insert(ctx context.Context, n models.Notification) error
	List(ctx context.Context, userID string, status Status, limit int, after *Cursor) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type Service struct {
	store Store
	clock func() time.Time
	newID func() string
}

// NewService builds an inbox service. Nil clock and newID fall back to
// time.Now and random UUIDs.
func NewService(store Store, clock func() time.Time, newID func() string) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}
	return &Service{store: store, clock: clock, newID: newID}
}

// Create stores a new unread notification.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Notification, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	n := models.Notification{
		ID:        s.newID(),
		UserID:    userID,
		Kind:      in.Kind,
		Title:     in.Title,
		Message:   in.Message,
		Metadata:  in.Metadata,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.store.Insert(ctx, n); err != nil {
		return nil, err
	}
	return &n, nil
}

// List returns one page of the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string, f Filter) (Page, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Page{}, ErrUserIDRequired
	}
	if !f.Status.Valid() {
		return Page{}, apperrors.NewRequestInvalidError("status must be one of all, read, unread")
	}

	pageSize := f.PageSize
	switch {
	case pageSize <= 0:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}

	var after *Cursor
	if tok := strings.TrimSpace(f.PageToken); tok != "" {
		c, err := DecodeCursor(tok)
		if err != nil {
			return Page{}, apperrors.NewRequestInvalidError("malformed page token")
		}
		after = &c
	}

	status := f.Status
	if status == "" {
		status = StatusAll
	}

	// One extra row tells us whether another page exists.
	rows, err := s.store.List(ctx, userID, status, pageSize+1, after)
	if err != nil {
		return Page{}, err
	}

	page := Page{Notifications: rows}
	if len(rows) > pageSize {
		page.Notifications = rows[:pageSize]
		last := page.Notifications[pageSize-1]
		page.NextPageToken = Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	if page.Notifications == nil {
		page.Notifications = []models.Notification{}
	}
	return page, nil
}

// MarkRead flags one notification as read. Marking an already read
// notification succeeds.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}
	err := s.store.MarkRead(ctx, userID, id)
	if errors.Is(err, ErrNotFound) {
		return apperrors.NewResourceNotFoundError("Notification", id)
	}
	return err
}

// MarkAllRead flags every unread notification of the user and returns how
// many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrUserIDRequired
	}
	return s.store.MarkAllRead(ctx, userID)
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrUserIDRequired
	}
	return s.store.UnreadCount(ctx, userID)
}
