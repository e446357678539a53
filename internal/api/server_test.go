package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coaching-notifier/internal/coaching"
	apperrors "coaching-notifier/internal/common/errors"
	"coaching-notifier/internal/common/logger"
	"coaching-notifier/internal/eventbus"
	"coaching-notifier/internal/inbox"
	"coaching-notifier/internal/models"
	"coaching-notifier/internal/preferences"
	"coaching-notifier/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockInbox struct {
	ListFunc        func(ctx context.Context, userID string, f inbox.Filter) (inbox.Page, error)
	MarkReadFunc    func(ctx context.Context, userID, id string) error
	MarkAllReadFunc func(ctx context.Context, userID string) (int64, error)
	UnreadCountFunc func(ctx context.Context, userID string) (int, error)
}

func (m *MockInbox) List(ctx context.Context, userID string, f inbox.Filter) (inbox.Page, error) {
	return m.ListFunc(ctx, userID, f)
}

func (m *MockInbox) MarkRead(ctx context.Context, userID, id string) error {
	return m.MarkReadFunc(ctx, userID, id)
}

func (m *MockInbox) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return m.MarkAllReadFunc(ctx, userID)
}

func (m *MockInbox) UnreadCount(ctx context.Context, userID string) (int, error) {
	if m.UnreadCountFunc == nil {
		return 0, nil
	}
	return m.UnreadCountFunc(ctx, userID)
}

type MockPreferences struct {
	GetFunc    func(ctx context.Context, userID string) (*preferences.Preferences, error)
	UpdateFunc func(ctx context.Context, userID string, toggles preferences.Toggles) (*preferences.Preferences, error)
}

func (m *MockPreferences) Get(ctx context.Context, userID string) (*preferences.Preferences, error) {
	return m.GetFunc(ctx, userID)
}

func (m *MockPreferences) Update(ctx context.Context, userID string, toggles preferences.Toggles) (*preferences.Preferences, error) {
	return m.UpdateFunc(ctx, userID, toggles)
}

type MockCoaching struct {
	SetScheduleFunc   func(ctx context.Context, clientID string, rec schedule.Recurrence) (*models.Schedule, error)
	LogSessionFunc    func(ctx context.Context, in coaching.LogSessionInput) (*coaching.LogSessionResult, error)
	ShareResourceFunc func(ctx context.Context, in coaching.ShareResourceInput) (*coaching.ShareResourceResult, error)
}

func (m *MockCoaching) SetSchedule(ctx context.Context, clientID string, rec schedule.Recurrence) (*models.Schedule, error) {
	return m.SetScheduleFunc(ctx, clientID, rec)
}

func (m *MockCoaching) LogSession(ctx context.Context, in coaching.LogSessionInput) (*coaching.LogSessionResult, error) {
	return m.LogSessionFunc(ctx, in)
}

func (m *MockCoaching) ShareResource(ctx context.Context, in coaching.ShareResourceInput) (*coaching.ShareResourceResult, error) {
	return m.ShareResourceFunc(ctx, in)
}

// ==========================
// Test Helper Functions
// ==========================

func newTestServer(t *testing.T, deps Dependencies) *Server {
	if deps.Inbox == nil {
		deps.Inbox = &MockInbox{}
	}
	if deps.Preferences == nil {
		deps.Preferences = &MockPreferences{}
	}
	if deps.Coaching == nil {
		deps.Coaching = &MockCoaching{}
	}
	deps.Logger = logger.NewTestLogger(t)
	return NewServer(deps)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// ==========================
// Probes
// ==========================

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, Dependencies{})
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/ready", "").Code)

	down := newTestServer(t, Dependencies{Ready: func(ctx context.Context) error { return errors.New("postgres down") }})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, down, http.MethodGet, "/ready", "").Code)
}

func TestUnknownRoute(t *testing.T) {
	rec := do(t, newTestServer(t, Dependencies{}), http.MethodGet, "/api/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.ErrCodeRequestInvalid, decodeError(t, rec).Code)
}

// ==========================
// Inbox
// ==========================

func TestListNotifications_PassesFilterAndCount(t *testing.T) {
	var got inbox.Filter
	ib := &MockInbox{
		ListFunc: func(ctx context.Context, userID string, f inbox.Filter) (inbox.Page, error) {
			assert.Equal(t, "u1", userID)
			got = f
			return inbox.Page{
				Notifications: []models.Notification{{ID: "n1", UserID: "u1", Title: "Reminder"}},
				NextPageToken: "tok-2",
			}, nil
		},
		UnreadCountFunc: func(ctx context.Context, userID string) (int, error) { return 7, nil },
	}
	s := newTestServer(t, Dependencies{Inbox: ib})

	rec := do(t, s, http.MethodGet, "/api/users/u1/notifications?status=unread&pageSize=10&pageToken=tok-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, inbox.Filter{Status: inbox.StatusUnread, PageSize: 10, PageToken: "tok-1"}, got)

	var body struct {
		Notifications []models.Notification `json:"notifications"`
		NextPageToken string                `json:"nextPageToken"`
		UnreadCount   int                   `json:"unreadCount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Notifications, 1)
	assert.Equal(t, "tok-2", body.NextPageToken)
	assert.Equal(t, 7, body.UnreadCount)
}

func TestListNotifications_BadPageSize(t *testing.T) {
	s := newTestServer(t, Dependencies{})
	rec := do(t, s, http.MethodGet, "/api/users/u1/notifications?pageSize=lots", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.ErrCodeRequestInvalid, decodeError(t, rec).Code)
}

func TestMarkRead(t *testing.T) {
	ib := &MockInbox{MarkReadFunc: func(ctx context.Context, userID, id string) error {
		if id == "missing" {
			return apperrors.NewResourceNotFoundError("Notification", id)
		}
		return nil
	}}
	s := newTestServer(t, Dependencies{Inbox: ib})

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/api/users/u1/notifications/n1/read", "").Code)

	rec := do(t, s, http.MethodPost, "/api/users/u1/notifications/missing/read", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.ErrCodeResourceNotFound, decodeError(t, rec).Code)
}

func TestMarkAllRead(t *testing.T) {
	ib := &MockInbox{MarkAllReadFunc: func(ctx context.Context, userID string) (int64, error) { return 3, nil }}
	rec := do(t, newTestServer(t, Dependencies{Inbox: ib}), http.MethodPost, "/api/users/u1/notifications/read-all", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":3}`, rec.Body.String())
}

func TestMissingUserIsBadRequest(t *testing.T) {
	ib := &MockInbox{MarkAllReadFunc: func(ctx context.Context, userID string) (int64, error) {
		return 0, inbox.ErrUserIDRequired
	}}
	rec := do(t, newTestServer(t, Dependencies{Inbox: ib}), http.MethodPost, "/api/users/%20/notifications/read-all", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ==========================
// Preferences
// ==========================

func TestUpdatePreferences(t *testing.T) {
	var got preferences.Toggles
	prefs := &MockPreferences{UpdateFunc: func(ctx context.Context, userID string, toggles preferences.Toggles) (*preferences.Preferences, error) {
		got = toggles
		return &preferences.Preferences{UserID: userID, Toggles: toggles}, nil
	}}
	s := newTestServer(t, Dependencies{Preferences: prefs})

	rec := do(t, s, http.MethodPut, "/api/users/u1/preferences", `{"toggles":{"email":{"session_reminder":false}}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, preferences.Toggles{
		models.ChannelEmail: {eventbus.KindSessionReminder: false},
	}, got)
}

func TestUpdatePreferences_RejectsUnknownChannel(t *testing.T) {
	prefs := &MockPreferences{UpdateFunc: func(ctx context.Context, userID string, toggles preferences.Toggles) (*preferences.Preferences, error) {
		t.Fatal("update should not be called")
		return nil, nil
	}}
	s := newTestServer(t, Dependencies{Preferences: prefs})

	rec := do(t, s, http.MethodPut, "/api/users/u1/preferences", `{"toggles":{"pigeon":{"session_reminder":true}}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.ErrCodeRequestInvalid, decodeError(t, rec).Code)

	rec = do(t, s, http.MethodPut, "/api/users/u1/preferences", `{"toggles":{"email":{"session_reminder":"no"}}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPreferences_InternalErrorHidesDetails(t *testing.T) {
	prefs := &MockPreferences{GetFunc: func(ctx context.Context, userID string) (*preferences.Preferences, error) {
		return nil, errors.New("dial tcp 10.0.0.5:5432: connection refused")
	}}
	rec := do(t, newTestServer(t, Dependencies{Preferences: prefs}), http.MethodGet, "/api/users/u1/preferences", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, apperrors.ErrCodeInternal, body.Code)
	assert.Empty(t, body.Details)
}

// ==========================
// Coaching
// ==========================

func TestSetSchedule(t *testing.T) {
	next := time.Date(2026, 3, 18, 14, 0, 0, 0, time.UTC)
	co := &MockCoaching{SetScheduleFunc: func(ctx context.Context, clientID string, rec schedule.Recurrence) (*models.Schedule, error) {
		assert.Equal(t, "c1", clientID)
		assert.Equal(t, schedule.Recurrence{Weekday: 3, Time: "14:00", Timezone: "UTC"}, rec)
		return &models.Schedule{ClientID: clientID, Weekday: rec.Weekday, LocalTime: rec.Time, Timezone: rec.Timezone, NextOccurrence: next}, nil
	}}
	s := newTestServer(t, Dependencies{Coaching: co})

	rec := do(t, s, http.MethodPut, "/api/clients/c1/schedule", `{"weekday":3,"time":"14:00","timezone":"UTC"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out models.Schedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, next.Equal(out.NextOccurrence))
}

func TestSetSchedule_SchemaAndDomainErrors(t *testing.T) {
	co := &MockCoaching{SetScheduleFunc: func(ctx context.Context, clientID string, rec schedule.Recurrence) (*models.Schedule, error) {
		return nil, apperrors.NewScheduleInvalidError(errors.New("unknown time zone Mars/Base"))
	}}
	s := newTestServer(t, Dependencies{Coaching: co})

	rec := do(t, s, http.MethodPut, "/api/clients/c1/schedule", `{"weekday":9,"time":"25:00","timezone":"UTC"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.ErrCodeRequestInvalid, decodeError(t, rec).Code)

	rec = do(t, s, http.MethodPut, "/api/clients/c1/schedule", `{"weekday":1,"time":"09:00","timezone":"Mars/Base"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.ErrCodeScheduleInvalid, decodeError(t, rec).Code)
}

func TestLogSession(t *testing.T) {
	co := &MockCoaching{LogSessionFunc: func(ctx context.Context, in coaching.LogSessionInput) (*coaching.LogSessionResult, error) {
		assert.Equal(t, "c1", in.ClientID)
		assert.Equal(t, "Worked on goals", in.Summary)
		assert.True(t, in.ShareSummary)
		assert.True(t, time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC).Equal(in.HeldAt))
		return &coaching.LogSessionResult{Session: models.Session{ID: "s1", ClientID: in.ClientID}}, nil
	}}
	s := newTestServer(t, Dependencies{Coaching: co})

	rec := do(t, s, http.MethodPost, "/api/clients/c1/sessions",
		`{"heldAt":"2026-03-09T15:00:00Z","summary":"Worked on goals","shareSummary":true}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestLogSession_EmptyBodyAllowed(t *testing.T) {
	called := false
	co := &MockCoaching{LogSessionFunc: func(ctx context.Context, in coaching.LogSessionInput) (*coaching.LogSessionResult, error) {
		called = true
		assert.True(t, in.HeldAt.IsZero())
		return &coaching.LogSessionResult{}, nil
	}}
	rec := do(t, newTestServer(t, Dependencies{Coaching: co}), http.MethodPost, "/api/clients/c1/sessions", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, called)
}

func TestShareResource(t *testing.T) {
	co := &MockCoaching{ShareResourceFunc: func(ctx context.Context, in coaching.ShareResourceInput) (*coaching.ShareResourceResult, error) {
		assert.Equal(t, coaching.ShareResourceInput{CoachID: "coach-1", Title: "Breathing", URL: "https://example.com/b"}, in)
		return &coaching.ShareResourceResult{Resource: models.Resource{ID: "r1"}, Notified: 3}, nil
	}}
	s := newTestServer(t, Dependencies{Coaching: co})

	rec := do(t, s, http.MethodPost, "/api/coaches/coach-1/resources", `{"title":"Breathing","url":"https://example.com/b"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var out coaching.ShareResourceResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 3, out.Notified)

	rec = do(t, s, http.MethodPost, "/api/coaches/coach-1/resources", `{"url":"https://example.com/b"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/coaches/coach-1/resources", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
