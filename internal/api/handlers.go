package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"coaching-notifier/internal/coaching"
	apperrors "coaching-notifier/internal/common/errors"
	"coaching-notifier/internal/common/validation"
	"coaching-notifier/internal/inbox"
	"coaching-notifier/internal/preferences"
	"coaching-notifier/internal/schedule"

	"github.com/labstack/echo/v4"
)

const maxBodyBytes = 1 << 20

type notificationList struct {
	inbox.Page
	UnreadCount int `json:"unreadCount"`
}

func (s *Server) listNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("userID")

	f := inbox.Filter{
		Status:    inbox.Status(c.QueryParam("status")),
		PageToken: c.QueryParam("pageToken"),
	}
	if raw := c.QueryParam("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return apperrors.NewRequestInvalidError("pageSize must be an integer")
		}
		f.PageSize = n
	}

	page, err := s.deps.Inbox.List(ctx, userID, f)
	if err != nil {
		return err
	}
	unread, err := s.deps.Inbox.UnreadCount(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, notificationList{Page: page, UnreadCount: unread})
}

func (s *Server) markRead(c echo.Context) error {
	if err := s.deps.Inbox.MarkRead(c.Request().Context(), c.Param("userID"), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) markAllRead(c echo.Context) error {
	n, err := s.deps.Inbox.MarkAllRead(c.Request().Context(), c.Param("userID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"updated": n})
}

func (s *Server) getPreferences(c echo.Context) error {
	p, err := s.deps.Preferences.Get(c.Request().Context(), c.Param("userID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) updatePreferences(c echo.Context) error {
	var body struct {
		Toggles preferences.Toggles `json:"toggles"`
	}
	if err := bind(c, preferencesSchema, &body); err != nil {
		return err
	}
	p, err := s.deps.Preferences.Update(c.Request().Context(), c.Param("userID"), body.Toggles)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) setSchedule(c echo.Context) error {
	var rec schedule.Recurrence
	if err := bind(c, scheduleSchema, &rec); err != nil {
		return err
	}
	out, err := s.deps.Coaching.SetSchedule(c.Request().Context(), c.Param("clientID"), rec)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) logSession(c echo.Context) error {
	var in coaching.LogSessionInput
	if err := bind(c, sessionSchema, &in); err != nil {
		return err
	}
	in.ClientID = c.Param("clientID")
	out, err := s.deps.Coaching.LogSession(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (s *Server) shareResource(c echo.Context) error {
	var in coaching.ShareResourceInput
	if err := bind(c, resourceSchema, &in); err != nil {
		return err
	}
	in.CoachID = c.Param("coachID")
	out, err := s.deps.Coaching.ShareResource(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

// bind validates the raw body against schema before decoding it into dst,
// so type mismatches surface as schema violations rather than decode errors.
func bind(c echo.Context, schema *validation.Schema, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return apperrors.NewRequestInvalidError("could not read request body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	if err := schema.Validate(body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.NewRequestInvalidError(err.Error())
	}
	return nil
}
