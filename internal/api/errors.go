package api

import (
	"errors"
	"net/http"

	apperrors "coaching-notifier/internal/common/errors"
	"coaching-notifier/internal/inbox"

	"github.com/labstack/echo/v4"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Details string              `json:"details,omitempty"`
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := s.classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed", map[string]interface{}{
			"method": c.Request().Method,
			"path":   c.Path(),
			"code":   string(body.Code),
		})
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		s.logger.Warn("could not write error response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) classify(err error) (int, errorBody) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		body := errorBody{Code: apperrors.ErrCodeRequestInvalid, Message: http.StatusText(httpErr.Code)}
		if httpErr.Code >= http.StatusInternalServerError {
			body.Code = apperrors.ErrCodeInternal
		}
		if msg, ok := httpErr.Message.(string); ok {
			body.Details = msg
		}
		return httpErr.Code, body
	}

	if errors.Is(err, inbox.ErrUserIDRequired) {
		return http.StatusBadRequest, errorBody{
			Code:    apperrors.ErrCodeRequestInvalid,
			Message: "Invalid request",
			Details: err.Error(),
		}
	}

	std := apperrors.Normalize(err)
	body := errorBody{Code: std.Code, Message: std.Message, Details: std.Details}
	status := apperrors.HTTPStatus(std.Code)
	if status >= http.StatusInternalServerError {
		// Internal details stay in the log.
		body.Details = ""
	}
	return status, body
}
