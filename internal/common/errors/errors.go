// Package errors provides the standardized error type shared by the pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeScheduleInvalid   ErrorCode = "SCHEDULE_INVALID"
	ErrCodePreferenceInvalid ErrorCode = "PREFERENCE_INVALID"
	ErrCodeRequestInvalid    ErrorCode = "REQUEST_INVALID"

	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeReminderScanFailed     ErrorCode = "REMINDER_SCAN_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeTemplateNotFound       ErrorCode = "TEMPLATE_NOT_FOUND"

	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// Is matches another StandardError by code so callers can compare against the
// package-level constructors' results.
func (e *StandardError) Is(target error) bool {
	var other *StandardError
	if stderrors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// WithMetadata returns e with one extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewScheduleInvalidError wraps a calculator input failure.
func NewScheduleInvalidError(cause error) *StandardError {
	return newError(ErrCodeScheduleInvalid, "Invalid recurring schedule", cause.Error(), false, cause)
}

// NewPreferenceInvalidError reports an unknown channel or kind in a preference update.
func NewPreferenceInvalidError(details string) *StandardError {
	return newError(ErrCodePreferenceInvalid, "Invalid notification preference", details, false, nil)
}

// NewRequestInvalidError reports a request body that failed schema validation.
func NewRequestInvalidError(details string) *StandardError {
	return newError(ErrCodeRequestInvalid, "Request validation failed", details, false, nil)
}

func NewResourceNotFoundError(resource, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("%s not found", resource), details, false, nil)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true, err)
}

// NewDatabaseInsertFailedError creates a retryable database write error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database write operation failed", err.Error(), true, err)
}

// NewReminderScanFailedError marks a failed bulk query; the scheduler retries on the next tick.
func NewReminderScanFailedError(err error) *StandardError {
	return newError(ErrCodeReminderScanFailed, "Reminder scan bulk query failed", err.Error(), true, err)
}

// NewNotificationSendFailedError creates a notification delivery error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true, err)
}

func NewTemplateNotFoundError(kind string) *StandardError {
	return newError(ErrCodeTemplateNotFound, "Template not found", fmt.Sprintf("kind: %s", kind), false, nil)
}

func NewConfigInvalidError(details string) *StandardError {
	return newError(ErrCodeConfigInvalid, "Invalid configuration", details, false, nil)
}

// ==========================
// 3. Classification
// ==========================

// CodeOf returns the code of the first StandardError in err's chain, or
// ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// IsRetryable reports whether err carries a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// HTTPStatus maps an error code to the status the API layer returns.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeScheduleInvalid, ErrCodePreferenceInvalid, ErrCodeRequestInvalid:
		return http.StatusBadRequest
	case ErrCodeResourceNotFound:
		return http.StatusNotFound
	case ErrCodeDatabaseConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Normalize ensures callers always deal with a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}
