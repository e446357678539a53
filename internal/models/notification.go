// internal/models/notification.go
package models

import "time"

// Channel is a delivery channel a user can opt out of per event kind.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
	ChannelSMS   Channel = "sms"
)

// Channels lists every delivery channel.
var Channels = []Channel{ChannelEmail, ChannelInApp, ChannelSMS}

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelInApp, ChannelSMS:
		return true
	}
	return false
}

// Notification is a persisted in-app notification row. Only Read changes after
// creation.
type Notification struct {
	ID        string                 `json:"id" db:"id"`
	UserID    string                 `json:"userId" db:"user_id"`
	Kind      string                 `json:"kind" db:"kind"`
	Title     string                 `json:"title" db:"title"`
	Message   string                 `json:"message" db:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	Read      bool                   `json:"read" db:"read"`
	CreatedAt time.Time              `json:"createdAt" db:"created_at"`
}

// Delivery statuses recorded per handler outcome.
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
	StatusSkipped  = "skipped"
)
