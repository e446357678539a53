package models

// Recipient is the user account linked to a client, with contact details.
type Recipient struct {
	UserID      string `json:"userId" db:"user_id"`
	ClientID    string `json:"clientId" db:"client_id"`
	Email       string `json:"email" db:"email"`
	Phone       string `json:"phone,omitempty" db:"phone"`
	DisplayName string `json:"displayName" db:"display_name"`
	// Timezone of the client's schedule, empty when none is set.
	Timezone string `json:"timezone,omitempty" db:"timezone"`
}

// Client statuses.
const (
	ClientStatusActive   = "active"
	ClientStatusArchived = "archived"
)

type Client struct {
	ID          string `json:"id" db:"id"`
	CoachID     string `json:"coachId" db:"coach_id"`
	UserID      string `json:"userId,omitempty" db:"user_id"`
	DisplayName string `json:"displayName" db:"display_name"`
	Status      string `json:"status" db:"status"`
}
