package models

import "time"

// Schedule is the weekly recurring slot of a coach/client relationship.
type Schedule struct {
	ClientID       string    `json:"clientId" db:"client_id"`
	Weekday        int       `json:"weekday" db:"weekday"`
	LocalTime      string    `json:"time" db:"local_time"`
	Timezone       string    `json:"timezone" db:"timezone"`
	NextOccurrence time.Time `json:"nextOccurrence" db:"next_occurrence"`
	SessionCount   int       `json:"sessionCount" db:"session_count"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// DueSchedule is a schedule row whose client can be reminded.
type DueSchedule struct {
	Schedule
	UserID  string `json:"userId" db:"user_id"`
	CoachID string `json:"coachId" db:"coach_id"`
}
