package models

import "time"

// Session is one logged coaching session.
type Session struct {
	ID            string    `json:"id" db:"id"`
	ClientID      string    `json:"clientId" db:"client_id"`
	CoachID       string    `json:"coachId" db:"coach_id"`
	HeldAt        time.Time `json:"heldAt" db:"held_at"`
	Summary       string    `json:"summary,omitempty" db:"summary"`
	SummaryShared bool      `json:"summaryShared" db:"summary_shared"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// Resource is a file or link a coach shares with all active clients.
type Resource struct {
	ID        string    `json:"id" db:"id"`
	CoachID   string    `json:"coachId" db:"coach_id"`
	Title     string    `json:"title" db:"title"`
	URL       string    `json:"url,omitempty" db:"url"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
