package eventbus

import "time"

// Kind tags the category of a published domain occurrence.
type Kind string

const (
	KindSessionReminder      Kind = "session_reminder"
	KindSessionSummaryPosted Kind = "session_summary_posted"
	KindResourceShared       Kind = "resource_shared"
)

// Kinds lists every registered kind in a stable order.
var Kinds = []Kind{KindSessionReminder, KindSessionSummaryPosted, KindResourceShared}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Payload is implemented by exactly one value type per Kind. The unexported
// marker keeps the set closed so every kind has a known shape.
type Payload interface {
	Kind() Kind
	ClientRef() string
	payload()
}

// SessionReminder is published by the reminder scan for a session due soon.
type SessionReminder struct {
	ClientID    string
	SessionDate time.Time
	Timezone    string
	CoachName   string
}

func (SessionReminder) Kind() Kind          { return KindSessionReminder }
func (p SessionReminder) ClientRef() string { return p.ClientID }
func (SessionReminder) payload()            {}

// SessionSummaryPosted is published after a logged session shares its summary.
type SessionSummaryPosted struct {
	ClientID  string
	SessionID string
	CoachName string
}

func (SessionSummaryPosted) Kind() Kind          { return KindSessionSummaryPosted }
func (p SessionSummaryPosted) ClientRef() string { return p.ClientID }
func (SessionSummaryPosted) payload()            {}

// ResourceShared is published once per client when a coach uploads a resource.
type ResourceShared struct {
	ClientID   string
	ResourceID string
	Title      string
	URL        string
	CoachName  string
}

func (ResourceShared) Kind() Kind          { return KindResourceShared }
func (p ResourceShared) ClientRef() string { return p.ClientID }
func (ResourceShared) payload()            {}
