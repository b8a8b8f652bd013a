package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventLogin   = "login"
	EventRenewed = "renewed"
	EventLogout  = "logout"
	EventExpired = "expired"
)

// SessionEvent is an audit record of a session lifecycle transition. Events
// are written to the store's outbox table and published asynchronously.
type SessionEvent struct {
	ID         int64
	Type       string
	SessionID  uuid.UUID
	SubjectID  int64
	OccurredAt time.Time
}
