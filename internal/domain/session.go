package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is the durable server-side record behind a credential. The signed
// token a client holds only references it: the record is the authority for
// validity and revocation.
type Session struct {
	ID        uuid.UUID
	SubjectID int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Lifetime is the Max-Age the credential cookie is issued with.
func (s Session) Lifetime() time.Duration {
	return s.ExpiresAt.Sub(s.IssuedAt)
}

// Credential is the transport-ready result of issuing or renewing a session.
type Credential struct {
	Cookie    string
	SessionID uuid.UUID
}

// AuthResult is what request middleware gets back from Authenticate. When
// Authenticated is false, User and Session are nil and the caller learns
// nothing about which check failed.
type AuthResult struct {
	Authenticated bool
	User          *User
	Session       *Session
}
