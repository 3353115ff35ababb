package identity

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. Role is fixed at sign-up.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	Role         string    `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type EventKind string

const (
	EventRegistered EventKind = "registered"
	EventLogin      EventKind = "login"
	EventLogout     EventKind = "logout"
)

// Event is published to subscribers whenever the authentication state of an
// account changes.
type Event struct {
	Kind      EventKind
	UserID    uuid.UUID
	Email     string
	Name      string
	Role      string
	SessionID string
	At        time.Time
}
