package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// Terminal statuses accept no further decisions.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// Holds reports whether an appointment in this status occupies its slot.
func (s Status) Holds() bool {
	return s == StatusPending || s == StatusApproved
}

// Appointment is a booked visit between a requester and a nurse. Date is
// YYYY-MM-DD and Time is HH:MM on the half hour.
type Appointment struct {
	ID             uuid.UUID `db:"id" json:"id"`
	RequesterID    uuid.UUID `db:"requester_id" json:"requester_id"`
	RequesterName  string    `db:"requester_name" json:"requester_name"`
	NurseID        uuid.UUID `db:"nurse_id" json:"nurse_id"`
	NurseName      string    `db:"nurse_name" json:"nurse_name"`
	Date           string    `db:"appointment_date" json:"date"`
	Time           string    `db:"appointment_time" json:"time"`
	Notes          *string   `db:"notes" json:"notes,omitempty"`
	Status         Status    `db:"status" json:"status"`
	VersionID      int       `db:"version_id" json:"version_id"`
	IdempotencyKey *string   `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// BookingRequest is the payload of the booking form.
type BookingRequest struct {
	NurseID string  `json:"nurse_id"`
	Date    string  `json:"date"`
	Time    string  `json:"time"`
	Notes   *string `json:"notes,omitempty"`
}
