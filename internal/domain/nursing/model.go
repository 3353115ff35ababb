package nursing

import (
	"time"

	"github.com/google/uuid"
)

// Nurse is a nursing staff profile. When the nurse has a login, ID equals
// their identity ID so appointment filtering by nurse_id matches the session.
type Nurse struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Email           string    `db:"email" json:"email"`
	Specialization  string    `db:"specialization" json:"specialization"`
	ExperienceYears int       `db:"experience_years" json:"experience_years"`
	Location        *string   `db:"location" json:"location,omitempty"`
	Available       bool      `db:"available" json:"available"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Availability is the label the directory shows next to a nurse.
func (n *Nurse) Availability() string {
	if n.Available {
		return "available"
	}
	return "unavailable"
}
