package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/careconnect/careconnect/internal/domain/access"
)

// AppointmentFilter narrows a list. Scope is always applied; an empty
// Statuses or Date means no restriction on that column.
type AppointmentFilter struct {
	Scope    access.Scope
	Statuses []Status
	Date     string
	Limit    int
	Offset   int
}

type AppointmentRepository interface {
	// Create stores a new pending appointment. ErrSlotTaken when the nurse
	// already holds the slot, ErrDuplicateBooking when the requester reused
	// an idempotency key.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetByIdempotencyKey(ctx context.Context, requesterID uuid.UUID, key string) (*Appointment, error)
	// List returns matches ordered by date then time, most recent first.
	List(ctx context.Context, f AppointmentFilter) ([]*Appointment, int, error)
	// UpdateStatus stores next only if the row is still at expectedVersion.
	UpdateStatus(ctx context.Context, next *Appointment, expectedVersion int) error
	CountByStatus(ctx context.Context, scope access.Scope) (map[Status]int, error)
}
