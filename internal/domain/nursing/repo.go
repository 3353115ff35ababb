package nursing

import (
	"context"

	"github.com/google/uuid"
)

type NurseRepository interface {
	// Create inserts n. A zero ID is replaced with a new one.
	Create(ctx context.Context, n *Nurse) error
	GetByID(ctx context.Context, id uuid.UUID) (*Nurse, error)
	// List returns nurses ordered by name, optionally only available ones.
	List(ctx context.Context, availableOnly bool) ([]*Nurse, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*Nurse, error)
}
