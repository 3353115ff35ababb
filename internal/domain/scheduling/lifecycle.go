package scheduling

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrVersionConflict   = errors.New("appointment was modified by another request")
	ErrSlotTaken         = errors.New("nurse is already booked for this slot")
	ErrDuplicateBooking  = errors.New("idempotency key already used")
	ErrForbidden         = errors.New("not permitted for this role")
)

type Decision string

const (
	DecisionApprove  Decision = "approve"
	DecisionReject   Decision = "reject"
	DecisionComplete Decision = "complete"
)

var transitions = map[Status]map[Decision]Status{
	StatusPending: {
		DecisionApprove: StatusApproved,
		DecisionReject:  StatusRejected,
	},
	StatusApproved: {
		DecisionComplete: StatusCompleted,
	},
}

func ParseDecision(raw string) (Decision, error) {
	switch d := Decision(raw); d {
	case DecisionApprove, DecisionReject, DecisionComplete:
		return d, nil
	}
	return "", fmt.Errorf("unknown decision %q", raw)
}

// NextStatus returns the status reached by applying d in from.
func NextStatus(from Status, d Decision) (Status, error) {
	to, ok := transitions[from][d]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s an appointment that is %s", ErrInvalidTransition, d, from)
	}
	return to, nil
}

// Command asks for a decision on a single appointment. ExpectedVersion, when
// set, must match the stored version.
type Command struct {
	AppointmentID   uuid.UUID
	Decision        Decision
	ExpectedVersion *int
}

// ApplyDecision computes the record that results from cmd. current is left
// untouched; the returned record carries the next version. A decision the
// current status cannot take is ErrInvalidTransition whatever version the
// caller last saw.
func ApplyDecision(current *Appointment, cmd Command, now time.Time) (*Appointment, error) {
	if current == nil || current.ID != cmd.AppointmentID {
		return nil, ErrNotFound
	}
	to, err := NextStatus(current.Status, cmd.Decision)
	if err != nil {
		return nil, err
	}
	if cmd.ExpectedVersion != nil && *cmd.ExpectedVersion != current.VersionID {
		return nil, ErrVersionConflict
	}

	next := *current
	next.Status = to
	next.VersionID = current.VersionID + 1
	next.UpdatedAt = now
	return &next, nil
}
