// Package dashboard builds the per-role landing projection. Each role gets a
// different slice of appointment and nurse data; a session with no
// recognised role gets an error view and nothing else.
package dashboard

import (
	"context"

	"github.com/careconnect/careconnect/internal/domain/access"
	"github.com/careconnect/careconnect/internal/domain/nursing"
	"github.com/careconnect/careconnect/internal/domain/scheduling"
)

const invalidRoleError = "invalid user role"

// Stats are the summary counters shown at the top of a dashboard. Fields a
// role does not see are omitted.
type Stats struct {
	Total           int  `json:"total"`
	Pending         int  `json:"pending"`
	Upcoming        *int `json:"upcoming,omitempty"`
	Today           *int `json:"today,omitempty"`
	Completed       int  `json:"completed"`
	AvailableNurses *int `json:"available_nurses,omitempty"`
}

type View struct {
	Role             string                    `json:"role"`
	Error            string                    `json:"error,omitempty"`
	Stats            *Stats                    `json:"stats,omitempty"`
	Upcoming         []*scheduling.Appointment `json:"upcoming,omitempty"`
	Today            []*scheduling.Appointment `json:"today,omitempty"`
	PendingApprovals []*scheduling.Appointment `json:"pending_approvals,omitempty"`
	Appointments     []*scheduling.Appointment `json:"appointments,omitempty"`
	Nurses           []*nursing.Nurse          `json:"nurses,omitempty"`
}

// Projection builds one role's view.
type Projection interface {
	Build(ctx context.Context) (*View, error)
}

// AppointmentSource is the scoped appointment reader the projections use.
type AppointmentSource interface {
	List(ctx context.Context, session *access.Session, opts scheduling.ListOptions) ([]*scheduling.Appointment, int, error)
	Counts(ctx context.Context, session *access.Session) (map[scheduling.Status]int, error)
	Today() string
}

type NurseSource interface {
	List(ctx context.Context, availableOnly bool) ([]*nursing.Nurse, error)
}

func intPtr(v int) *int { return &v }

func sum(counts map[scheduling.Status]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
