package dashboard

import (
	"context"
	"fmt"

	"github.com/careconnect/careconnect/internal/domain/access"
	"github.com/careconnect/careconnect/internal/domain/scheduling"
	"github.com/careconnect/careconnect/pkg/pagination"
)

var upcomingStatuses = []scheduling.Status{scheduling.StatusApproved, scheduling.StatusPending}

type Selector struct {
	appointments AppointmentSource
	nurses       NurseSource
	listLimit    int
}

func NewSelector(appts AppointmentSource, nurses NurseSource) *Selector {
	return &Selector{appointments: appts, nurses: nurses, listLimit: pagination.MaxLimit}
}

// Select picks the projection for the session's role variant. Anything that
// is not User, Nurse or Admin gets the invalid-role view.
func (s *Selector) Select(session *access.Session) Projection {
	if session == nil {
		return invalidRoleView{}
	}
	switch session.Role.(type) {
	case access.User:
		return selfView{sel: s, session: session}
	case access.Nurse:
		return assignmentView{sel: s, session: session}
	case access.Admin:
		return globalView{sel: s, session: session}
	default:
		return invalidRoleView{}
	}
}

// list pages through the source until it has every matching appointment.
// Projections show the whole set, not the first page.
func (s *Selector) list(ctx context.Context, session *access.Session, opts scheduling.ListOptions) ([]*scheduling.Appointment, error) {
	opts.Limit = s.listLimit
	opts.Offset = 0
	var all []*scheduling.Appointment
	for {
		page, total, err := s.appointments.List(ctx, session, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 || len(all) >= total {
			return all, nil
		}
		opts.Offset += len(page)
	}
}

// selfView is a patient's own appointments.
type selfView struct {
	sel     *Selector
	session *access.Session
}

func (v selfView) Build(ctx context.Context) (*View, error) {
	counts, err := v.sel.appointments.Counts(ctx, v.session)
	if err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}
	upcoming, err := v.sel.list(ctx, v.session, scheduling.ListOptions{Statuses: upcomingStatuses})
	if err != nil {
		return nil, fmt.Errorf("list upcoming: %w", err)
	}
	return &View{
		Role: access.RoleUser,
		Stats: &Stats{
			Total:     sum(counts),
			Pending:   counts[scheduling.StatusPending],
			Upcoming:  intPtr(counts[scheduling.StatusApproved] + counts[scheduling.StatusPending]),
			Completed: counts[scheduling.StatusCompleted],
		},
		Upcoming: upcoming,
	}, nil
}

// assignmentView is a nurse's assigned schedule.
type assignmentView struct {
	sel     *Selector
	session *access.Session
}

func (v assignmentView) Build(ctx context.Context) (*View, error) {
	counts, err := v.sel.appointments.Counts(ctx, v.session)
	if err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}
	today, err := v.sel.list(ctx, v.session, scheduling.ListOptions{
		Statuses: upcomingStatuses,
		Date:     v.sel.appointments.Today(),
	})
	if err != nil {
		return nil, fmt.Errorf("list today: %w", err)
	}
	assigned, err := v.sel.list(ctx, v.session, scheduling.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list assigned: %w", err)
	}
	return &View{
		Role: access.RoleNurse,
		Stats: &Stats{
			Total:     sum(counts),
			Pending:   counts[scheduling.StatusPending],
			Today:     intPtr(len(today)),
			Completed: counts[scheduling.StatusCompleted],
		},
		Today:        today,
		Appointments: assigned,
	}, nil
}

// globalView is the administrator's overview.
type globalView struct {
	sel     *Selector
	session *access.Session
}

func (v globalView) Build(ctx context.Context) (*View, error) {
	counts, err := v.sel.appointments.Counts(ctx, v.session)
	if err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}
	pending, err := v.sel.list(ctx, v.session, scheduling.ListOptions{Statuses: []scheduling.Status{scheduling.StatusPending}})
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	all, err := v.sel.list(ctx, v.session, scheduling.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	nurses, err := v.sel.nurses.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list nurses: %w", err)
	}
	available := 0
	for _, n := range nurses {
		if n.Available {
			available++
		}
	}
	return &View{
		Role: access.RoleAdmin,
		Stats: &Stats{
			Total:           sum(counts),
			Pending:         counts[scheduling.StatusPending],
			Upcoming:        intPtr(counts[scheduling.StatusApproved] + counts[scheduling.StatusPending]),
			Completed:       counts[scheduling.StatusCompleted],
			AvailableNurses: intPtr(available),
		},
		PendingApprovals: pending,
		Appointments:     all,
		Nurses:           nurses,
	}, nil
}

type invalidRoleView struct{}

func (invalidRoleView) Build(context.Context) (*View, error) {
	return &View{Role: access.RoleUnknown, Error: invalidRoleError}, nil
}
