package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careconnect/careconnect/internal/domain/access"
	"github.com/careconnect/careconnect/internal/domain/nursing"
	"github.com/careconnect/careconnect/internal/platform/telemetry"
)

const maxIdempotencyKeyLength = 128

// NurseDirectory supplies the candidates a booking is validated against.
type NurseDirectory interface {
	ListAvailable(ctx context.Context) ([]*nursing.Nurse, error)
}

type Service struct {
	appointments AppointmentRepository
	nurses       NurseDirectory
	metrics      *telemetry.Metrics
	log          zerolog.Logger
	loc          *time.Location
	now          func() time.Time
}

func NewService(appts AppointmentRepository, nurses NurseDirectory, metrics *telemetry.Metrics,
	log zerolog.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		appointments: appts,
		nurses:       nurses,
		metrics:      metrics,
		log:          log.With().Str("component", "scheduling").Logger(),
		loc:          loc,
		now:          time.Now,
	}
}

// WithClock replaces the service's time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

// Today is the current calendar date in the service's location.
func (s *Service) Today() string {
	return s.clock().Format(DateLayout)
}

func (s *Service) Slots() []string {
	return TimeSlots()
}

// Book validates req and stores a pending appointment for the session's
// user. A retry with the same idempotency key returns the first record and
// created=false.
func (s *Service) Book(ctx context.Context, session *access.Session, req BookingRequest, idempotencyKey string) (appt *Appointment, created bool, err error) {
	if !session.Can(access.BookAppointment) {
		return nil, false, ErrForbidden
	}

	key := strings.TrimSpace(idempotencyKey)
	if len(key) > maxIdempotencyKeyLength {
		return nil, false, FieldErrors{"idempotency_key": fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLength)}
	}
	if key != "" {
		existing, err := s.appointments.GetByIdempotencyKey(ctx, session.UserID, key)
		if err == nil {
			s.metrics.Booking("replayed")
			return existing, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	candidates, err := s.nurses.ListAvailable(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list available nurses: %w", err)
	}
	if errs := Validate(req, candidates, s.clock()); len(errs) > 0 {
		s.metrics.Booking("invalid")
		return nil, false, errs
	}

	nurse := findAvailable(candidates, strings.TrimSpace(req.NurseID))
	now := s.clock()
	a := &Appointment{
		ID:            uuid.New(),
		RequesterID:   session.UserID,
		RequesterName: session.Name,
		NurseID:       nurse.ID,
		NurseName:     nurse.Name,
		Date:          strings.TrimSpace(req.Date),
		Time:          strings.TrimSpace(req.Time),
		Notes:         normalizeNotes(req.Notes),
		Status:        StatusPending,
		VersionID:     1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if key != "" {
		a.IdempotencyKey = &key
	}

	if err := s.appointments.Create(ctx, a); err != nil {
		switch {
		case errors.Is(err, ErrSlotTaken):
			s.metrics.Conflict("slot_taken")
			return nil, false, ErrSlotTaken
		case errors.Is(err, ErrNotFound):
			return nil, false, err
		case errors.Is(err, ErrDuplicateBooking):
			// A concurrent retry won the insert.
			existing, lookupErr := s.appointments.GetByIdempotencyKey(ctx, session.UserID, key)
			if lookupErr != nil {
				return nil, false, fmt.Errorf("lookup idempotency key: %w", lookupErr)
			}
			s.metrics.Booking("replayed")
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create appointment: %w", err)
	}

	s.metrics.Booking("created")
	s.log.Info().
		Str("appointment_id", a.ID.String()).
		Str("requester_id", a.RequesterID.String()).
		Str("nurse_id", a.NurseID.String()).
		Str("date", a.Date).
		Str("time", a.Time).
		Msg("appointment booked")
	return a, true, nil
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// ListOptions narrows a session's appointment list.
type ListOptions struct {
	Statuses []Status
	Date     string
	Limit    int
	Offset   int
}

// List returns the appointments visible to session, most recent first.
func (s *Service) List(ctx context.Context, session *access.Session, opts ListOptions) ([]*Appointment, int, error) {
	scope := session.Scope()
	if scope.Kind == access.ScopeNone {
		return nil, 0, ErrForbidden
	}
	for _, st := range opts.Statuses {
		if !st.Valid() {
			return nil, 0, FieldErrors{"status": fmt.Sprintf("unknown status %q", st)}
		}
	}
	if opts.Date != "" {
		if _, err := time.Parse(DateLayout, opts.Date); err != nil {
			return nil, 0, FieldErrors{"date": msgInvalidDate}
		}
	}
	return s.appointments.List(ctx, AppointmentFilter{
		Scope:    scope,
		Statuses: opts.Statuses,
		Date:     opts.Date,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}

// Get returns the appointment if the session may see it. Appointments outside
// the session's scope are reported as not found.
func (s *Service) Get(ctx context.Context, session *access.Session, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.Scope().Allows(a.RequesterID, a.NurseID) {
		return nil, ErrNotFound
	}
	return a, nil
}

// Decide applies cmd to a stored appointment and persists the result with a
// compare-and-swap on its version.
func (s *Service) Decide(ctx context.Context, session *access.Session, cmd Command) (*Appointment, error) {
	switch cmd.Decision {
	case DecisionApprove, DecisionReject:
		if !session.Can(access.DecideAppointments) {
			return nil, ErrForbidden
		}
	case DecisionComplete:
		if !session.Can(access.CompleteAppointments) {
			return nil, ErrForbidden
		}
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidTransition, cmd.Decision)
	}

	current, err := s.Get(ctx, session, cmd.AppointmentID)
	if err != nil {
		return nil, err
	}

	next, err := ApplyDecision(current, cmd, s.clock())
	if err != nil {
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrInvalidTransition) {
			s.metrics.Conflict(conflictReason(err))
		}
		return nil, err
	}

	if err := s.appointments.UpdateStatus(ctx, next, current.VersionID); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			s.metrics.Conflict(conflictReason(err))
		}
		return nil, err
	}

	s.metrics.Transition(string(current.Status), string(next.Status))
	s.log.Info().
		Str("appointment_id", next.ID.String()).
		Str("actor_id", session.UserID.String()).
		Str("actor_role", session.RoleName()).
		Str("from", string(current.Status)).
		Str("to", string(next.Status)).
		Int("version_id", next.VersionID).
		Msg("appointment status changed")
	return next, nil
}

func conflictReason(err error) string {
	if errors.Is(err, ErrVersionConflict) {
		return "version_conflict"
	}
	return "invalid_transition"
}

// Counts returns the number of visible appointments per status. Every
// status is present in the result.
func (s *Service) Counts(ctx context.Context, session *access.Session) (map[Status]int, error) {
	scope := session.Scope()
	if scope.Kind == access.ScopeNone {
		return nil, ErrForbidden
	}
	counts, err := s.appointments.CountByStatus(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := map[Status]int{StatusPending: 0, StatusApproved: 0, StatusRejected: 0, StatusCompleted: 0}
	for st, n := range counts {
		out[st] = n
	}
	return out, nil
}
