package scheduling

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careconnect/careconnect/internal/domain/access"
	"github.com/careconnect/careconnect/internal/domain/nursing"
)

// -- Mocks --

type mockAppointmentRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*Appointment
	// creates counts successful inserts.
	creates int
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.appts {
		if existing.Status.Holds() && existing.NurseID == a.NurseID && existing.Date == a.Date && existing.Time == a.Time {
			return ErrSlotTaken
		}
		if a.IdempotencyKey != nil && existing.IdempotencyKey != nil &&
			existing.RequesterID == a.RequesterID && *existing.IdempotencyKey == *a.IdempotencyKey {
			return ErrDuplicateBooking
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	m.appts[a.ID] = &cp
	m.creates++
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAppointmentRepo) GetByIdempotencyKey(_ context.Context, requesterID uuid.UUID, key string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appts {
		if a.RequesterID == requesterID && a.IdempotencyKey != nil && *a.IdempotencyKey == key {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockAppointmentRepo) List(_ context.Context, f AppointmentFilter) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*Appointment
	for _, a := range m.appts {
		if !f.Scope.Allows(a.RequesterID, a.NurseID) {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, a.Status) {
			continue
		}
		if f.Date != "" && a.Date != f.Date {
			continue
		}
		cp := *a
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Date != matched[j].Date {
			return matched[i].Date > matched[j].Date
		}
		return matched[i].Time > matched[j].Time
	})
	total := len(matched)
	if f.Offset >= total {
		return []*Appointment{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < total {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total, nil
}

func containsStatus(list []Status, st Status) bool {
	for _, s := range list {
		if s == st {
			return true
		}
	}
	return false
}

func (m *mockAppointmentRepo) UpdateStatus(_ context.Context, next *Appointment, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[next.ID]
	if !ok {
		return ErrNotFound
	}
	if a.VersionID != expectedVersion {
		return ErrVersionConflict
	}
	a.Status = next.Status
	a.VersionID = next.VersionID
	a.UpdatedAt = next.UpdatedAt
	return nil
}

func (m *mockAppointmentRepo) CountByStatus(_ context.Context, scope access.Scope) (map[Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[Status]int{}
	for _, a := range m.appts {
		if scope.Allows(a.RequesterID, a.NurseID) {
			out[a.Status]++
		}
	}
	return out, nil
}

type mockDirectory struct {
	nurses []*nursing.Nurse
	err    error
}

func (d *mockDirectory) ListAvailable(context.Context) ([]*nursing.Nurse, error) {
	if d.err != nil {
		return nil, d.err
	}
	var out []*nursing.Nurse
	for _, n := range d.nurses {
		if n.Available {
			out = append(out, n)
		}
	}
	return out, nil
}

// -- Fixtures --

type fixture struct {
	svc   *Service
	repo  *mockAppointmentRepo
	dir   *mockDirectory
	sarah *nursing.Nurse
	david *nursing.Nurse
}

func newFixture() *fixture {
	sarah := &nursing.Nurse{ID: uuid.New(), Name: "Sarah Johnson", Available: true}
	michael := &nursing.Nurse{ID: uuid.New(), Name: "Michael Chen", Available: true}
	david := &nursing.Nurse{ID: uuid.New(), Name: "David Wilson", Available: false}
	repo := newMockAppointmentRepo()
	dir := &mockDirectory{nurses: []*nursing.Nurse{sarah, michael, david}}
	svc := NewService(repo, dir, nil, zerolog.Nop(), time.UTC).WithClock(func() time.Time { return fixedNow })
	return &fixture{svc: svc, repo: repo, dir: dir, sarah: sarah, david: david}
}

func sessionFor(role string, id uuid.UUID) *access.Session {
	return &access.Session{ID: uuid.NewString(), UserID: id, Name: role + " person", Role: access.Resolve(role)}
}

func (f *fixture) book(t *testing.T, patient *access.Session, date, slot string) *Appointment {
	t.Helper()
	a, created, err := f.svc.Book(context.Background(), patient,
		BookingRequest{NurseID: f.sarah.ID.String(), Date: date, Time: slot}, "")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if !created {
		t.Fatal("expected a new appointment")
	}
	return a
}

// -- Book --

func TestBook_CreatesPending(t *testing.T) {
	f := newFixture()
	patient := sessionFor("user", uuid.New())
	notes := "  knee check  "

	a, created, err := f.svc.Book(context.Background(), patient,
		BookingRequest{NurseID: f.sarah.ID.String(), Date: "2025-06-12", Time: "11:00", Notes: &notes}, "")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if !created {
		t.Error("expected created=true")
	}
	if a.Status != StatusPending || a.VersionID != 1 {
		t.Errorf("expected pending v1, got %s v%d", a.Status, a.VersionID)
	}
	if a.RequesterID != patient.UserID || a.NurseName != "Sarah Johnson" {
		t.Errorf("unexpected parties: %+v", a)
	}
	if a.Notes == nil || *a.Notes != "knee check" {
		t.Errorf("expected trimmed notes, got %v", a.Notes)
	}
}

func TestBook_UnavailableNurseWritesNothing(t *testing.T) {
	f := newFixture()
	patient := sessionFor("user", uuid.New())

	_, _, err := f.svc.Book(context.Background(), patient,
		BookingRequest{NurseID: f.david.ID.String(), Date: "2025-06-12", Time: "11:00"}, "")
	var fieldErrs FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if fieldErrs["nurse_id"] != "Selected nurse is not available" {
		t.Errorf("unexpected nurse_id error: %v", fieldErrs)
	}
	if f.repo.creates != 0 {
		t.Errorf("expected no store write, got %d", f.repo.creates)
	}
}

func TestBook_OnlyUsersMayBook(t *testing.T) {
	f := newFixture()
	req := BookingRequest{NurseID: f.sarah.ID.String(), Date: "2025-06-12", Time: "11:00"}
	for _, role := range []string{"nurse", "admin", "", "doctor"} {
		if _, _, err := f.svc.Book(context.Background(), sessionFor(role, uuid.New()), req, ""); !errors.Is(err, ErrForbidden) {
			t.Errorf("role %q: expected ErrForbidden, got %v", role, err)
		}
	}
}

func TestBook_SlotTaken(t *testing.T) {
	f := newFixture()
	f.book(t, sessionFor("user", uuid.New()), "2025-06-12", "11:00")

	_, _, err := f.svc.Book(context.Background(), sessionFor("user", uuid.New()),
		BookingRequest{NurseID: f.sarah.ID.String(), Date: "2025-06-12", Time: "11:00"}, "")
	if !errors.Is(err, ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken, got %v", err)
	}
}

func TestBook_RejectedSlotIsFreed(t *testing.T) {
	f := newFixture()
	admin := sessionFor("admin", uuid.New())
	first := f.book(t, sessionFor("user", uuid.New()), "2025-06-12", "11:00")
	if _, err := f.svc.Decide(context.Background(), admin, Command{AppointmentID: first.ID, Decision: DecisionReject}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	f.book(t, sessionFor("user", uuid.New()), "2025-06-12", "11:00")
}

func TestBook_IdempotencyKey(t *testing.T) {
	f := newFixture()
	patient := sessionFor("user", uuid.New())
	req := BookingRequest{NurseID: f.sarah.ID.String(), Date: "2025-06-12", Time: "11:00"}

	first, created, err := f.svc.Book(context.Background(), patient, req, "retry-1")
	if err != nil || !created {
		t.Fatalf("first Book: created=%v err=%v", created, err)
	}
	again, created, err := f.svc.Book(context.Background(), patient, req, "retry-1")
	if err != nil {
		t.Fatalf("retry Book: %v", err)
	}
	if created {
		t.Error("expected created=false on retry")
	}
	if again.ID != first.ID {
		t.Errorf("expected the original appointment, got %s", again.ID)
	}
	if f.repo.creates != 1 {
		t.Errorf("expected one stored appointment, got %d", f.repo.creates)
	}
}

func TestBook_DirectoryFailure(t *testing.T) {
	f := newFixture()
	f.dir.err = errors.New("db down")
	_, _, err := f.svc.Book(context.Background(), sessionFor("user", uuid.New()),
		BookingRequest{NurseID: f.sarah.ID.String(), Date: "2025-06-12", Time: "11:00"}, "")
	if err == nil || errors.As(err, new(FieldErrors)) {
		t.Errorf("expected a plain error, got %v", err)
	}
}

// -- List / Get --

func TestList_ScopedByRole(t *testing.T) {
	f := newFixture()
	alice := sessionFor("user", uuid.New())
	bob := sessionFor("user", uuid.New())
	f.book(t, alice, "2025-06-11", "09:00")
	f.book(t, alice, "2025-06-12", "09:00")
	f.book(t, bob, "2025-06-13", "09:00")

	tests := []struct {
		name    string
		session *access.Session
		want    int
	}{
		{"alice sees own", alice, 2},
		{"bob sees own", bob, 1},
		{"assigned nurse", sessionFor("nurse", f.sarah.ID), 3},
		{"other nurse", sessionFor("nurse", uuid.New()), 0},
		{"admin sees all", sessionFor("admin", uuid.New()), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := f.svc.List(context.Background(), tt.session, ListOptions{Limit: 20})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if total != tt.want || len(items) != tt.want {
				t.Errorf("expected %d, got total=%d len=%d", tt.want, total, len(items))
			}
		})
	}

	if _, _, err := f.svc.List(context.Background(), sessionFor("", uuid.New()), ListOptions{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("unknown role: expected ErrForbidden, got %v", err)
	}
}

func TestList_MostRecentFirstAndFilters(t *testing.T) {
	f := newFixture()
	alice := sessionFor("user", uuid.New())
	f.book(t, alice, "2025-06-11", "09:00")
	latest := f.book(t, alice, "2025-06-12", "16:00")
	f.book(t, alice, "2025-06-12", "09:00")

	items, _, err := f.svc.List(context.Background(), alice, ListOptions{Limit: 20})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if items[0].ID != latest.ID {
		t.Errorf("expected most recent first, got %s %s", items[0].Date, items[0].Time)
	}

	items, _, _ = f.svc.List(context.Background(), alice, ListOptions{Date: "2025-06-12", Limit: 20})
	if len(items) != 2 {
		t.Errorf("expected 2 on 2025-06-12, got %d", len(items))
	}
	items, _, _ = f.svc.List(context.Background(), alice, ListOptions{Statuses: []Status{StatusApproved}, Limit: 20})
	if len(items) != 0 {
		t.Errorf("expected no approved appointments, got %d", len(items))
	}

	if _, _, err := f.svc.List(context.Background(), alice, ListOptions{Statuses: []Status{"cancelled"}}); !errors.As(err, new(FieldErrors)) {
		t.Errorf("expected FieldErrors for unknown status, got %v", err)
	}
	if _, _, err := f.svc.List(context.Background(), alice, ListOptions{Date: "June 12"}); !errors.As(err, new(FieldErrors)) {
		t.Errorf("expected FieldErrors for bad date, got %v", err)
	}
}

func TestGet_HidesOutOfScope(t *testing.T) {
	f := newFixture()
	alice := sessionFor("user", uuid.New())
	a := f.book(t, alice, "2025-06-11", "09:00")

	if _, err := f.svc.Get(context.Background(), alice, a.ID); err != nil {
		t.Errorf("owner: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), sessionFor("user", uuid.New()), a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("stranger: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), alice, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing: expected ErrNotFound, got %v", err)
	}
}

// -- Decide --

func TestDecide_ApproveThenComplete(t *testing.T) {
	f := newFixture()
	admin := sessionFor("admin", uuid.New())
	nurse := sessionFor("nurse", f.sarah.ID)
	a := f.book(t, sessionFor("user", uuid.New()), "2025-06-11", "09:00")

	approved, err := f.svc.Decide(context.Background(), admin, Command{AppointmentID: a.ID, Decision: DecisionApprove})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != StatusApproved || approved.VersionID != 2 {
		t.Errorf("expected approved v2, got %s v%d", approved.Status, approved.VersionID)
	}

	completed, err := f.svc.Decide(context.Background(), nurse, Command{AppointmentID: a.ID, Decision: DecisionComplete})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != StatusCompleted || completed.VersionID != 3 {
		t.Errorf("expected completed v3, got %s v%d", completed.Status, completed.VersionID)
	}

	stored, _ := f.repo.GetByID(context.Background(), a.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("store not updated: %s", stored.Status)
	}
}

func TestDecide_Permissions(t *testing.T) {
	f := newFixture()
	patient := sessionFor("user", uuid.New())
	a := f.book(t, patient, "2025-06-11", "09:00")

	if _, err := f.svc.Decide(context.Background(), patient, Command{AppointmentID: a.ID, Decision: DecisionApprove}); !errors.Is(err, ErrForbidden) {
		t.Errorf("user approve: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Decide(context.Background(), sessionFor("nurse", f.sarah.ID), Command{AppointmentID: a.ID, Decision: DecisionReject}); !errors.Is(err, ErrForbidden) {
		t.Errorf("nurse reject: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Decide(context.Background(), sessionFor("", uuid.New()), Command{AppointmentID: a.ID, Decision: DecisionComplete}); !errors.Is(err, ErrForbidden) {
		t.Errorf("unknown complete: expected ErrForbidden, got %v", err)
	}

	admin := sessionFor("admin", uuid.New())
	if _, err := f.svc.Decide(context.Background(), admin, Command{AppointmentID: a.ID, Decision: DecisionApprove}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	// A nurse cannot complete someone else's appointment.
	if _, err := f.svc.Decide(context.Background(), sessionFor("nurse", uuid.New()), Command{AppointmentID: a.ID, Decision: DecisionComplete}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unassigned nurse: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Decide(context.Background(), admin, Command{AppointmentID: a.ID, Decision: DecisionComplete}); err != nil {
		t.Errorf("admin complete: %v", err)
	}
}

func TestDecide_ReapplyIsInvalid(t *testing.T) {
	f := newFixture()
	admin := sessionFor("admin", uuid.New())
	a := f.book(t, sessionFor("user", uuid.New()), "2025-06-11", "09:00")
	seen := a.VersionID

	if _, err := f.svc.Decide(context.Background(), admin, Command{AppointmentID: a.ID, Decision: DecisionApprove}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.svc.Decide(context.Background(), admin, Command{AppointmentID: a.ID, Decision: DecisionApprove}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second approve: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.svc.Decide(context.Background(), admin, Command{AppointmentID: a.ID, Decision: DecisionApprove, ExpectedVersion: &seen}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second approve with the version first seen: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.svc.Decide(context.Background(), admin, Command{AppointmentID: a.ID, Decision: DecisionReject}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("reject after approve: expected ErrInvalidTransition, got %v", err)
	}
}

func TestDecide_StaleVersion(t *testing.T) {
	f := newFixture()
	admin := sessionFor("admin", uuid.New())
	a := f.book(t, sessionFor("user", uuid.New()), "2025-06-11", "09:00")
	v := a.VersionID

	if _, err := f.svc.Decide(context.Background(), admin, Command{AppointmentID: a.ID, Decision: DecisionApprove, ExpectedVersion: &v}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	stored, _ := f.repo.GetByID(context.Background(), a.ID)
	if _, err := f.svc.Decide(context.Background(), admin, Command{AppointmentID: a.ID, Decision: DecisionComplete, ExpectedVersion: &v}); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}
	after, _ := f.repo.GetByID(context.Background(), a.ID)
	if after.Status != stored.Status || after.VersionID != stored.VersionID {
		t.Errorf("record changed on conflict: %+v", after)
	}
}

func TestDecide_ConcurrentDecisionsOneWins(t *testing.T) {
	f := newFixture()
	a := f.book(t, sessionFor("user", uuid.New()), "2025-06-11", "09:00")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, d := range []Decision{DecisionApprove, DecisionReject, DecisionApprove, DecisionReject} {
		wg.Add(1)
		go func(d Decision) {
			defer wg.Done()
			_, err := f.svc.Decide(context.Background(), sessionFor("admin", uuid.New()), Command{AppointmentID: a.ID, Decision: d})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, ErrVersionConflict) && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("unexpected error: %v", err)
			}
		}(d)
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly one decision to win, got %d", successes)
	}
}

func TestCounts(t *testing.T) {
	f := newFixture()
	alice := sessionFor("user", uuid.New())
	admin := sessionFor("admin", uuid.New())
	a := f.book(t, alice, "2025-06-11", "09:00")
	f.book(t, alice, "2025-06-11", "09:30")
	if _, err := f.svc.Decide(context.Background(), admin, Command{AppointmentID: a.ID, Decision: DecisionApprove}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	counts, err := f.svc.Counts(context.Background(), alice)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[StatusPending] != 1 || counts[StatusApproved] != 1 || counts[StatusCompleted] != 0 {
		t.Errorf("unexpected counts: %v", counts)
	}
	if _, ok := counts[StatusRejected]; !ok {
		t.Error("expected every status key to be present")
	}

	if _, err := f.svc.Counts(context.Background(), sessionFor("", uuid.New())); !errors.Is(err, ErrForbidden) {
		t.Errorf("unknown: expected ErrForbidden, got %v", err)
	}
}

func TestToday(t *testing.T) {
	f := newFixture()
	if got := f.svc.Today(); got != "2025-06-10" {
		t.Errorf("expected 2025-06-10, got %s", got)
	}
}
