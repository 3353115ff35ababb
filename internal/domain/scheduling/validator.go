package scheduling

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careconnect/careconnect/internal/domain/nursing"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	firstSlotHour = 9
	lastSlotHour  = 17
	slotInterval  = 30 * time.Minute
)

const (
	msgSelectNurse     = "Please select a nurse"
	msgNurseUnavail    = "Selected nurse is not available"
	msgSelectDate      = "Please select a date"
	msgInvalidDate     = "Invalid date format"
	msgFutureDate      = "Please select a future date"
	msgSelectTime      = "Please select a time"
	msgInvalidTimeSlot = "Please select a valid time slot"
)

// FieldErrors maps a booking field to a user-facing message. An empty map
// means the request is valid.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	fields := make([]string, 0, len(f))
	for k := range f {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, k := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", k, f[k]))
	}
	return "invalid booking: " + strings.Join(parts, "; ")
}

var timeSlots = buildTimeSlots()

func buildTimeSlots() []string {
	var slots []string
	start := time.Date(2000, 1, 1, firstSlotHour, 0, 0, 0, time.UTC)
	end := time.Date(2000, 1, 1, lastSlotHour, 0, 0, 0, time.UTC)
	for t := start; !t.After(end); t = t.Add(slotInterval) {
		slots = append(slots, t.Format(TimeLayout))
	}
	return slots
}

// TimeSlots returns the bookable half-hour slots, 09:00 through 17:00.
func TimeSlots() []string {
	out := make([]string, len(timeSlots))
	copy(out, timeSlots)
	return out
}

func isTimeSlot(v string) bool {
	for _, s := range timeSlots {
		if s == v {
			return true
		}
	}
	return false
}

// Validate checks a booking against the available nurses and the current
// time. It never touches storage. Dates are compared in now's location, so
// any slot today is still bookable.
func Validate(req BookingRequest, candidates []*nursing.Nurse, now time.Time) FieldErrors {
	errs := FieldErrors{}

	if nurseID := strings.TrimSpace(req.NurseID); nurseID == "" {
		errs["nurse_id"] = msgSelectNurse
	} else if findAvailable(candidates, nurseID) == nil {
		errs["nurse_id"] = msgNurseUnavail
	}

	if date := strings.TrimSpace(req.Date); date == "" {
		errs["date"] = msgSelectDate
	} else if d, err := time.ParseInLocation(DateLayout, date, now.Location()); err != nil {
		errs["date"] = msgInvalidDate
	} else {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if d.Before(today) {
			errs["date"] = msgFutureDate
		}
	}

	if slot := strings.TrimSpace(req.Time); slot == "" {
		errs["time"] = msgSelectTime
	} else if !isTimeSlot(slot) {
		errs["time"] = msgInvalidTimeSlot
	}

	return errs
}

// findAvailable returns the available candidate with the given id.
func findAvailable(candidates []*nursing.Nurse, nurseID string) *nursing.Nurse {
	id, err := uuid.Parse(nurseID)
	if err != nil {
		return nil
	}
	for _, n := range candidates {
		if n != nil && n.ID == id && n.Available {
			return n
		}
	}
	return nil
}
