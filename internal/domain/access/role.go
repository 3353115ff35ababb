// Package access resolves an authenticated identity into one of a closed set
// of role variants and enforces capabilities at the HTTP edge. Anything that
// is not a recognised role resolves to Unknown, which can do nothing.
package access

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

type Capability string

const (
	BookAppointment          Capability = "appointment:book"
	ViewOwnAppointments      Capability = "appointment:read:own"
	ViewAssignedAppointments Capability = "appointment:read:assigned"
	ViewAllAppointments      Capability = "appointment:read:all"
	DecideAppointments       Capability = "appointment:decide"
	CompleteAppointments     Capability = "appointment:complete"
	ViewNurses               Capability = "nurse:read"
	ManageNurses             Capability = "nurse:manage"
)

// CapabilitySet is an immutable set of capabilities.
type CapabilitySet map[Capability]struct{}

func newCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// HasAny reports whether the set holds at least one of caps.
func (s CapabilitySet) HasAny(caps ...Capability) bool {
	for _, c := range caps {
		if s.Has(c) {
			return true
		}
	}
	return false
}

// List returns the capabilities sorted by name.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ScopeKind says which appointments a role may see.
type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopeRequester
	ScopeNurse
	ScopeAll
)

// Scope is the row filter applied to appointment queries.
type Scope struct {
	Kind      ScopeKind
	SubjectID uuid.UUID
}

// Allows reports whether an appointment with the given requester and nurse
// falls inside the scope.
func (s Scope) Allows(requesterID, nurseID uuid.UUID) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeRequester:
		return s.SubjectID != uuid.Nil && requesterID == s.SubjectID
	case ScopeNurse:
		return s.SubjectID != uuid.Nil && nurseID == s.SubjectID
	default:
		return false
	}
}

// Role is one of User, Nurse, Admin or Unknown.
type Role interface {
	Name() string
	Capabilities() CapabilitySet
	Scope(subjectID uuid.UUID) Scope
}

const (
	RoleUser    = "user"
	RoleNurse   = "nurse"
	RoleAdmin   = "admin"
	RoleUnknown = "unknown"
)

var (
	userCaps  = newCapabilitySet(BookAppointment, ViewOwnAppointments)
	nurseCaps = newCapabilitySet(ViewAssignedAppointments, CompleteAppointments)
	adminCaps = newCapabilitySet(ViewAllAppointments, DecideAppointments, CompleteAppointments, ViewNurses, ManageNurses)
	noCaps    = newCapabilitySet()
)

// User is a patient booking care for themselves.
type User struct{}

func (User) Name() string                    { return RoleUser }
func (User) Capabilities() CapabilitySet     { return userCaps }
func (User) Scope(subjectID uuid.UUID) Scope { return Scope{Kind: ScopeRequester, SubjectID: subjectID} }

// Nurse sees and completes the appointments assigned to them.
type Nurse struct{}

func (Nurse) Name() string                    { return RoleNurse }
func (Nurse) Capabilities() CapabilitySet     { return nurseCaps }
func (Nurse) Scope(subjectID uuid.UUID) Scope { return Scope{Kind: ScopeNurse, SubjectID: subjectID} }

// Admin sees everything and decides pending appointments.
type Admin struct{}

func (Admin) Name() string                { return RoleAdmin }
func (Admin) Capabilities() CapabilitySet { return adminCaps }
func (Admin) Scope(uuid.UUID) Scope       { return Scope{Kind: ScopeAll} }

// Unknown is any absent or unrecognised role claim.
type Unknown struct {
	Raw string
}

func (Unknown) Name() string                { return RoleUnknown }
func (Unknown) Capabilities() CapabilitySet { return noCaps }
func (Unknown) Scope(uuid.UUID) Scope       { return Scope{Kind: ScopeNone} }

// Resolve maps a stored role claim to its variant. Matching is exact after
// trimming and lower-casing; anything else is Unknown.
func Resolve(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case RoleUser:
		return User{}
	case RoleNurse:
		return Nurse{}
	case RoleAdmin:
		return Admin{}
	default:
		return Unknown{Raw: raw}
	}
}

// IsAssignable reports whether raw names a role an account can hold.
func IsAssignable(raw string) bool {
	_, unknown := Resolve(raw).(Unknown)
	return !unknown
}
