package access

import (
	"testing"

	"github.com/google/uuid"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"user", RoleUser},
		{"nurse", RoleNurse},
		{"admin", RoleAdmin},
		{" Admin ", RoleAdmin},
		{"", RoleUnknown},
		{"superuser", RoleUnknown},
		{"physician", RoleUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := Resolve(tt.raw).Name(); got != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestResolve_UnknownKeepsRawClaim(t *testing.T) {
	u, ok := Resolve("superuser").(Unknown)
	if !ok {
		t.Fatal("expected Unknown variant")
	}
	if u.Raw != "superuser" {
		t.Errorf("expected raw claim preserved, got %q", u.Raw)
	}
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		role Role
		has  []Capability
		not  []Capability
	}{
		{
			role: User{},
			has:  []Capability{BookAppointment, ViewOwnAppointments},
			not:  []Capability{ViewAllAppointments, DecideAppointments, CompleteAppointments, ManageNurses, ViewAssignedAppointments},
		},
		{
			role: Nurse{},
			has:  []Capability{ViewAssignedAppointments, CompleteAppointments},
			not:  []Capability{BookAppointment, DecideAppointments, ViewAllAppointments, ManageNurses},
		},
		{
			role: Admin{},
			has:  []Capability{ViewAllAppointments, DecideAppointments, CompleteAppointments, ViewNurses, ManageNurses},
			not:  []Capability{BookAppointment},
		},
		{
			role: Unknown{},
			not:  []Capability{BookAppointment, ViewOwnAppointments, ViewAssignedAppointments, ViewAllAppointments,
				DecideAppointments, CompleteAppointments, ViewNurses, ManageNurses},
		},
	}

	for _, tt := range tests {
		t.Run(tt.role.Name(), func(t *testing.T) {
			caps := tt.role.Capabilities()
			for _, c := range tt.has {
				if !caps.Has(c) {
					t.Errorf("expected %s to have %s", tt.role.Name(), c)
				}
			}
			for _, c := range tt.not {
				if caps.Has(c) {
					t.Errorf("expected %s not to have %s", tt.role.Name(), c)
				}
			}
		})
	}
}

func TestUnknown_HasEmptyCapabilitySet(t *testing.T) {
	if n := len(Unknown{}.Capabilities()); n != 0 {
		t.Errorf("expected no capabilities, got %d", n)
	}
	if (Unknown{}).Capabilities().HasAny(BookAppointment, ViewAllAppointments) {
		t.Error("expected HasAny to be false for Unknown")
	}
}

func TestScope(t *testing.T) {
	me := uuid.New()
	other := uuid.New()

	tests := []struct {
		name      string
		scope     Scope
		requester uuid.UUID
		nurse     uuid.UUID
		want      bool
	}{
		{"user sees own", User{}.Scope(me), me, other, true},
		{"user blind to others", User{}.Scope(me), other, other, false},
		{"nurse sees assigned", Nurse{}.Scope(me), other, me, true},
		{"nurse blind to unassigned", Nurse{}.Scope(me), me, other, false},
		{"admin sees all", Admin{}.Scope(me), other, other, true},
		{"unknown sees nothing", Unknown{}.Scope(me), me, me, false},
		{"nil subject sees nothing", User{}.Scope(uuid.Nil), uuid.Nil, uuid.Nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scope.Allows(tt.requester, tt.nurse); got != tt.want {
				t.Errorf("Allows() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsAssignable(t *testing.T) {
	for _, r := range []string{"user", "nurse", "admin"} {
		if !IsAssignable(r) {
			t.Errorf("expected %s to be assignable", r)
		}
	}
	for _, r := range []string{"", "unknown", "root"} {
		if IsAssignable(r) {
			t.Errorf("expected %q not to be assignable", r)
		}
	}
}

func TestCapabilitySet_ListSorted(t *testing.T) {
	list := Admin{}.Capabilities().List()
	for i := 1; i < len(list); i++ {
		if list[i-1] > list[i] {
			t.Fatalf("expected sorted capabilities, got %v", list)
		}
	}
}
