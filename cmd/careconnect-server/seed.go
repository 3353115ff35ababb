package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careconnect/careconnect/internal/domain/access"
	"github.com/careconnect/careconnect/internal/domain/identity"
	"github.com/careconnect/careconnect/internal/domain/nursing"
	"github.com/careconnect/careconnect/internal/domain/scheduling"
	"github.com/careconnect/careconnect/internal/platform/auth"
	"github.com/careconnect/careconnect/internal/platform/db"
)

type demoUser struct {
	Email string
	Name  string
	Role  string
}

var demoUsers = []demoUser{
	{Email: "user@test.com", Name: "John Doe", Role: access.RoleUser},
	{Email: "nurse@test.com", Name: "Jane Smith", Role: access.RoleNurse},
	{Email: "admin@test.com", Name: "Admin User", Role: access.RoleAdmin},
	{Email: "alice@test.com", Name: "Alice Brown", Role: access.RoleUser},
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

var demoNurses = []nursing.CreateNurseRequest{
	{Name: "Sarah Johnson", Email: "sarah@careconnect.com", Specialization: "Pediatric Care", ExperienceYears: 5, Location: strPtr("Downtown Clinic"), Available: boolPtr(true)},
	{Name: "Michael Chen", Email: "michael@careconnect.com", Specialization: "Geriatric Care", ExperienceYears: 8, Location: strPtr("Northside"), Available: boolPtr(true)},
	{Name: "Emily Rodriguez", Email: "emily@careconnect.com", Specialization: "Home Health", ExperienceYears: 3, Location: strPtr("Westside"), Available: boolPtr(true)},
	{Name: "David Wilson", Email: "david@careconnect.com", Specialization: "Critical Care", ExperienceYears: 10, Location: strPtr("Eastside"), Available: boolPtr(false)},
}

type demoAppointment struct {
	RequesterEmail string
	NurseName      string
	DayOffset      int
	Time           string
	Notes          string
	Status         scheduling.Status
}

var demoAppointments = []demoAppointment{
	{RequesterEmail: "user@test.com", NurseName: "Sarah Johnson", DayOffset: 2, Time: "10:00", Notes: "Regular checkup and medication review", Status: scheduling.StatusPending},
	{RequesterEmail: "user@test.com", NurseName: "Michael Chen", DayOffset: 7, Time: "14:30", Notes: "Physical therapy session", Status: scheduling.StatusApproved},
	{RequesterEmail: "alice@test.com", NurseName: "Sarah Johnson", DayOffset: -3, Time: "09:00", Notes: "Wound care and dressing change", Status: scheduling.StatusCompleted},
	{RequesterEmail: "alice@test.com", NurseName: "Jane Smith", DayOffset: 0, Time: "11:30", Notes: "Blood pressure follow-up", Status: scheduling.StatusApproved},
}

// runSeed loads the demo data in a single transaction. It reports false
// without writing anything when the demo admin already exists.
func runSeed(ctx context.Context, pool *pgxpool.Pool, password string, today time.Time, logger zerolog.Logger) (bool, error) {
	users := identity.NewUserRepoPG(pool)
	nursingSvc := nursing.NewService(nursing.NewNurseRepoPG(pool), logger)
	appts := scheduling.NewAppointmentRepoPG(pool)
	hasher := auth.NewPasswordHasher(passwordHashCost)

	if _, err := users.GetByEmail(ctx, "admin@test.com"); err == nil {
		return false, nil
	} else if !errors.Is(err, identity.ErrUserNotFound) {
		return false, err
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return false, err
	}

	err = db.WithTx(ctx, pool, func(ctx context.Context) error {
		byEmail := make(map[string]*identity.User, len(demoUsers))
		nurseByName := make(map[string]*nursing.Nurse, len(demoNurses)+1)

		for _, du := range demoUsers {
			u := &identity.User{Email: du.Email, DisplayName: du.Name, Role: du.Role, PasswordHash: hash}
			if err := users.Create(ctx, u); err != nil {
				return fmt.Errorf("create user %s: %w", du.Email, err)
			}
			byEmail[du.Email] = u
			if du.Role == access.RoleNurse {
				n, err := nursingSvc.EnsureProfile(ctx, u.ID, u.DisplayName, u.Email)
				if err != nil {
					return fmt.Errorf("nurse profile for %s: %w", du.Email, err)
				}
				nurseByName[n.Name] = n
			}
		}

		for _, req := range demoNurses {
			n, err := nursingSvc.Create(ctx, req)
			if err != nil {
				return fmt.Errorf("create nurse %s: %w", req.Name, err)
			}
			nurseByName[n.Name] = n
		}

		for _, da := range demoAppointments {
			requester, nurse := byEmail[da.RequesterEmail], nurseByName[da.NurseName]
			if requester == nil || nurse == nil {
				return fmt.Errorf("demo appointment references unknown party %s/%s", da.RequesterEmail, da.NurseName)
			}
			a := &scheduling.Appointment{
				RequesterID:   requester.ID,
				RequesterName: requester.DisplayName,
				NurseID:       nurse.ID,
				NurseName:     nurse.Name,
				Date:          today.AddDate(0, 0, da.DayOffset).Format(scheduling.DateLayout),
				Time:          da.Time,
				Notes:         strPtr(da.Notes),
				Status:        da.Status,
				VersionID:     1,
			}
			if err := appts.Create(ctx, a); err != nil {
				return fmt.Errorf("create appointment for %s: %w", da.RequesterEmail, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	logger.Info().
		Int("users", len(demoUsers)).
		Int("nurses", len(demoNurses)).
		Int("appointments", len(demoAppointments)).
		Msg("demo data seeded")
	return true, nil
}
