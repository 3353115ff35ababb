package nursing

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound      = errors.New("nurse not found")
	ErrAlreadyExists = errors.New("nurse profile already exists")
	ErrInvalidNurse  = errors.New("invalid nurse profile")
)

// Defaults for a profile created from a nurse's own sign-up; an admin fills
// in the rest later.
const (
	DefaultSpecialization = "General Care"
)

type Service struct {
	nurses NurseRepository
	log    zerolog.Logger
}

func NewService(nurses NurseRepository, log zerolog.Logger) *Service {
	return &Service{nurses: nurses, log: log.With().Str("component", "nursing").Logger()}
}

// CreateNurseRequest is the admin "add nurse" form.
type CreateNurseRequest struct {
	UserID          *uuid.UUID `json:"user_id,omitempty"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Specialization  string     `json:"specialization"`
	ExperienceYears int        `json:"experience_years"`
	Location        *string    `json:"location,omitempty"`
	Available       *bool      `json:"available,omitempty"`
}

// validate reports form problems wrapped in ErrInvalidNurse. Email is
// required because the directory keys profiles on it.
func (r *CreateNurseRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidNurse)
	}
	if strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidNurse)
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(r.Email)); err != nil {
		return fmt.Errorf("%w: invalid email: %s", ErrInvalidNurse, r.Email)
	}
	if strings.TrimSpace(r.Specialization) == "" {
		return fmt.Errorf("%w: specialization is required", ErrInvalidNurse)
	}
	if r.ExperienceYears < 0 {
		return fmt.Errorf("%w: experience_years must not be negative", ErrInvalidNurse)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req CreateNurseRequest) (*Nurse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	n := &Nurse{
		Name:            strings.TrimSpace(req.Name),
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Specialization:  strings.TrimSpace(req.Specialization),
		ExperienceYears: req.ExperienceYears,
		Location:        req.Location,
		Available:       true,
	}
	if req.UserID != nil {
		n.ID = *req.UserID
	}
	if req.Available != nil {
		n.Available = *req.Available
	}
	if err := s.nurses.Create(ctx, n); err != nil {
		return nil, err
	}
	s.log.Info().Str("nurse_id", n.ID.String()).Str("name", n.Name).Msg("nurse profile created")
	return n, nil
}

// EnsureProfile creates a default profile for a nurse identity that does not
// have one yet. It is idempotent.
func (s *Service) EnsureProfile(ctx context.Context, id uuid.UUID, name, email string) (*Nurse, error) {
	existing, err := s.nurses.GetByID(ctx, id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	n := &Nurse{
		ID:             id,
		Name:           name,
		Email:          email,
		Specialization: DefaultSpecialization,
		Available:      true,
	}
	if err := s.nurses.Create(ctx, n); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return s.nurses.GetByID(ctx, id)
		}
		return nil, err
	}
	s.log.Info().Str("nurse_id", id.String()).Msg("nurse profile created from sign-up")
	return n, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Nurse, error) {
	return s.nurses.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, availableOnly bool) ([]*Nurse, error) {
	return s.nurses.List(ctx, availableOnly)
}

// ListAvailable is the candidate set a booking may choose from.
func (s *Service) ListAvailable(ctx context.Context) ([]*Nurse, error) {
	return s.nurses.List(ctx, true)
}

func (s *Service) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*Nurse, error) {
	n, err := s.nurses.SetAvailability(ctx, id, available)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("nurse_id", id.String()).Bool("available", available).Msg("nurse availability changed")
	return n, nil
}
