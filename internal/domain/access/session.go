package access

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/careconnect/careconnect/internal/platform/auth"
)

// Session is the explicit, per-request view of who is calling. It is rebuilt
// from the verified token on every request; nothing about it is global.
type Session struct {
	ID        string
	UserID    uuid.UUID
	Email     string
	Name      string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// FromClaims builds a session from verified token claims. A subject that is
// not a UUID yields an Unknown role so the session can do nothing.
func FromClaims(claims *auth.Claims) *Session {
	s := &Session{
		ID:    claims.ID,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  Resolve(claims.Role),
	}
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		s.Role = Unknown{Raw: claims.Role}
	}
	s.UserID = uid
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s
}

// FromContext returns the caller's session, or false when the request is
// unauthenticated.
func FromContext(ctx context.Context) (*Session, bool) {
	claims := auth.ClaimsFromContext(ctx)
	if claims == nil {
		return nil, false
	}
	return FromClaims(claims), true
}

func (s *Session) Can(c Capability) bool {
	return s != nil && s.Role != nil && s.Role.Capabilities().Has(c)
}

// Scope is the appointment row filter for this session.
func (s *Session) Scope() Scope {
	if s == nil || s.Role == nil {
		return Scope{Kind: ScopeNone}
	}
	return s.Role.Scope(s.UserID)
}

func (s *Session) RoleName() string {
	if s == nil || s.Role == nil {
		return RoleUnknown
	}
	return s.Role.Name()
}

type sessionJSON struct {
	ID           string       `json:"id"`
	UserID       uuid.UUID    `json:"user_id"`
	Email        string       `json:"email"`
	Name         string       `json:"display_name"`
	Role         string       `json:"role"`
	Capabilities []Capability `json:"capabilities"`
	IssuedAt     time.Time    `json:"issued_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

func (s Session) MarshalJSON() ([]byte, error) {
	caps := []Capability{}
	if s.Role != nil {
		caps = s.Role.Capabilities().List()
	}
	return json.Marshal(sessionJSON{
		ID:           s.ID,
		UserID:       s.UserID,
		Email:        s.Email,
		Name:         s.Name,
		Role:         s.RoleName(),
		Capabilities: caps,
		IssuedAt:     s.IssuedAt,
		ExpiresAt:    s.ExpiresAt,
	})
}
