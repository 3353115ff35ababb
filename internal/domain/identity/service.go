package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/careconnect/careconnect/internal/domain/access"
	"github.com/careconnect/careconnect/internal/platform/auth"
	"github.com/careconnect/careconnect/internal/platform/telemetry"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidSignup      = errors.New("invalid sign-up")
	ErrRoleNotAllowed     = errors.New("role cannot be chosen at sign-up")
)

// Revoker ends sessions by token id.
type Revoker interface {
	Revoke(jti string, expiresAt time.Time)
}

type Options struct {
	// AllowAdminSignup lets anyone register as admin. Off outside development.
	AllowAdminSignup bool
}

type Service struct {
	users   UserRepository
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenIssuer
	revoker Revoker
	metrics *telemetry.Metrics
	log     zerolog.Logger
	opts    Options
	now     func() time.Time

	mu      sync.RWMutex
	subs    map[int]func(context.Context, Event)
	nextSub int
}

func NewService(users UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenIssuer, revoker Revoker,
	metrics *telemetry.Metrics, log zerolog.Logger, opts Options) *Service {
	return &Service{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		revoker: revoker,
		metrics: metrics,
		log:     log.With().Str("component", "identity").Logger(),
		opts:    opts,
		now:     time.Now,
		subs:    make(map[int]func(context.Context, Event)),
	}
}

type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by sign-up and login.
type AuthResult struct {
	Token   string          `json:"token"`
	Session *access.Session `json:"session"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidSignup)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: invalid email: %s", ErrInvalidSignup, req.Email)
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return nil, fmt.Errorf("%w: display_name is required", ErrInvalidSignup)
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = access.RoleUser
	}
	if !access.IsAssignable(role) {
		return nil, fmt.Errorf("%w: invalid role: %s", ErrInvalidSignup, req.Role)
	}
	if role == access.RoleAdmin && !s.opts.AllowAdminSignup {
		return nil, ErrRoleNotAllowed
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignup, err)
		}
		return nil, err
	}

	u := &User{Email: email, DisplayName: name, Role: role, PasswordHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			s.metrics.AuthAttempt("signup", "duplicate")
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	result, err := s.startSession(u)
	if err != nil {
		return nil, err
	}
	s.metrics.AuthAttempt("signup", "success")
	s.log.Info().Str("user_id", u.ID.String()).Str("role", u.Role).Msg("user registered")
	s.publish(ctx, EventRegistered, u, result.Session.ID)
	return result, nil
}

func (s *Service) Authenticate(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.metrics.AuthAttempt("login", "failure")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	ok, err := s.hasher.Verify(u.PasswordHash, req.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.AuthAttempt("login", "failure")
		return nil, ErrInvalidCredentials
	}

	result, err := s.startSession(u)
	if err != nil {
		return nil, err
	}
	s.metrics.AuthAttempt("login", "success")
	s.publish(ctx, EventLogin, u, result.Session.ID)
	return result, nil
}

func (s *Service) startSession(u *User) (*AuthResult, error) {
	token, claims, err := s.tokens.Issue(auth.Identity{
		ID:    u.ID.String(),
		Email: u.Email,
		Name:  u.DisplayName,
		Role:  u.Role,
	})
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Session: access.FromClaims(claims)}, nil
}

// CurrentSession returns the session attached to ctx by the auth middleware.
func (s *Service) CurrentSession(ctx context.Context) (*access.Session, bool) {
	return access.FromContext(ctx)
}

// EndSession revokes the session so its token is refused from now on.
func (s *Service) EndSession(ctx context.Context, session *access.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("no session to end")
	}
	s.revoker.Revoke(session.ID, session.ExpiresAt)
	s.log.Info().Str("user_id", session.UserID.String()).Str("session_id", session.ID).Msg("session ended")
	s.publish(ctx, EventLogout, &User{
		ID:          session.UserID,
		Email:       session.Email,
		DisplayName: session.Name,
		Role:        session.RoleName(),
	}, session.ID)
	return nil
}

// Subscribe registers fn for every identity event and returns a function
// that removes it. Subscribers run synchronously after the change is stored.
func (s *Service) Subscribe(fn func(context.Context, Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Service) publish(ctx context.Context, kind EventKind, u *User, sessionID string) {
	s.mu.RLock()
	subs := make([]func(context.Context, Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	ev := Event{
		Kind:      kind,
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.DisplayName,
		Role:      u.Role,
		SessionID: sessionID,
		At:        s.now(),
	}
	for _, fn := range subs {
		s.deliver(ctx, fn, ev)
	}
}

func (s *Service) deliver(ctx context.Context, fn func(context.Context, Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("event", string(ev.Kind)).Msg("identity subscriber panicked")
		}
	}()
	fn(ctx, ev)
}
