package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"hypertension/internal/domain"
	"hypertension/internal/mutate"
)

// Landing names the screen a signed-in user starts on.
type Landing string

const (
	LandingHome      Landing = "home"
	LandingDashboard Landing = "dashboard"
)

// LandingFor returns the start screen for role.
func LandingFor(r domain.Role) Landing {
	if r == domain.RoleDoctor {
		return LandingDashboard
	}
	return LandingHome
}

const sessionTTL = 24 * time.Hour

// AuthService handles sign-up, sign-in and session management.
type AuthService struct {
	auth     domain.Authenticator
	store    domain.DocumentStore
	sessions domain.SessionRepository
	log      zerolog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(auth domain.Authenticator, store domain.DocumentStore, sessions domain.SessionRepository, log zerolog.Logger) *AuthService {
	return &AuthService{auth: auth, store: store, sessions: sessions, log: log}
}

// SignUp registers an account with a fixed role and signs it in.
func (s *AuthService) SignUp(ctx context.Context, email, password string, role domain.Role) (*domain.Session, Landing, error) {
	email, err := mutate.Required("email", email)
	if err != nil {
		return nil, "", err
	}
	if password == "" {
		return nil, "", domain.Invalid("password", "is required")
	}
	if !role.Valid() {
		return nil, "", domain.Invalid("role", "must be patient or doctor")
	}

	p, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		return nil, "", err
	}
	profile := map[string]any{"email": p.Email, "role": string(role)}
	if err := s.store.Upsert(ctx, domain.CollectionUsers, p.UID, profile, false); err != nil {
		return nil, "", err
	}

	sess, err := s.startSession(ctx, p, role)
	if err != nil {
		return nil, "", err
	}
	s.log.Info().Str("uid", p.UID).Str("role", string(role)).Msg("signed up")
	return sess, LandingFor(role), nil
}

// SignIn authenticates and checks the selected role against the stored one.
// A mismatch signs the principal out again and returns a
// *domain.RoleMismatchError. An account without a profile lands on the
// patient home screen.
func (s *AuthService) SignIn(ctx context.Context, email, password string, selected domain.Role) (*domain.Session, Landing, error) {
	email, err := mutate.Required("email", email)
	if err != nil {
		return nil, "", err
	}
	if password == "" {
		return nil, "", domain.Invalid("password", "is required")
	}
	if !selected.Valid() {
		return nil, "", domain.Invalid("role", "must be patient or doctor")
	}

	p, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, "", err
	}

	role := domain.RolePatient
	doc, err := s.store.Get(ctx, domain.CollectionUsers, p.UID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.log.Warn().Str("uid", p.UID).Msg("no profile for account; using patient role")
	case err != nil:
		return nil, "", err
	default:
		stored := domain.DecodeUser(doc).Role
		if stored != selected {
			_ = s.auth.SignOut(ctx, p)
			return nil, "", &domain.RoleMismatchError{Selected: selected, Stored: stored}
		}
		role = stored
	}

	sess, err := s.startSession(ctx, p, role)
	if err != nil {
		return nil, "", err
	}
	s.log.Info().Str("uid", p.UID).Str("role", string(role)).Msg("signed in")
	return sess, LandingFor(role), nil
}

// SignOut ends the session identified by token.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	sess, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return err
	}
	if sess != nil {
		return s.auth.SignOut(ctx, sess.Principal())
	}
	return nil
}

// Authenticate resolves a session token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	sess, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil || time.Now().After(sess.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// PurgeExpired removes expired sessions.
func (s *AuthService) PurgeExpired(ctx context.Context) error {
	return s.sessions.DeleteExpired(ctx)
}

func (s *AuthService) startSession(ctx context.Context, p domain.Principal, role domain.Role) (*domain.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	sess := domain.Session{
		Token:     token,
		UID:       p.UID,
		Email:     p.Email,
		Role:      role,
		ExpiresAt: now.Add(sessionTTL),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
