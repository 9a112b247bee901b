package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"hypertension/internal/domain"
)

// Authenticator implements domain.Authenticator against the accounts table.
type Authenticator struct {
	db *DB
}

// NewAuthenticator wraps a DB as an Authenticator.
func NewAuthenticator(db *DB) *Authenticator {
	return &Authenticator{db: db}
}

var _ domain.Authenticator = (*Authenticator)(nil)

// SignUp creates an account.
func (a *Authenticator) SignUp(ctx context.Context, email, password string) (domain.Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < domain.MinPasswordLength {
		return domain.Principal{}, domain.Invalid("password", "must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Principal{}, err
	}

	p := domain.Principal{UID: uuid.NewString(), Email: email}
	_, err = a.db.sql.ExecContext(ctx,
		"INSERT INTO accounts (uid, email, password_hash, created_at) VALUES ($1, $2, $3, $4)",
		p.UID, p.Email, string(hash), time.Now(),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return domain.Principal{}, domain.ErrEmailInUse
	}
	if err != nil {
		return domain.Principal{}, storeError("sign up", err)
	}
	return p, nil
}

// SignIn checks the password for email.
func (a *Authenticator) SignIn(ctx context.Context, email, password string) (domain.Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var (
		p    = domain.Principal{Email: email}
		hash string
	)
	err := a.db.sql.QueryRowContext(ctx,
		"SELECT uid, password_hash FROM accounts WHERE email = $1",
		email,
	).Scan(&p.UID, &hash)
	if err == sql.ErrNoRows {
		return domain.Principal{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.Principal{}, storeError("sign in", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return domain.Principal{}, domain.ErrInvalidCredentials
	}
	return p, nil
}

// SignOut is a no-op; sessions are revoked through the SessionRepo.
func (a *Authenticator) SignOut(ctx context.Context, p domain.Principal) error {
	return nil
}

// SessionRepo implements session repository operations on DB.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo wraps a DB as a SessionRepository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

var _ domain.SessionRepository = (*SessionRepo)(nil)

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, s domain.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	_, err := r.db.sql.ExecContext(ctx,
		"INSERT INTO sessions (token, uid, email, role, expires_at, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		s.Token, s.UID, s.Email, string(s.Role), s.ExpiresAt, s.CreatedAt,
	)
	return storeError("create session", err)
}

// GetByToken retrieves a live session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var (
		s    domain.Session
		role string
	)
	err := r.db.sql.QueryRowContext(ctx,
		"SELECT token, uid, email, role, expires_at, created_at FROM sessions WHERE token = $1 AND expires_at > now()",
		token,
	).Scan(&s.Token, &s.UID, &s.Email, &role, &s.ExpiresAt, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("get session", err)
	}
	s.Role = domain.Role(role)
	return &s, nil
}

// Delete deletes a session by token.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE token = $1", token)
	return storeError("delete session", err)
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < $1", time.Now())
	return storeError("delete expired sessions", err)
}
