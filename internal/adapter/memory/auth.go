package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"hypertension/internal/domain"
)

type account struct {
	uid  string
	hash []byte
}

// Authenticator keeps email/password accounts in memory.
type Authenticator struct {
	mu       sync.Mutex
	accounts map[string]account
	cost     int
}

// NewAuthenticator creates an empty account registry. cost is the bcrypt
// cost; zero selects bcrypt.DefaultCost.
func NewAuthenticator(cost int) *Authenticator {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Authenticator{accounts: make(map[string]account), cost: cost}
}

var _ domain.Authenticator = (*Authenticator)(nil)

// SignUp creates an account and returns its principal.
func (a *Authenticator) SignUp(ctx context.Context, email, password string) (domain.Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < domain.MinPasswordLength {
		return domain.Principal{}, domain.Invalid("password", "must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return domain.Principal{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.accounts[email]; ok {
		return domain.Principal{}, domain.ErrEmailInUse
	}
	acct := account{uid: uuid.NewString(), hash: hash}
	a.accounts[email] = acct
	return domain.Principal{UID: acct.uid, Email: email}, nil
}

// SignIn checks the password for email.
func (a *Authenticator) SignIn(ctx context.Context, email, password string) (domain.Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	a.mu.Lock()
	acct, ok := a.accounts[email]
	a.mu.Unlock()
	if !ok {
		return domain.Principal{}, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return domain.Principal{}, domain.ErrInvalidCredentials
	}
	return domain.Principal{UID: acct.uid, Email: email}, nil
}

// SignOut is a no-op; sessions are tracked by the SessionRepo.
func (a *Authenticator) SignOut(ctx context.Context, p domain.Principal) error {
	return nil
}

// SessionRepo implements session persistence.
type SessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

// NewSessionRepo creates a new session repository.
func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: make(map[string]domain.Session)}
}

var _ domain.SessionRepository = (*SessionRepo)(nil)

// Create stores a new session.
func (r *SessionRepo) Create(ctx context.Context, s domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	r.sessions[s.Token] = s
	return nil
}

// GetByToken retrieves a live session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return nil, nil
	}
	if time.Now().After(s.ExpiresAt) {
		delete(r.sessions, token)
		return nil, nil
	}
	return &s, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for k, v := range r.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.sessions, k)
		}
	}
	return nil
}
