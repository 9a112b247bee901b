package domain

import (
	"context"
	"time"
)

// Session is a signed-in principal together with the role it signed in as.
// It is passed explicitly to every operation that acts on behalf of a user.
type Session struct {
	Token     string    `json:"-"`
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Principal returns the identity the session was issued for.
func (s Session) Principal() Principal {
	return Principal{UID: s.UID, Email: s.Email}
}

// IsDoctor reports whether the session acts with the doctor role.
func (s Session) IsDoctor() bool { return s.Role == RoleDoctor }

// SessionRepository defines the port for session persistence operations.
// GetByToken returns nil and no error for an unknown token.
type SessionRepository interface {
	Create(ctx context.Context, s Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
}
