// Package domain contains the core business entities and ports.
package domain

import (
	"context"
	"strings"
)

// Role is the fixed role chosen at sign-up.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// User is the profile document stored under users/{id}.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	FullName  string `json:"fullName,omitempty"`
	Specialty string `json:"specialty,omitempty"`
}

// DisplayName is the full name when set, else the email local part.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return EmailLocalPart(u.Email)
}

// DecodeUser maps a users document.
func DecodeUser(d Document) User {
	return User{
		ID:        d.ID,
		Email:     d.String("email"),
		Role:      Role(d.String("role")),
		FullName:  d.String("fullName"),
		Specialty: d.String("specialty"),
	}
}

// EmailLocalPart returns the text before the first "@".
func EmailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// Principal is an authenticated identity issued by the auth provider.
type Principal struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Authenticator is the port to the hosted authentication provider.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (Principal, error)
	SignIn(ctx context.Context, email, password string) (Principal, error)
	SignOut(ctx context.Context, p Principal) error
}
