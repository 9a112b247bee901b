package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by errors.Is for any store error of kind StoreNotFound.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates that the email or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailInUse is returned by SignUp for an address that already has an account.
	ErrEmailInUse = errors.New("email already in use")
)

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 6

// ValidationError reports bad or missing user input. It is detected locally
// and never reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Invalid returns a *ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StoreErrorKind classifies failures returned by the external store.
type StoreErrorKind int

const (
	StoreUnknown StoreErrorKind = iota
	StoreNetwork
	StorePermission
	StoreNotFound
)

func (k StoreErrorKind) String() string {
	switch k {
	case StoreNetwork:
		return "network"
	case StorePermission:
		return "permission"
	case StoreNotFound:
		return "not found"
	}
	return "unknown"
}

// StoreError wraps a failure from the external store.
type StoreError struct {
	Op   string
	Kind StoreErrorKind
	Err  error
}

// NewStoreError wraps err as a *StoreError.
func NewStoreError(op string, kind StoreErrorKind, err error) error {
	return &StoreError{Op: op, Kind: kind, Err: err}
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("store %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNotFound) true for not-found store errors.
func (e *StoreError) Is(target error) bool {
	return target == ErrNotFound && e.Kind == StoreNotFound
}

// SubscriptionError is a stream-level failure of a live query. Previously
// delivered data stays valid.
type SubscriptionError struct {
	Collection string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Collection, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// RoleMismatchError rejects a sign-in whose selected role differs from the
// role stored for the account.
type RoleMismatchError struct {
	Selected Role
	Stored   Role
}

func (e *RoleMismatchError) Error() string {
	return fmt.Sprintf("this is a %q account; select the %q role to sign in", e.Stored, e.Stored)
}
