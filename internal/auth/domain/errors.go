package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for malformed arguments, such as a payload
	// missing its subject or token id.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a code, link or family is absent. Never
	// issued, already consumed and expired all look the same.
	ErrNotFound = errors.New("not found")

	// ErrRefreshReuseDetected is returned when a superseded refresh token is
	// presented. The family has been revoked by the time callers see it.
	ErrRefreshReuseDetected = errors.New("refresh token reuse detected")

	// ErrInvalidToken is returned when a token fails signature or expiry
	// checks, or is the wrong kind for the operation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenRevoked is returned for blacklisted tokens and for refresh tokens
	// whose family no longer exists.
	ErrTokenRevoked = errors.New("token revoked")
)

// InvalidInputError names the offending field.
func InvalidInputError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidInput, field, reason)
}

// StaleRotationError reports a rotation that presented a token id other than
// the family's current one. The family record is already deleted.
type StaleRotationError struct {
	UserID   string
	FamilyID string

	// CurrentTokenID is the id the family pointed at before deletion.
	CurrentTokenID string
}

func (e *StaleRotationError) Error() string {
	return fmt.Sprintf("refresh family %s/%s: stale token presented", e.UserID, e.FamilyID)
}

func (e *StaleRotationError) Unwrap() error {
	return ErrRefreshReuseDetected
}
