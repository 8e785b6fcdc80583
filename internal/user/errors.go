package user

import (
	"errors"
	"fmt"
)

// Error kinds returned by the services. Callers branch with errors.Is; the
// handler maps each kind to one HTTP status.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("already exists")
	ErrNotFound     = errors.New("user not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidOTP   = fmt.Errorf("%w: invalid or expired otp", ErrUnauthorized)
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrInternal     = errors.New("internal error")
)

func internalErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
