package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials covers both an unknown account and a wrong
	// password so that callers cannot tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidCode is returned for a wrong or expired one-time code.
	ErrInvalidCode = errors.New("invalid authentication code")
	// ErrSessionPersistence is returned when the session store refuses a write.
	ErrSessionPersistence = errors.New("session persistence failed")
	// ErrDuplicateAccount is returned when an email is already registered.
	ErrDuplicateAccount = errors.New("email already registered")
	// ErrSetupIncomplete is returned by the credential store when an account
	// never confirmed its authenticator and confirmation is enforced.
	ErrSetupIncomplete = errors.New("authenticator setup not completed")
	// ErrValidation is the parent of every ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports a rejected form field with a message suitable for
// showing to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func sessionError(err error) error {
	return fmt.Errorf("%w: %v", ErrSessionPersistence, err)
}
