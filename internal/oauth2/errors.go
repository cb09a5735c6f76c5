package oauth2

import "errors"

var (
	ErrStateMismatch     = errors.New("oauth state mismatch")
	ErrMissingCode       = errors.New("authorization code missing")
	ErrProfileIncomplete = errors.New("provider profile has no subject")
)
