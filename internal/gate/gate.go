// Package gate holds the login progress state machine.
//
// A session moves through three states:
//
//	Anonymous --password--> FirstFactorOK --code--> FullyAuthenticated
//
// Logout returns any state to Anonymous. The package performs no I/O: callers
// read the state out of their session store, ask the Gate what to do with a
// request, and write back whatever state a transition returns.
package gate

import "errors"

// ErrFirstFactorRequired is returned when a second factor is presented before
// the password step has succeeded in the same session.
var ErrFirstFactorRequired = errors.New("first factor required")

// State is the authentication progress of a single session.
type State int

const (
	Anonymous State = iota
	FirstFactorOK
	FullyAuthenticated
)

func (s State) String() string {
	switch s {
	case FirstFactorOK:
		return "first_factor_ok"
	case FullyAuthenticated:
		return "fully_authenticated"
	default:
		return "anonymous"
	}
}

// StateFromFlags maps the legacy pair of session booleans onto a State.
// A second-factor flag without the first-factor flag is not a reachable
// combination and collapses to Anonymous.
func StateFromFlags(basicAuthPassed, twoFactorPassed bool) State {
	switch {
	case !basicAuthPassed:
		return Anonymous
	case twoFactorPassed:
		return FullyAuthenticated
	default:
		return FirstFactorOK
	}
}

// Parse converts a stored integer back into a State. Unknown values are
// treated as Anonymous.
func Parse(v int) State {
	s := State(v)
	if s < Anonymous || s > FullyAuthenticated {
		return Anonymous
	}
	return s
}

// BasicAuthPassed reports whether the password step has succeeded.
func (s State) BasicAuthPassed() bool {
	return s == FirstFactorOK || s == FullyAuthenticated
}

// TwoFactorPassed reports whether the second factor has succeeded.
func (s State) TwoFactorPassed() bool {
	return s == FullyAuthenticated
}

// PassFirstFactor records a successful password check. Fresh credentials
// always restart the second factor, even from FullyAuthenticated, since they
// may belong to a different account.
func (s State) PassFirstFactor() State {
	return FirstFactorOK
}

// PassSecondFactor records a successful code check.
func (s State) PassSecondFactor() (State, error) {
	if !s.BasicAuthPassed() {
		return s, ErrFirstFactorRequired
	}
	return FullyAuthenticated, nil
}

// Logout drops all progress.
func (s State) Logout() State {
	return Anonymous
}

// RequireBasicAuth is the guard for second-factor pages.
func RequireBasicAuth(s State) bool {
	return s.BasicAuthPassed()
}

// RequireFullAuth is the guard for the protected resource.
func RequireFullAuth(s State) bool {
	return s.BasicAuthPassed() && s.TwoFactorPassed()
}
