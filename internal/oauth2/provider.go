// Package oauth2 signs users in with an external identity provider. The
// login gate uses it as an alternative second factor: after the password
// step the browser is sent to the provider and the callback completes the
// login.
package oauth2

import (
	"github.com/google/uuid"
)

// Profile is the subset of provider account data the gate keeps.
type Profile struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// DisplayName falls back to the email when the provider returned no name.
func (p *Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

// NewState returns a random value for the state parameter.
func NewState() string {
	return uuid.NewString()
}
