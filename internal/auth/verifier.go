package auth

import (
	"context"

	"github.com/mrlokans/dipgate/internal/config"
	"github.com/mrlokans/dipgate/internal/gate"
	"github.com/mrlokans/dipgate/internal/oauth2"
)

// SecondFactor is the step that follows a successful password check.
type SecondFactor interface {
	Mode() config.VerifierMode
	// EntryPath is where a session in FirstFactorOK is sent.
	EntryPath() string
}

// CodeVerifier is a second factor checked by submitting a one-time code.
type CodeVerifier interface {
	SecondFactor
	// SecretFor picks the secret a login is bound to.
	SecretFor(id *Identity) string
	Verify(secret, code string) (bool, error)
}

// TOTPVerifier checks six digit codes, either against one shared operator
// secret or against the secret of the account that logged in.
type TOTPVerifier struct {
	totp   *TOTP
	mode   config.VerifierMode
	shared string
}

// NewSharedSecretVerifier binds every login to the operator secret.
func NewSharedSecretVerifier(t *TOTP, secret string) *TOTPVerifier {
	return &TOTPVerifier{totp: t, mode: config.VerifierSharedTOTP, shared: secret}
}

// NewPerUserVerifier binds each login to the account's own secret. Accounts
// without one, such as the operator, fall back to the shared secret.
func NewPerUserVerifier(t *TOTP, fallback string) *TOTPVerifier {
	return &TOTPVerifier{totp: t, mode: config.VerifierPerUserTOTP, shared: fallback}
}

func (v *TOTPVerifier) Mode() config.VerifierMode { return v.mode }

func (v *TOTPVerifier) EntryPath() string { return gate.DefaultRoutes.SecondFactor }

func (v *TOTPVerifier) SecretFor(id *Identity) string {
	if v.mode == config.VerifierPerUserTOTP && id != nil && id.TOTPSecret != "" {
		return id.TOTPSecret
	}
	return v.shared
}

func (v *TOTPVerifier) Verify(secret, code string) (bool, error) {
	return v.totp.Validate(secret, code)
}

// IdentityProvider is an external sign-in used as the second factor.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Profile, error)
}

// OAuthVerifier delegates the second factor to an identity provider.
type OAuthVerifier struct {
	Provider IdentityProvider
}

// OAuthEntryPath starts the provider redirect.
const OAuthEntryPath = "/auth/google"

// OAuthCallbackPath receives the provider's answer.
const OAuthCallbackPath = "/auth/google/callback"

func NewOAuthVerifier(p IdentityProvider) *OAuthVerifier {
	return &OAuthVerifier{Provider: p}
}

func (v *OAuthVerifier) Mode() config.VerifierMode { return config.VerifierOAuth }

func (v *OAuthVerifier) EntryPath() string { return OAuthEntryPath }
