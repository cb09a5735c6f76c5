package auth

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/dipgate/internal/config"
	"github.com/mrlokans/dipgate/internal/oauth2"
)

func newOAuthEnv(t *testing.T) *testEnv {
	return newTestEnv(t, envOptions{
		mode: config.VerifierOAuth,
		provider: &fakeProvider{profile: &oauth2.Profile{
			Subject: "google-123",
			Email:   "jane@gmail.com",
			Name:    "Jane Google",
		}},
	})
}

// startOAuth logs in and follows the redirect to the provider, returning
// the state value it was given.
func startOAuth(t *testing.T, b *browser) string {
	t.Helper()

	rr := b.login("admin", "admin")
	require.Equal(t, "/auth/google", location(rr))

	rr = b.get("/auth/google")
	require.Equal(t, http.StatusFound, rr.Code)

	u, err := url.Parse(location(rr))
	require.NoError(t, err)
	require.Equal(t, "idp.example.com", u.Host)

	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestOAuthFlow(t *testing.T) {
	env := newOAuthEnv(t)
	b := env.browser()

	state := startOAuth(t, b)
	assert.Equal(t, "/auth/google", location(b.get("/success")))

	rr := b.get("/auth/google/callback?" + url.Values{"state": {state}, "code": {"good-code"}}.Encode())
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/success", location(rr))

	body := jsonBody(t, b.get("/success"))
	assert.Equal(t, "Jane Google", body["Name"])
	assert.Equal(t, "jane@gmail.com", body["Email"])
}

func TestOAuthCallbackFailures(t *testing.T) {
	tests := []struct {
		name  string
		query func(state string) url.Values
	}{
		{"state mismatch", func(string) url.Values {
			return url.Values{"state": {"forged"}, "code": {"good-code"}}
		}},
		{"provider error", func(state string) url.Values {
			return url.Values{"state": {state}, "error": {"access_denied"}}
		}},
		{"bad code", func(state string) url.Values {
			return url.Values{"state": {state}, "code": {"bad-code"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newOAuthEnv(t)
			b := env.browser()
			state := startOAuth(t, b)

			rr := b.get("/auth/google/callback?" + tt.query(state).Encode())
			require.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, "/login?error=Google+sign-in+failed", location(rr))
			assert.Equal(t, "/auth/google", location(b.get("/success")), "still only past the password step")
		})
	}
}

func TestOAuthStateIsSingleUse(t *testing.T) {
	env := newOAuthEnv(t)
	b := env.browser()
	state := startOAuth(t, b)

	callback := "/auth/google/callback?" + url.Values{"state": {state}, "code": {"bad-code"}}.Encode()
	b.get(callback)

	rr := b.get("/auth/google/callback?" + url.Values{"state": {state}, "code": {"good-code"}}.Encode())
	assert.Equal(t, "/login?error=Google+sign-in+failed", location(rr))
}

func TestOAuthRoutesRequirePassword(t *testing.T) {
	env := newOAuthEnv(t)
	b := env.browser()

	assert.Equal(t, "/login", location(b.get("/auth/google")))
	assert.Equal(t, "/login", location(b.get("/auth/google/callback?state=x&code=good-code")))
	assert.Equal(t, http.StatusNotFound, b.get("/2fa").Code, "no code form in OAuth mode")
}
