package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/dipgate/internal/config"
	"github.com/mrlokans/dipgate/internal/entities"
)

func TestAnonymousRedirects(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	b := env.browser()

	for _, path := range []string{"/", "/success", "/2fa", "/setup-2fa"} {
		rr := b.get(path)
		assert.Equal(t, http.StatusFound, rr.Code, path)
		assert.Equal(t, "/login", location(rr), path)
	}

	rr := b.post("/2fa", url.Values{"token": {"123456"}})
	assert.Equal(t, "/login", location(rr), "codes are refused before the password step")

	rr = b.get("/login")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestOperatorLoginFlow(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	b := env.browser()

	rr := b.login("admin", "admin")
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/2fa", location(rr))
	require.NotEmpty(t, b.sessionToken())

	// Half way through: everything points at the code form
	assert.Equal(t, "/2fa", location(b.get("/success")))
	assert.Equal(t, "/2fa", location(b.get("/login")))
	assert.Equal(t, http.StatusOK, b.get("/2fa").Code)

	rr = b.post("/2fa", url.Values{"token": {env.code(testSecret)}})
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/success", location(rr))

	rr = b.get("/success")
	require.Equal(t, http.StatusOK, rr.Code)
	body := jsonBody(t, rr)
	assert.Equal(t, "Admin", body["Name"])
	assert.Equal(t, "admin@dipbot.com", body["Email"])

	assert.Equal(t, "/success", location(b.get("/login")))
	assert.Equal(t, "/success", location(b.get("/2fa")))
	assert.Equal(t, "/success", location(b.get("/")))

	assert.Contains(t, scrape(t, env), `dipgate_auth_attempts_total{outcome="success",step="password"} 1`)
	assert.Contains(t, scrape(t, env), `dipgate_auth_attempts_total{outcome="success",step="totp"} 1`)
}

func TestWrongCodeKeepsFirstFactor(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	b := env.browser()

	b.login("admin", "admin")

	rr := b.post("/2fa", url.Values{"token": {"000000"}})
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/2fa?error=Invalid+authentication+code", location(rr))

	assert.Equal(t, "/2fa", location(b.get("/success")))

	rr = b.post("/2fa", url.Values{"token": {env.code(testSecret)}})
	assert.Equal(t, "/success", location(rr))
}

func TestInvalidCredentials(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin", "wrong"},
		{"unknown user", "nobody@example.com", "whatever1"},
		{"empty fields", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := env.browser()
			rr := b.login(tt.username, tt.password)
			require.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, "/login?error=Invalid+credentials", location(rr))
			assert.Equal(t, "/login", location(b.get("/success")))
		})
	}
}

func TestLoginRenewsSessionToken(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	b := env.browser()

	b.login("admin", "admin")
	first := b.sessionToken()
	require.NotEmpty(t, first)

	b.login("admin", "admin")
	assert.NotEqual(t, first, b.sessionToken())
}

func TestReloginRestartsSecondFactor(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	b := env.browser()

	b.login("admin", "admin")
	b.post("/2fa", url.Values{"token": {env.code(testSecret)}})
	require.Equal(t, http.StatusOK, b.get("/success").Code)

	rr := b.login("admin", "admin")
	assert.Equal(t, "/2fa", location(rr))
	assert.Equal(t, "/2fa", location(b.get("/success")))
}

func TestLogout(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			env := newTestEnv(t, envOptions{})
			b := env.browser()

			b.login("admin", "admin")
			b.post("/2fa", url.Values{"token": {env.code(testSecret)}})
			require.Equal(t, http.StatusOK, b.get("/success").Code)

			var rr *httptest.ResponseRecorder
			if method == http.MethodPost {
				rr = b.post("/logout", url.Values{})
			} else {
				rr = b.get("/logout")
			}
			assert.Equal(t, "/", location(rr))
			assert.Equal(t, "/login", location(b.get("/success")))
		})
	}
}

func TestSessionPersistenceFailure(t *testing.T) {
	env := newTestEnv(t, envOptions{store: failingStore{}})
	b := env.browser()

	rr := b.login("admin", "admin")
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?error=Session+error", location(rr))
	assert.Empty(t, b.sessionToken())
}

func TestOperatorSetupPage(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	b := env.browser()

	b.login("admin", "admin")
	rr := b.get("/setup-2fa")
	require.Equal(t, http.StatusOK, rr.Code)

	body := jsonBody(t, rr)
	assert.Equal(t, testSecret, body["Secret"])
	assert.True(t, strings.HasPrefix(body["QRCode"].(string), "data:image/png;base64,"))
}

func TestAuditTrail(t *testing.T) {
	env := newTestEnv(t, envOptions{withAudit: true})
	b := env.browser()

	b.login("admin", "wrong")
	b.login("admin", "admin")
	b.post("/2fa", url.Values{"token": {env.code(testSecret)}})
	env.audit.Wait()

	events, total, err := env.audit.GetEvents(0, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	var failed, succeeded int
	for _, e := range events {
		if e.Status == entities.AuditStatusFailed {
			failed++
			assert.Equal(t, "admin", e.Subject)
			assert.Equal(t, entities.AuditActionLogin, e.Action)
		} else {
			succeeded++
			assert.Equal(t, "admin@dipbot.com", e.Subject)
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, succeeded)
}

func TestSharedSecretMode(t *testing.T) {
	env := newTestEnv(t, envOptions{mode: config.VerifierSharedTOTP})
	user := registerConfirmedUser(t, env, "jane@example.com")
	b := env.browser()

	require.Equal(t, "/2fa", location(b.login("jane@example.com", "password123")))

	rr := b.post("/2fa", url.Values{"token": {env.code(user.TOTPSecret)}})
	assert.Equal(t, "/2fa?error=Invalid+authentication+code", location(rr), "the user's own secret is not bound")

	rr = b.post("/2fa", url.Values{"token": {env.code(testSecret)}})
	assert.Equal(t, "/success", location(rr))
}

func scrape(t *testing.T, env *testEnv) string {
	t.Helper()
	rr := httptest.NewRecorder()
	env.metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return string(body)
}
