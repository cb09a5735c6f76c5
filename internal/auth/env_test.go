package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/dipgate/internal/audit"
	"github.com/mrlokans/dipgate/internal/config"
	"github.com/mrlokans/dipgate/internal/database"
	auditrepo "github.com/mrlokans/dipgate/internal/database/audit"
	"github.com/mrlokans/dipgate/internal/database/users"
	"github.com/mrlokans/dipgate/internal/metrics"
	"github.com/mrlokans/dipgate/internal/oauth2"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 15, 0, time.UTC)

type testEnv struct {
	t        *testing.T
	router   *gin.Engine
	sessions *SessionManager
	users    *users.Repository
	totp     *TOTP
	audit    *audit.Service
	metrics  *metrics.Metrics
}

type envOptions struct {
	mode         config.VerifierMode
	requireSetup bool
	store        scs.Store
	provider     IdentityProvider
	withAudit    bool
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewQuietDatabase(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	authCfg := config.Auth{SessionLifetime: 24 * time.Hour}

	var sessions *SessionManager
	if opts.store != nil {
		sessions = newSessionManager(opts.store, authCfg)
	} else {
		sqlDB, err := db.DB.DB()
		require.NoError(t, err)
		sessions, err = NewSessionManager(sqlDB, authCfg)
		require.NoError(t, err)
	}

	tp := newTestTOTP(testNow)
	repo := users.NewRepository(db.DB, nil)

	operator := OperatorCredentials{
		Username:   "admin",
		Password:   "admin",
		Email:      "admin@dipbot.com",
		Name:       "Admin",
		TOTPSecret: testSecret,
	}

	var second SecondFactor
	switch opts.mode {
	case config.VerifierSharedTOTP:
		second = NewSharedSecretVerifier(tp, testSecret)
	case config.VerifierOAuth:
		second = NewOAuthVerifier(opts.provider)
	default:
		second = NewPerUserVerifier(tp, testSecret)
	}

	env := &testEnv{t: t, sessions: sessions, users: repo, totp: tp, metrics: metrics.New()}
	if opts.withAudit {
		env.audit = audit.NewService(auditrepo.NewRepository(db.DB))
		t.Cleanup(env.audit.Wait)
	}

	controller := NewAuthController(ControllerConfig{
		Credentials:  ChainCredentials{operator, NewUserCredentials(repo, opts.requireSetup).WithHashCost(4)},
		SecondFactor: second,
		Sessions:     sessions,
		Users:        repo,
		Registrar:    NewRegistrar(repo, tp, 4),
		TOTP:         tp,
		Operator:     operator,
		Audit:        env.audit,
		Metrics:      env.metrics,
	})

	router := gin.New()
	router.Use(sessions.SessionLoadSave())
	controller.RegisterRoutes(router)
	env.router = router

	return env
}

func (e *testEnv) code(secret string) string {
	e.t.Helper()
	code, err := e.totp.GenerateCode(secret, testNow)
	require.NoError(e.t, err)
	return code
}

// browser replays cookies between requests the way a real client would.
type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (e *testEnv) browser() *browser {
	return &browser{t: e.t, handler: e.router, cookies: map[string]*http.Cookie{}}
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(c)
	}

	rr := httptest.NewRecorder()
	b.handler.ServeHTTP(rr, req)

	for _, c := range rr.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rr
}

func (b *browser) sessionToken() string {
	if c, ok := b.cookies["session"]; ok {
		return c.Value
	}
	return ""
}

func (b *browser) login(username, password string) *httptest.ResponseRecorder {
	return b.post("/login", url.Values{"username": {username}, "password": {password}})
}

func location(rr *httptest.ResponseRecorder) string {
	return rr.Header().Get("Location")
}

func jsonBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

// failingStore loads nothing and refuses every write.
type failingStore struct{}

func (failingStore) Find(string) ([]byte, bool, error)      { return nil, false, nil }
func (failingStore) Commit(string, []byte, time.Time) error { return errors.New("disk full") }
func (failingStore) Delete(string) error                    { return nil }

// fakeProvider stands in for Google.
type fakeProvider struct {
	profile *oauth2.Profile
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.example.com/auth?" + url.Values{"state": {state}}.Encode()
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth2.Profile, error) {
	if code != "good-code" {
		return nil, errors.New("invalid_grant")
	}
	return p.profile, nil
}
