package auth

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/dipgate/internal/config"
	"github.com/mrlokans/dipgate/internal/gate"
)

// Session data keys
const (
	SessionKeyState      = "auth_state"
	SessionKeyUserID     = "user_id"
	SessionKeyUserEmail  = "user_email"
	SessionKeyUserName   = "user_name"
	SessionKeyOperator   = "operator"
	SessionKeySetupDone  = "setup_completed"
	SessionKeyTOTPSecret = "totp_secret"
	SessionKeyOAuthState = "oauth_state"
	SessionKeyOAuthSub   = "oauth_subject"

	// Pending registration, set by signup until the authenticator is confirmed.
	SessionKeyTempUserID     = "temp_user_id"
	SessionKeyTempUserEmail  = "temp_user_email"
	SessionKeyTempTOTPSecret = "temp_totp_secret"

	// Recovery, set after an email and password re-check on /recover-2fa.
	SessionKeyRecoveryUserID = "recovery_user_id"
	SessionKeyRecoveryEmail  = "recovery_email"
	SessionKeyRecoverySecret = "recovery_secret"
)

// DefaultSessionLifetime applies when the configuration leaves it unset.
const DefaultSessionLifetime = 24 * time.Hour

// SessionManager wraps scs.SessionManager with the login gate's state.
type SessionManager struct {
	*scs.SessionManager
}

// NewSessionManager creates a configured session manager.
// The sqlDB parameter should be the underlying *sql.DB from GORM.
func NewSessionManager(sqlDB *sql.DB, cfg config.Auth) (*SessionManager, error) {
	// Create sessions table if it doesn't exist
	_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	if err != nil {
		return nil, err
	}

	return newSessionManager(sqlite3store.New(sqlDB), cfg), nil
}

func newSessionManager(store scs.Store, cfg config.Auth) *SessionManager {
	sm := scs.New()
	sm.Store = store

	sm.Lifetime = cfg.SessionLifetime
	if sm.Lifetime <= 0 {
		sm.Lifetime = DefaultSessionLifetime
	}

	sm.Cookie.Name = "session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	// Lax so the provider redirect back to the OAuth callback keeps the cookie
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	sm.Cookie.Persist = true

	return &SessionManager{SessionManager: sm}
}

// State reads the login progress of the request's session.
func (sm *SessionManager) State(r *http.Request) gate.State {
	return gate.Parse(sm.GetInt(r.Context(), SessionKeyState))
}

func (sm *SessionManager) putState(r *http.Request, s gate.State) {
	sm.Put(r.Context(), SessionKeyState, int(s))
}

// BeginFirstFactor records a successful password check. The token is renewed
// to prevent session fixation and any earlier progress is discarded.
func (sm *SessionManager) BeginFirstFactor(r *http.Request, id *Identity, boundSecret string) error {
	ctx := r.Context()
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}

	sm.Remove(ctx, SessionKeyOAuthState)
	sm.Remove(ctx, SessionKeyOAuthSub)

	sm.putState(r, sm.State(r).PassFirstFactor())
	sm.Put(ctx, SessionKeyUserID, int(id.UserID))
	sm.Put(ctx, SessionKeyUserEmail, id.Email)
	sm.Put(ctx, SessionKeyUserName, id.Name)
	sm.Put(ctx, SessionKeyOperator, id.Operator)
	sm.Put(ctx, SessionKeySetupDone, id.SetupCompleted)
	sm.Put(ctx, SessionKeyTOTPSecret, boundSecret)
	return nil
}

// CompleteSecondFactor moves a session from FirstFactorOK to
// FullyAuthenticated. The bound secret is dropped once it has served.
func (sm *SessionManager) CompleteSecondFactor(r *http.Request) error {
	next, err := sm.State(r).PassSecondFactor()
	if err != nil {
		return err
	}
	if err := sm.RenewToken(r.Context()); err != nil {
		return err
	}
	sm.putState(r, next)
	sm.Remove(r.Context(), SessionKeyTOTPSecret)
	return nil
}

// BoundSecret returns the TOTP secret chosen at the password step.
func (sm *SessionManager) BoundSecret(r *http.Request) string {
	return sm.GetString(r.Context(), SessionKeyTOTPSecret)
}

// Identity rebuilds the identity stored at the password step.
func (sm *SessionManager) Identity(r *http.Request) *Identity {
	ctx := r.Context()
	return &Identity{
		UserID:     uint(sm.GetInt(ctx, SessionKeyUserID)),
		Email:      sm.GetString(ctx, SessionKeyUserEmail),
		Name:       sm.GetString(ctx, SessionKeyUserName),
		Operator:   sm.GetBool(ctx, SessionKeyOperator),
		TOTPSecret: sm.BoundSecret(r),

		SetupCompleted: sm.GetBool(ctx, SessionKeySetupDone),
	}
}

// UpdateProfile overwrites the display fields, used when an identity
// provider returned a fresher name or email.
func (sm *SessionManager) UpdateProfile(r *http.Request, subject, email, name string) {
	ctx := r.Context()
	sm.Put(ctx, SessionKeyOAuthSub, subject)
	if email != "" {
		sm.Put(ctx, SessionKeyUserEmail, email)
	}
	if name != "" {
		sm.Put(ctx, SessionKeyUserName, name)
	}
}

// PutOAuthState remembers the state value sent to the identity provider.
func (sm *SessionManager) PutOAuthState(r *http.Request, state string) {
	sm.Put(r.Context(), SessionKeyOAuthState, state)
}

// PopOAuthState returns and forgets the remembered state value.
func (sm *SessionManager) PopOAuthState(r *http.Request) string {
	return sm.PopString(r.Context(), SessionKeyOAuthState)
}

// DestroySession removes all session data and invalidates the session.
func (sm *SessionManager) DestroySession(r *http.Request) error {
	return sm.Destroy(r.Context())
}

// Enrollment is an account waiting for its authenticator to be confirmed,
// either right after signup or during recovery.
type Enrollment struct {
	UserID   uint
	Email    string
	Secret   string
	Recovery bool
}

// PutPendingRegistration stores a freshly created, unconfirmed account.
func (sm *SessionManager) PutPendingRegistration(r *http.Request, e Enrollment) {
	ctx := r.Context()
	sm.Put(ctx, SessionKeyTempUserID, int(e.UserID))
	sm.Put(ctx, SessionKeyTempUserEmail, e.Email)
	sm.Put(ctx, SessionKeyTempTOTPSecret, e.Secret)
}

// PutRecovery stores an account whose owner re-proved their password.
func (sm *SessionManager) PutRecovery(r *http.Request, e Enrollment) {
	ctx := r.Context()
	sm.Put(ctx, SessionKeyRecoveryUserID, int(e.UserID))
	sm.Put(ctx, SessionKeyRecoveryEmail, e.Email)
	sm.Put(ctx, SessionKeyRecoverySecret, e.Secret)
}

// PendingEnrollment returns the enrollment in progress. A pending signup
// wins over a recovery.
func (sm *SessionManager) PendingEnrollment(r *http.Request) (Enrollment, bool) {
	ctx := r.Context()
	if id := sm.GetInt(ctx, SessionKeyTempUserID); id != 0 {
		return Enrollment{
			UserID: uint(id),
			Email:  sm.GetString(ctx, SessionKeyTempUserEmail),
			Secret: sm.GetString(ctx, SessionKeyTempTOTPSecret),
		}, true
	}
	if id := sm.GetInt(ctx, SessionKeyRecoveryUserID); id != 0 {
		return Enrollment{
			UserID:   uint(id),
			Email:    sm.GetString(ctx, SessionKeyRecoveryEmail),
			Secret:   sm.GetString(ctx, SessionKeyRecoverySecret),
			Recovery: true,
		}, true
	}
	return Enrollment{}, false
}

// ClearEnrollment forgets both pending signup and recovery data.
func (sm *SessionManager) ClearEnrollment(r *http.Request) {
	ctx := r.Context()
	for _, key := range []string{
		SessionKeyTempUserID, SessionKeyTempUserEmail, SessionKeyTempTOTPSecret,
		SessionKeyRecoveryUserID, SessionKeyRecoveryEmail, SessionKeyRecoverySecret,
	} {
		sm.Remove(ctx, key)
	}
}

// Save commits the session now instead of when the response is written, so
// a store failure can still change the response. It returns an error
// wrapping ErrSessionPersistence.
func (sm *SessionManager) Save(c *gin.Context) error {
	written, err := sm.writeCookie(c.Request.Context(), c.Writer)
	if err != nil {
		return sessionError(err)
	}
	if written {
		markCommitted(c)
	}
	return nil
}

// Discard keeps the pending changes of this request from being committed.
func (sm *SessionManager) Discard(c *gin.Context) {
	markCommitted(c)
}

// writeCookie commits a modified session or expires the cookie of a
// destroyed one. It reports whether a cookie was set.
func (sm *SessionManager) writeCookie(ctx context.Context, w http.ResponseWriter) (bool, error) {
	switch sm.Status(ctx) {
	case scs.Modified:
		token, expiry, err := sm.Commit(ctx)
		if err != nil {
			return false, err
		}
		sm.WriteSessionCookie(ctx, w, token, expiry)
	case scs.Destroyed:
		sm.WriteSessionCookie(ctx, w, "", time.Time{})
	default:
		return false, nil
	}
	return true, nil
}

func markCommitted(c *gin.Context) {
	if w, ok := c.Writer.(*sessionWriter); ok {
		w.committed = true
	}
}
