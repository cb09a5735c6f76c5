package auth

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/dipgate/internal/audit"
	"github.com/mrlokans/dipgate/internal/entities"
	"github.com/mrlokans/dipgate/internal/gate"
	"github.com/mrlokans/dipgate/internal/metrics"
)

// User-facing messages.
const (
	msgInvalidCredentials = "Invalid credentials"
	msgSessionError       = "Session error"
	msgInvalidCode        = "Invalid authentication code"
	msgSetupIncomplete    = "Please finish setting up your authenticator first"
	msgAccountCreated     = "Account created successfully. Please login."
	msgAuthenticatorReset = "Authenticator confirmed. Please login."
	msgEnrollmentRetry    = "Invalid code. Please try again."
	msgRecoveryFailed     = "Invalid email or password"
	msgEmailTaken         = "Email already registered"
	msgSignupFailed       = "Failed to create account. Please try again."
	msgQRCodeFailed       = "Error generating QR code"
	msgOAuthFailed        = "Google sign-in failed"
)

// ControllerConfig wires the login gate's collaborators together.
type ControllerConfig struct {
	Credentials  CredentialStore
	SecondFactor SecondFactor
	Sessions     *SessionManager

	// Users and Registrar enable signup, enrollment and recovery.
	Users     UserStore
	Registrar *Registrar
	TOTP      *TOTP

	// Operator is shown the shared secret on /setup-2fa.
	Operator OperatorCredentials

	Templates *template.Template
	Audit     *audit.Service
	Metrics   *metrics.Metrics
}

// AuthController handles the login gate's HTTP endpoints.
type AuthController struct {
	credentials  CredentialStore
	secondFactor SecondFactor
	sessions     *SessionManager
	guard        *Guard
	users        UserStore
	registrar    *Registrar
	totp         *TOTP
	operator     OperatorCredentials
	templates    *template.Template
	audit        *audit.Service
	metrics      *metrics.Metrics
}

// NewAuthController creates the controller. The gate's second factor route
// follows the configured verifier.
func NewAuthController(cfg ControllerConfig) *AuthController {
	g := gate.New(gate.Routes{SecondFactor: cfg.SecondFactor.EntryPath()})

	registrar := cfg.Registrar
	if registrar == nil && cfg.Users != nil && cfg.TOTP != nil {
		registrar = NewRegistrar(cfg.Users, cfg.TOTP, 0)
	}

	return &AuthController{
		credentials:  cfg.Credentials,
		secondFactor: cfg.SecondFactor,
		sessions:     cfg.Sessions,
		guard:        NewGuard(cfg.Sessions, g),
		users:        cfg.Users,
		registrar:    registrar,
		totp:         cfg.TOTP,
		operator:     cfg.Operator,
		templates:    cfg.Templates,
		audit:        cfg.Audit,
		metrics:      cfg.Metrics,
	}
}

// Guard exposes the controller's guards for routes registered elsewhere.
func (ac *AuthController) Guard() *Guard {
	return ac.guard
}

// RegisterRoutes registers the gate's routes on the router.
func (ac *AuthController) RegisterRoutes(router gin.IRouter) {
	router.GET("/", ac.Root)
	router.GET("/login", ac.guard.Page(gate.PageLogin), ac.LoginPage)
	router.POST("/login", ac.Login)
	router.GET("/logout", ac.Logout)
	router.POST("/logout", ac.Logout)
	router.GET("/success", ac.guard.RequireFullAuth(), ac.Dashboard)

	switch ac.secondFactor.(type) {
	case CodeVerifier:
		router.GET("/2fa", ac.guard.RequireBasicAuth(), ac.guard.Page(gate.PageSecondFactor), ac.SecondFactorPage)
		router.POST("/2fa", ac.guard.RequireBasicAuth(), ac.VerifySecondFactor)
	case *OAuthVerifier:
		router.GET(OAuthEntryPath, ac.guard.RequireBasicAuth(), ac.guard.Page(gate.PageSecondFactor), ac.OAuthStart)
		router.GET(OAuthCallbackPath, ac.guard.RequireBasicAuth(), ac.OAuthCallback)
	}

	if ac.totp != nil && ac.operator.TOTPSecret != "" {
		router.GET("/setup-2fa", ac.guard.RequireBasicAuth(), ac.OperatorSetupPage)
	}

	if ac.registrar != nil {
		router.GET("/signup", ac.guard.Page(gate.PageSignup), ac.SignupPage)
		router.POST("/signup", ac.guard.Page(gate.PageSignup), ac.Signup)
		router.GET("/setup-user-2fa", ac.EnrollmentPage)
		router.POST("/verify-user-2fa", ac.VerifyEnrollment)
		router.GET("/recover-2fa", ac.RecoverPage)
		router.POST("/recover-2fa", ac.Recover)
	}
}

// Root forwards to the login page or the dashboard.
func (ac *AuthController) Root(c *gin.Context) {
	d := ac.guard.Gate().Decide(ac.guard.State(c), gate.PageRoot)
	c.Redirect(http.StatusFound, d.Redirect)
}

// LoginPage renders the login form.
func (ac *AuthController) LoginPage(c *gin.Context) {
	ac.renderTemplate(c, http.StatusOK, "login.html", gin.H{
		"Title":         "Login",
		"CSRFToken":     GetCSRFToken(c),
		"Error":         c.Query("error"),
		"Message":       c.Query("message"),
		"SignupEnabled": ac.registrar != nil,
	})
}

// Login handles the password step.
func (ac *AuthController) Login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")

	id, err := ac.credentials.Verify(c.Request.Context(), username, password)
	if err != nil {
		msg := msgInvalidCredentials
		outcome := metrics.OutcomeFailure
		switch {
		case errors.Is(err, ErrSetupIncomplete):
			msg = msgSetupIncomplete
		case !errors.Is(err, ErrInvalidCredentials):
			log.Printf("Login failed for %q: %v", username, err)
			outcome = metrics.OutcomeError
		}
		ac.record(c, metrics.StepPassword, outcome, 0, username, entities.AuditActionLogin, err.Error())
		redirectWith(c, "/login", "error", msg)
		return
	}

	var bound string
	if cv, ok := ac.secondFactor.(CodeVerifier); ok {
		bound = cv.SecretFor(id)
	}

	if err := ac.sessions.BeginFirstFactor(c.Request, id, bound); err != nil {
		ac.sessionFailure(c, metrics.StepPassword, "/login", err)
		return
	}
	if err := ac.sessions.Save(c); err != nil {
		ac.sessionFailure(c, metrics.StepPassword, "/login", err)
		return
	}

	ac.record(c, metrics.StepPassword, metrics.OutcomeSuccess, id.UserID, id.Email, entities.AuditActionLogin, "password accepted")
	c.Redirect(http.StatusFound, ac.guard.Gate().NextStep(gate.FirstFactorOK))
}

// SecondFactorPage renders the code form.
func (ac *AuthController) SecondFactorPage(c *gin.Context) {
	ac.renderTemplate(c, http.StatusOK, "2fa.html", gin.H{
		"Title":     "Two-Factor Authentication",
		"CSRFToken": GetCSRFToken(c),
		"Error":     c.Query("error"),
	})
}

// VerifySecondFactor checks the submitted code against the secret bound at
// the password step. A failure leaves the session state unchanged.
func (ac *AuthController) VerifySecondFactor(c *gin.Context) {
	cv := ac.secondFactor.(CodeVerifier)
	id := ac.sessions.Identity(c.Request)

	secret := ac.sessions.BoundSecret(c.Request)
	if secret == "" {
		secret = cv.SecretFor(id)
	}

	code := strings.TrimSpace(c.PostForm("token"))
	ok, err := cv.Verify(secret, code)
	if err != nil {
		log.Printf("Code verification error for %q: %v", id.Email, err)
	}
	if !ok {
		ac.record(c, metrics.StepTOTP, metrics.OutcomeFailure, id.UserID, id.Email, entities.AuditActionSecondFactor, "code rejected")
		redirectWith(c, "/2fa", "error", msgInvalidCode)
		return
	}

	// A code from the account's own authenticator confirms enrollment just
	// as /verify-user-2fa would.
	if id.UserID != 0 && !id.SetupCompleted && ac.users != nil {
		if err := ac.users.MarkSetupCompleted(id.UserID); err != nil {
			log.Printf("Failed to mark setup completed for user %d: %v", id.UserID, err)
		}
	}

	if err := ac.sessions.CompleteSecondFactor(c.Request); err != nil {
		ac.sessionFailure(c, metrics.StepTOTP, "/2fa", err)
		return
	}
	if err := ac.sessions.Save(c); err != nil {
		ac.sessionFailure(c, metrics.StepTOTP, "/2fa", err)
		return
	}

	ac.record(c, metrics.StepTOTP, metrics.OutcomeSuccess, id.UserID, id.Email, entities.AuditActionSecondFactor, "code accepted")
	c.Redirect(http.StatusFound, ac.guard.Gate().Routes().Protected)
}

// Dashboard renders the protected page.
func (ac *AuthController) Dashboard(c *gin.Context) {
	id := ac.sessions.Identity(c.Request)

	name := id.Name
	if name == "" {
		name = "Admin"
	}

	ac.renderTemplate(c, http.StatusOK, "dashboard.html", gin.H{
		"Title":     "DipBot Dashboard",
		"CSRFToken": GetCSRFToken(c),
		"Name":      name,
		"Email":     id.Email,
	})
}

// Logout destroys the session and returns to the root.
func (ac *AuthController) Logout(c *gin.Context) {
	id := ac.sessions.Identity(c.Request)
	wasLoggedIn := ac.guard.State(c) != gate.Anonymous

	if err := ac.sessions.DestroySession(c.Request); err != nil {
		log.Printf("Failed to destroy session: %v", err)
	}

	if wasLoggedIn && ac.audit != nil {
		ac.audit.LogAuth(audit.AuthEvent{
			UserID:    id.UserID,
			Subject:   id.Email,
			Action:    entities.AuditActionLogout,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Success:   true,
		})
	}
	c.Redirect(http.StatusFound, "/")
}

// OperatorSetupPage shows the enrollment code for the shared operator
// secret. Only the operator account may see it.
func (ac *AuthController) OperatorSetupPage(c *gin.Context) {
	id := ac.sessions.Identity(c.Request)
	if !id.Operator {
		c.Redirect(http.StatusFound, ac.guard.Gate().NextStep(ac.guard.State(c)))
		return
	}

	account := ac.operator.Email
	if account == "" {
		account = ac.operator.Username
	}

	qr, err := ac.totp.QRCodeDataURL(ac.operator.TOTPSecret, account)
	if err != nil {
		log.Printf("Failed to render operator QR code: %v", err)
		c.String(http.StatusInternalServerError, msgQRCodeFailed)
		return
	}

	ac.renderTemplate(c, http.StatusOK, "setup-2fa.html", gin.H{
		"Title":  "Set Up Authenticator",
		"QRCode": qr,
		"Secret": ac.operator.TOTPSecret,
	})
}

// sessionFailure sends the browser back to path when the session store
// refused a write.
// The unsaved changes are dropped rather than retried when the response is
// written.
func (ac *AuthController) sessionFailure(c *gin.Context, step, path string, err error) {
	log.Printf("Session write failed: %v", err)
	ac.sessions.Discard(c)
	ac.metrics.AuthAttempt(step, metrics.OutcomeError)
	redirectWith(c, path, "error", msgSessionError)
}

// record counts an attempt and writes it to the audit log.
func (ac *AuthController) record(c *gin.Context, step, outcome string, userID uint, subject, action, description string) {
	ac.metrics.AuthAttempt(step, outcome)
	if ac.audit == nil {
		return
	}
	ac.audit.LogAuth(audit.AuthEvent{
		UserID:      userID,
		Subject:     subject,
		Action:      action,
		Description: description,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		Success:     outcome == metrics.OutcomeSuccess,
	})
}

// redirectWith redirects to path carrying one query parameter.
func redirectWith(c *gin.Context, path, key, value string) {
	c.Redirect(http.StatusFound, path+"?"+url.Values{key: {value}}.Encode())
}

// renderTemplate renders a gate template or falls back to JSON.
func (ac *AuthController) renderTemplate(c *gin.Context, status int, name string, data gin.H) {
	if ac.templates == nil {
		c.JSON(status, data)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := ac.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		log.Printf("Template %s failed: %v", name, err)
	}
}
