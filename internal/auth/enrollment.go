package auth

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/dipgate/internal/entities"
	"github.com/mrlokans/dipgate/internal/metrics"
)

// SignupPage renders the registration form.
func (ac *AuthController) SignupPage(c *gin.Context) {
	ac.renderSignup(c, RegistrationForm{}, "")
}

// Signup creates an unconfirmed account and starts authenticator
// enrollment for it.
func (ac *AuthController) Signup(c *gin.Context) {
	form := RegistrationForm{
		FirstName:       c.PostForm("firstName"),
		LastName:        c.PostForm("lastName"),
		Email:           c.PostForm("email"),
		Password:        c.PostForm("password"),
		ConfirmPassword: c.PostForm("confirmPassword"),
		AgreeTerms:      checked(c.PostForm("agreeTerms")),
		Newsletter:      checked(c.PostForm("newsletter")),
	}

	user, err := ac.registrar.Register(form)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			ac.metrics.Signup(metrics.OutcomeFailure)
			ac.renderSignup(c, form, verr.Message)
		case errors.Is(err, ErrDuplicateAccount):
			ac.metrics.Signup(metrics.OutcomeFailure)
			ac.renderSignup(c, form, msgEmailTaken)
		default:
			log.Printf("Signup failed for %q: %v", form.Email, err)
			ac.metrics.Signup(metrics.OutcomeError)
			ac.renderSignup(c, form, msgSignupFailed)
		}
		return
	}

	ac.sessions.PutPendingRegistration(c.Request, Enrollment{
		UserID: user.ID,
		Email:  user.Email,
		Secret: user.TOTPSecret,
	})
	if err := ac.sessions.Save(c); err != nil {
		log.Printf("Session write failed after signup of %q: %v", user.Email, err)
		ac.sessions.Discard(c)
		ac.metrics.Signup(metrics.OutcomeError)
		ac.renderSignup(c, form, "Session error. Please try again.")
		return
	}

	ac.metrics.Signup(metrics.OutcomeSuccess)
	ac.record(c, metrics.StepEnrollment, metrics.OutcomeSuccess, user.ID, user.Email, entities.AuditActionSignup, "account created")
	c.Redirect(http.StatusFound, "/setup-user-2fa")
}

func (ac *AuthController) renderSignup(c *gin.Context, form RegistrationForm, errMsg string) {
	ac.renderTemplate(c, http.StatusOK, "signup.html", gin.H{
		"Title":     "Create Account",
		"CSRFToken": GetCSRFToken(c),
		"Error":     errMsg,
		"FirstName": form.FirstName,
		"LastName":  form.LastName,
		"Email":     form.Email,
	})
}

// EnrollmentPage shows the QR code for a pending signup or recovery.
func (ac *AuthController) EnrollmentPage(c *gin.Context) {
	e, ok := ac.sessions.PendingEnrollment(c.Request)
	if !ok {
		c.Redirect(http.StatusFound, "/signup")
		return
	}
	ac.renderEnrollment(c, e, "")
}

// VerifyEnrollment confirms the authenticator with a first code.
func (ac *AuthController) VerifyEnrollment(c *gin.Context) {
	e, ok := ac.sessions.PendingEnrollment(c.Request)
	if !ok {
		c.Redirect(http.StatusFound, "/signup")
		return
	}

	action := entities.AuditActionEnrollment
	if e.Recovery {
		action = entities.AuditActionRecovery
	}

	code := strings.TrimSpace(c.PostForm("token"))
	if err := ac.registrar.ConfirmEnrollment(e, code); err != nil {
		if !errors.Is(err, ErrInvalidCode) {
			log.Printf("Enrollment confirmation failed for %q: %v", e.Email, err)
		}
		ac.record(c, metrics.StepEnrollment, metrics.OutcomeFailure, e.UserID, e.Email, action, err.Error())
		ac.renderEnrollment(c, e, msgEnrollmentRetry)
		return
	}

	ac.sessions.ClearEnrollment(c.Request)
	if err := ac.sessions.Save(c); err != nil {
		log.Printf("Session write failed after enrollment of %q: %v", e.Email, err)
		ac.sessions.Discard(c)
	}

	ac.record(c, metrics.StepEnrollment, metrics.OutcomeSuccess, e.UserID, e.Email, action, "authenticator confirmed")

	msg := msgAccountCreated
	if e.Recovery {
		msg = msgAuthenticatorReset
	}
	redirectWith(c, "/login", "message", msg)
}

// RecoverPage renders the recovery form.
func (ac *AuthController) RecoverPage(c *gin.Context) {
	ac.renderTemplate(c, http.StatusOK, "recover-2fa.html", gin.H{
		"Title":     "Recover Authenticator",
		"CSRFToken": GetCSRFToken(c),
		"Error":     c.Query("error"),
	})
}

// Recover re-checks email and password and shows the account's existing
// secret again for re-enrollment.
func (ac *AuthController) Recover(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	user, err := ac.registrar.Recover(email, password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			log.Printf("Recovery lookup failed for %q: %v", email, err)
		}
		ac.record(c, metrics.StepRecovery, metrics.OutcomeFailure, 0, email, entities.AuditActionRecovery, err.Error())
		ac.renderTemplate(c, http.StatusOK, "recover-2fa.html", gin.H{
			"Title":     "Recover Authenticator",
			"CSRFToken": GetCSRFToken(c),
			"Error":     msgRecoveryFailed,
			"Email":     email,
		})
		return
	}

	e := Enrollment{UserID: user.ID, Email: user.Email, Secret: user.TOTPSecret, Recovery: true}
	ac.sessions.PutRecovery(c.Request, e)
	if err := ac.sessions.Save(c); err != nil {
		log.Printf("Session write failed during recovery of %q: %v", user.Email, err)
		ac.sessions.Discard(c)
		redirectWith(c, "/recover-2fa", "error", msgSessionError)
		return
	}

	ac.record(c, metrics.StepRecovery, metrics.OutcomeSuccess, user.ID, user.Email, entities.AuditActionRecovery, "password re-checked")
	ac.renderEnrollment(c, e, "")
}

func (ac *AuthController) renderEnrollment(c *gin.Context, e Enrollment, errMsg string) {
	qr, err := ac.totp.QRCodeDataURL(e.Secret, e.Email)
	if err != nil {
		log.Printf("Failed to render QR code for %q: %v", e.Email, err)
		c.String(http.StatusInternalServerError, msgQRCodeFailed)
		return
	}

	message := "Scan this QR code with Google Authenticator"
	if e.Recovery {
		message = "Set up Google Authenticator again with this QR code"
	}

	ac.renderTemplate(c, http.StatusOK, "setup-user-2fa.html", gin.H{
		"Title":     "Set Up Authenticator",
		"CSRFToken": GetCSRFToken(c),
		"QRCode":    qr,
		"Secret":    e.Secret,
		"Email":     e.Email,
		"Recovery":  e.Recovery,
		"Message":   message,
		"Error":     errMsg,
	})
}

// checked reports whether an HTML checkbox was ticked.
func checked(v string) bool {
	switch strings.ToLower(v) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
