package auth

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/dipgate/internal/entities"
	"github.com/mrlokans/dipgate/internal/metrics"
	"github.com/mrlokans/dipgate/internal/oauth2"
)

// OAuthStart sends the browser to the identity provider with a fresh state
// value remembered in the session.
func (ac *AuthController) OAuthStart(c *gin.Context) {
	v := ac.secondFactor.(*OAuthVerifier)

	state := oauth2.NewState()
	ac.sessions.PutOAuthState(c.Request, state)
	if err := ac.sessions.Save(c); err != nil {
		ac.sessionFailure(c, metrics.StepOAuth, "/login", err)
		return
	}

	c.Redirect(http.StatusFound, v.Provider.AuthCodeURL(state))
}

// OAuthCallback completes the second factor with the provider's answer.
func (ac *AuthController) OAuthCallback(c *gin.Context) {
	v := ac.secondFactor.(*OAuthVerifier)
	id := ac.sessions.Identity(c.Request)

	fail := func(reason string) {
		ac.record(c, metrics.StepOAuth, metrics.OutcomeFailure, id.UserID, id.Email, entities.AuditActionOAuthCallback, reason)
		redirectWith(c, "/login", "error", msgOAuthFailed)
	}

	expected := ac.sessions.PopOAuthState(c.Request)
	got := c.Query("state")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		fail(oauth2.ErrStateMismatch.Error())
		return
	}

	if providerErr := c.Query("error"); providerErr != "" {
		fail("provider returned " + providerErr)
		return
	}

	profile, err := v.Provider.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		log.Printf("OAuth exchange failed for %q: %v", id.Email, err)
		fail(err.Error())
		return
	}

	if err := ac.sessions.CompleteSecondFactor(c.Request); err != nil {
		ac.sessionFailure(c, metrics.StepOAuth, "/login", err)
		return
	}
	ac.sessions.UpdateProfile(c.Request, profile.Subject, profile.Email, profile.DisplayName())
	if err := ac.sessions.Save(c); err != nil {
		ac.sessionFailure(c, metrics.StepOAuth, "/login", err)
		return
	}

	ac.record(c, metrics.StepOAuth, metrics.OutcomeSuccess, id.UserID, profile.Email, entities.AuditActionOAuthCallback, "provider subject "+profile.Subject)
	c.Redirect(http.StatusFound, ac.guard.Gate().Routes().Protected)
}
