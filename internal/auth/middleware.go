package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/dipgate/internal/gate"
)

// ContextKeyState is the Gin context key holding the request's gate.State.
const ContextKeyState = "auth_state"

// Guard turns gate decisions into Gin middleware.
type Guard struct {
	sessions *SessionManager
	gate     *gate.Gate
}

// NewGuard creates a guard reading state from sessions.
func NewGuard(sessions *SessionManager, g *gate.Gate) *Guard {
	return &Guard{sessions: sessions, gate: g}
}

// Gate returns the decision table the guard applies.
func (g *Guard) Gate() *gate.Gate {
	return g.gate
}

// State reads the request's login progress and caches it on the context.
func (g *Guard) State(c *gin.Context) gate.State {
	if v, ok := c.Get(ContextKeyState); ok {
		if s, ok := v.(gate.State); ok {
			return s
		}
	}
	s := g.sessions.State(c.Request)
	c.Set(ContextKeyState, s)
	return s
}

// RequireBasicAuth lets requests through once the password step succeeded,
// and sends everyone else to the login page.
func (g *Guard) RequireBasicAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !gate.RequireBasicAuth(g.State(c)) {
			c.Redirect(http.StatusFound, g.gate.Routes().Login)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireFullAuth lets requests through once both factors succeeded, and
// sends everyone else to their earliest unmet step.
func (g *Guard) RequireFullAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := g.State(c)
		if !gate.RequireFullAuth(s) {
			c.Redirect(http.StatusFound, g.gate.NextStep(s))
			c.Abort()
			return
		}
		c.Next()
	}
}

// Page applies the gate's decision for page: it either lets the handler run
// or redirects.
func (g *Guard) Page(p gate.Page) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := g.gate.Decide(g.State(c), p)
		if !d.Serve {
			c.Redirect(http.StatusFound, d.Redirect)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireOperator admits fully authenticated operator sessions. Other fully
// authenticated users get 403; everyone else goes to their next step.
func (g *Guard) RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := g.State(c)
		if !gate.RequireFullAuth(s) {
			c.Redirect(http.StatusFound, g.gate.NextStep(s))
			c.Abort()
			return
		}
		if !g.sessions.Identity(c.Request).Operator {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "operator access required"})
			return
		}
		c.Next()
	}
}
