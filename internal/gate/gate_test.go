package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStates = []State{Anonymous, FirstFactorOK, FullyAuthenticated}

func TestStateFromFlags(t *testing.T) {
	assert.Equal(t, Anonymous, StateFromFlags(false, false))
	assert.Equal(t, Anonymous, StateFromFlags(false, true), "second factor without first collapses")
	assert.Equal(t, FirstFactorOK, StateFromFlags(true, false))
	assert.Equal(t, FullyAuthenticated, StateFromFlags(true, true))
}

func TestParse(t *testing.T) {
	assert.Equal(t, Anonymous, Parse(0))
	assert.Equal(t, FirstFactorOK, Parse(1))
	assert.Equal(t, FullyAuthenticated, Parse(2))
	assert.Equal(t, Anonymous, Parse(-1))
	assert.Equal(t, Anonymous, Parse(42))
}

func TestTwoFactorImpliesBasic(t *testing.T) {
	for _, s := range allStates {
		if s.TwoFactorPassed() {
			assert.True(t, s.BasicAuthPassed(), "state %s", s)
		}
	}
}

func TestPassSecondFactor(t *testing.T) {
	t.Run("requires first factor", func(t *testing.T) {
		next, err := Anonymous.PassSecondFactor()
		assert.ErrorIs(t, err, ErrFirstFactorRequired)
		assert.Equal(t, Anonymous, next)
	})

	t.Run("after first factor", func(t *testing.T) {
		next, err := FirstFactorOK.PassSecondFactor()
		require.NoError(t, err)
		assert.Equal(t, FullyAuthenticated, next)
	})

	t.Run("idempotent when complete", func(t *testing.T) {
		next, err := FullyAuthenticated.PassSecondFactor()
		require.NoError(t, err)
		assert.Equal(t, FullyAuthenticated, next)
	})
}

func TestPassFirstFactor_RestartsSecondFactor(t *testing.T) {
	for _, s := range allStates {
		assert.Equal(t, FirstFactorOK, s.PassFirstFactor(), "from %s", s)
	}
}

func TestLogout(t *testing.T) {
	g := New(DefaultRoutes)
	for _, s := range allStates {
		out := s.Logout()
		assert.Equal(t, Anonymous, out)
		assert.Equal(t, Decision{Redirect: "/login"}, g.Decide(out, PageProtected))
	}
}

func TestGuards(t *testing.T) {
	assert.False(t, RequireBasicAuth(Anonymous))
	assert.True(t, RequireBasicAuth(FirstFactorOK))
	assert.True(t, RequireBasicAuth(FullyAuthenticated))

	assert.False(t, RequireFullAuth(Anonymous))
	assert.False(t, RequireFullAuth(FirstFactorOK))
	assert.True(t, RequireFullAuth(FullyAuthenticated))
}

func TestDecide_Protected(t *testing.T) {
	g := New(DefaultRoutes)

	// basic=false always goes to login whatever the second flag says
	for _, twoFactor := range []bool{false, true} {
		d := g.Decide(StateFromFlags(false, twoFactor), PageProtected)
		assert.Equal(t, "/login", d.Redirect)
		assert.False(t, d.Serve)
	}

	assert.Equal(t, Decision{Redirect: "/2fa"}, g.Decide(FirstFactorOK, PageProtected))
	assert.Equal(t, Decision{Serve: true}, g.Decide(FullyAuthenticated, PageProtected))
}

func TestDecide_SkipsForward(t *testing.T) {
	g := New(DefaultRoutes)

	tests := []struct {
		name  string
		state State
		page  Page
		want  Decision
	}{
		{"login anonymous", Anonymous, PageLogin, Decision{Serve: true}},
		{"login after password", FirstFactorOK, PageLogin, Decision{Redirect: "/2fa"}},
		{"login when complete", FullyAuthenticated, PageLogin, Decision{Redirect: "/success"}},
		{"2fa anonymous", Anonymous, PageSecondFactor, Decision{Redirect: "/login"}},
		{"2fa after password", FirstFactorOK, PageSecondFactor, Decision{Serve: true}},
		{"2fa when complete", FullyAuthenticated, PageSecondFactor, Decision{Redirect: "/success"}},
		{"root anonymous", Anonymous, PageRoot, Decision{Redirect: "/login"}},
		{"root after password", FirstFactorOK, PageRoot, Decision{Redirect: "/login"}},
		{"root when complete", FullyAuthenticated, PageRoot, Decision{Redirect: "/success"}},
		{"signup anonymous", Anonymous, PageSignup, Decision{Serve: true}},
		{"signup when complete", FullyAuthenticated, PageSignup, Decision{Redirect: "/success"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Decide(tt.state, tt.page))
		})
	}
}

func TestNew_CustomSecondFactorRoute(t *testing.T) {
	g := New(Routes{SecondFactor: "/auth/google"})

	assert.Equal(t, "/login", g.Routes().Login)
	assert.Equal(t, "/success", g.Routes().Protected)
	assert.Equal(t, Decision{Redirect: "/auth/google"}, g.Decide(FirstFactorOK, PageProtected))
	assert.Equal(t, Decision{Redirect: "/auth/google"}, g.Decide(FirstFactorOK, PageLogin))
}
