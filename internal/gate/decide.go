package gate

// Page identifies a gated page.
type Page int

const (
	PageRoot Page = iota
	PageLogin
	PageSignup
	PageSecondFactor
	PageProtected
)

// Routes are the redirect targets used by a Gate.
type Routes struct {
	Login        string
	SecondFactor string
	Protected    string
}

// DefaultRoutes are the routes of the TOTP flow.
var DefaultRoutes = Routes{
	Login:        "/login",
	SecondFactor: "/2fa",
	Protected:    "/success",
}

// Decision says whether to serve the requested page or redirect elsewhere.
type Decision struct {
	Serve    bool
	Redirect string
}

func serve() Decision { return Decision{Serve: true} }

func redirect(to string) Decision { return Decision{Redirect: to} }

// Gate decides, for a session state and a requested page, whether the page
// may be served.
type Gate struct {
	routes Routes
}

// New creates a Gate. Empty routes fall back to DefaultRoutes.
func New(routes Routes) *Gate {
	if routes.Login == "" {
		routes.Login = DefaultRoutes.Login
	}
	if routes.SecondFactor == "" {
		routes.SecondFactor = DefaultRoutes.SecondFactor
	}
	if routes.Protected == "" {
		routes.Protected = DefaultRoutes.Protected
	}
	return &Gate{routes: routes}
}

// Routes returns the gate's redirect targets.
func (g *Gate) Routes() Routes {
	return g.routes
}

// NextStep is the earliest unmet step for s, or the protected resource when
// every step is satisfied.
func (g *Gate) NextStep(s State) string {
	switch {
	case !s.BasicAuthPassed():
		return g.routes.Login
	case !s.TwoFactorPassed():
		return g.routes.SecondFactor
	default:
		return g.routes.Protected
	}
}

// Decide applies the ordering rules. Requests for a step that is not yet
// reachable go back to the earliest unmet step; requests for a step that is
// already satisfied skip forward.
func (g *Gate) Decide(s State, p Page) Decision {
	switch p {
	case PageProtected:
		if RequireFullAuth(s) {
			return serve()
		}
		return redirect(g.NextStep(s))
	case PageSecondFactor:
		if s == FirstFactorOK {
			return serve()
		}
		return redirect(g.NextStep(s))
	case PageLogin:
		if s == Anonymous {
			return serve()
		}
		return redirect(g.NextStep(s))
	case PageSignup:
		if RequireFullAuth(s) {
			return redirect(g.routes.Protected)
		}
		return serve()
	default:
		if RequireFullAuth(s) {
			return redirect(g.routes.Protected)
		}
		return redirect(g.routes.Login)
	}
}
