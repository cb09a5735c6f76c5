// Package auth runs the login gate in front of the dashboard.
//
// A login has two steps. The password step checks the submitted username and
// password against a CredentialStore (the operator account, registered
// accounts, or both) and moves the session to gate.FirstFactorOK. The second
// step depends on the configured SecondFactor:
//
//   - shared_totp: every login is checked against the operator's TOTP secret
//   - per_user_totp: each account is checked against its own secret
//   - oauth: the browser signs in with Google and the callback completes the login
//
// Sessions live in SQLite through scs and carry the gate state as an
// integer. Handlers commit the session explicitly with SessionManager.Save
// before redirecting so that a store failure can still be reported.
//
// # Configuration
//
//	AUTH_VERIFIER=per_user_totp   # shared_totp, per_user_totp or oauth
//	AUTH_SESSION_LIFETIME=24h
//	AUTH_BCRYPT_COST=10
//	AUTH_SECURE_COOKIES=true      # Defaults to true when APP_ENV=production
//	OPERATOR_USERNAME=admin
//	OPERATOR_PASSWORD=admin
//	TOTP_SECRET=<base32>          # Generated at startup when empty
//
// # Usage
//
//	controller := auth.NewAuthController(auth.ControllerConfig{...})
//	router.Use(sessions.SessionLoadSave())
//	controller.RegisterRoutes(router)
package auth
