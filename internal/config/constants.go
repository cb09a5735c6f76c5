package config

const (
	// DefaultDatabasePath is the default path for the application database
	DefaultDatabasePath = "./dipgate.db"

	// Operator credentials used when none are configured. Startup logs a
	// warning while these are in effect.
	DefaultOperatorUsername = "admin"
	DefaultOperatorPassword = "admin"
)
