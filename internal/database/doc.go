// Package database owns the SQLite connection and schema migrations.
//
// Domain repositories live in sub-packages and take the *gorm.DB:
//
//	database/
//	├── database.go      # Connection setup, migrations
//	├── users/           # Accounts, enrollment flag, secret sealing
//	└── audit/           # Authentication audit trail
//
// Usage:
//
//	db, err := database.NewDatabase("./dipgate.db")
//	usersRepo := users.NewRepository(db.DB, cipher)
//	auditRepo := audit.NewRepository(db.DB)
//
// Sessions share the same file: auth.NewSessionManager creates the scs
// "sessions" table on the underlying *sql.DB.
package database
