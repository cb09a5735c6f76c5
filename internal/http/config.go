package http

import (
	"html/template"
	"io/fs"

	"github.com/mrlokans/dipgate/internal/audit"
	"github.com/mrlokans/dipgate/internal/auth"
	"github.com/mrlokans/dipgate/internal/database"
	"github.com/mrlokans/dipgate/internal/metrics"
)

// RouterConfig contains everything NewRouter needs.
type RouterConfig struct {
	Database *database.Database
	Sessions *auth.SessionManager

	// Auth is the login gate. Its templates are installed on the engine too.
	Auth      *auth.AuthController
	Templates *template.Template
	Static    fs.FS

	// CSRF protection is skipped when the secret is empty.
	CSRFSecret    []byte
	SecureCookies bool

	// FormActions are extra origins allowed as form targets in the CSP.
	FormActions []string

	// Optional operator endpoints.
	Audit       *audit.Service
	Maintenance JobRunner
	TaskStatus  TaskStatusReader
	Metrics     *metrics.Metrics

	// Extra named health checks next to the database ping.
	HealthChecks map[string]func() error

	Version string
}
