package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/dipgate/internal/audit"
	"github.com/mrlokans/dipgate/internal/auth"
	"github.com/mrlokans/dipgate/internal/config"
	"github.com/mrlokans/dipgate/internal/crypto"
	"github.com/mrlokans/dipgate/internal/database"
	auditrepo "github.com/mrlokans/dipgate/internal/database/audit"
	"github.com/mrlokans/dipgate/internal/database/users"
	http_controllers "github.com/mrlokans/dipgate/internal/http"
	"github.com/mrlokans/dipgate/internal/metrics"
	"github.com/mrlokans/dipgate/internal/oauth2"
	"github.com/mrlokans/dipgate/internal/scheduler"
	"github.com/mrlokans/dipgate/internal/tasks"
	"github.com/mrlokans/dipgate/internal/web"
)

// Housekeeping job names, shared with the queue names.
const (
	JobPurgeRegistrations = "purge_incomplete_registrations"
	JobCleanupAudit       = "cleanup_audit_events"
)

// googleFormAction is where the OAuth second factor sends the browser.
const googleFormAction = "https://accounts.google.com"

// ErrOAuthNotConfigured is returned when the oauth verifier is selected
// without Google client credentials.
var ErrOAuthNotConfigured = errors.New("oauth verifier needs GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")

// App is the wired application.
type App struct {
	Router    *gin.Engine
	Database  *database.Database
	Users     *users.Repository
	Audit     *audit.Service
	Metrics   *metrics.Metrics
	Tasks     *tasks.Client // nil when the queue is disabled
	Scheduler *scheduler.Scheduler

	Mode config.VerifierMode
	// GeneratedSecret is set when no operator secret was configured and one
	// was created for this run.
	GeneratedSecret string
}

// Build opens storage and wires every component. Close releases what Build
// opened.
func Build(cfg *config.Config, version string) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app := &App{Database: db, Mode: cfg.Auth.Verifier}
	if app.Mode == "" {
		app.Mode = config.VerifierPerUserTOTP
	}
	if err := app.wire(cfg, version); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(cfg *config.Config, version string) error {
	cipher, err := crypto.NewCipher(cfg.Auth.EncryptionKey)
	if err != nil {
		return fmt.Errorf("invalid AUTH_ENCRYPTION_KEY: %w", err)
	}
	if _, plain := cipher.(crypto.Plaintext); plain {
		log.Printf("WARNING: AUTH_ENCRYPTION_KEY is not set. Authenticator secrets are stored unencrypted.")
	}

	a.Users = users.NewRepository(a.Database.DB, cipher)
	a.Audit = audit.NewService(auditrepo.NewRepository(a.Database.DB))
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
	}

	tp := auth.NewTOTP(cfg.TOTP)

	operatorSecret := cfg.Operator.TOTPSecret
	if operatorSecret == "" {
		operatorSecret, err = tp.GenerateSecret(cfg.Operator.Email)
		if err != nil {
			return fmt.Errorf("failed to generate operator secret: %w", err)
		}
		a.GeneratedSecret = operatorSecret
		log.Printf("WARNING: TOTP_SECRET is not set. Generated a new operator secret; set TOTP_SECRET to keep it across restarts.")
	}
	if cfg.Operator.Username == config.DefaultOperatorUsername && cfg.Operator.Password == config.DefaultOperatorPassword {
		log.Printf("WARNING: operator login uses the default admin/admin credentials. Set OPERATOR_USERNAME and OPERATOR_PASSWORD.")
	}

	operator := auth.OperatorCredentials{
		Username:   cfg.Operator.Username,
		Password:   cfg.Operator.Password,
		Email:      cfg.Operator.Email,
		Name:       cfg.Operator.Name,
		TOTPSecret: operatorSecret,
	}

	second, formActions, err := secondFactor(a.Mode, cfg.OAuth, tp, operatorSecret)
	if err != nil {
		return err
	}

	sqlDB, err := a.Database.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB for sessions: %w", err)
	}
	sessions, err := auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}

	csrfSecret, err := csrfKey(cfg.Auth.SessionSecret)
	if err != nil {
		return err
	}

	templates, err := web.Templates()
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	controllerCfg := auth.ControllerConfig{
		Credentials:  operator,
		SecondFactor: second,
		Sessions:     sessions,
		TOTP:         tp,
		Operator:     operator,
		Templates:    templates,
		Audit:        a.Audit,
		Metrics:      a.Metrics,
	}
	// Database accounts only exist where each account owns its secret.
	if a.Mode == config.VerifierPerUserTOTP {
		controllerCfg.Credentials = auth.ChainCredentials{operator, auth.NewUserCredentials(a.Users, cfg.Auth.RequireSetupCompleted).WithHashCost(cfg.Auth.BcryptCost)}
		controllerCfg.Users = a.Users
		controllerCfg.Registrar = auth.NewRegistrar(a.Users, tp, cfg.Auth.BcryptCost)
	}
	controller := auth.NewAuthController(controllerCfg)

	if err := a.wireHousekeeping(cfg); err != nil {
		return err
	}

	healthChecks := map[string]func() error{}
	var taskStatus http_controllers.TaskStatusReader
	if a.Tasks != nil {
		healthChecks["task_queue"] = a.Tasks.Ping
		taskStatus = a.Tasks
	}

	a.Router = http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:      a.Database,
		Sessions:      sessions,
		Auth:          controller,
		Templates:     templates,
		Static:        web.Static(),
		CSRFSecret:    csrfSecret,
		SecureCookies: cfg.Auth.SecureCookies,
		FormActions:   formActions,
		Audit:         a.Audit,
		Maintenance:   a.Scheduler,
		TaskStatus:    taskStatus,
		Metrics:       a.Metrics,
		HealthChecks:  healthChecks,
		Version:       version,
	})
	return nil
}

// secondFactor picks the verifier for mode along with any extra CSP form
// targets it needs.
func secondFactor(mode config.VerifierMode, oauthCfg config.OAuth, tp *auth.TOTP, operatorSecret string) (auth.SecondFactor, []string, error) {
	switch mode {
	case config.VerifierSharedTOTP:
		return auth.NewSharedSecretVerifier(tp, operatorSecret), nil, nil
	case config.VerifierPerUserTOTP:
		return auth.NewPerUserVerifier(tp, operatorSecret), nil, nil
	case config.VerifierOAuth:
		if oauthCfg.GoogleClientID == "" || oauthCfg.GoogleClientSecret == "" {
			return nil, nil, ErrOAuthNotConfigured
		}
		return auth.NewOAuthVerifier(oauth2.NewGoogleProvider(oauthCfg)), []string{googleFormAction}, nil
	default:
		return nil, nil, fmt.Errorf("unknown AUTH_VERIFIER %q", mode)
	}
}

// csrfKey decodes a hex session secret, accepts any other value as raw
// bytes, and generates a key when none is configured.
func csrfKey(configured string) ([]byte, error) {
	if configured != "" {
		if key, err := hex.DecodeString(configured); err == nil {
			return key, nil
		}
		return []byte(configured), nil
	}

	secret, err := auth.GenerateSessionSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSRF secret: %w", err)
	}
	log.Printf("Generated session secret (set AUTH_SESSION_SECRET to persist)")
	return hex.DecodeString(secret)
}

// wireHousekeeping registers the purge and retention jobs. With the queue
// enabled a cron tick only enqueues; otherwise the job runs in place.
func (a *App) wireHousekeeping(cfg *config.Config) error {
	purge := tasks.PurgeIncompleteRegistrationsTask{PendingTTL: cfg.Registration.PendingTTL}
	cleanup := tasks.CleanupAuditEventsTask{RetentionDays: cfg.Audit.RetentionDays}

	runPurge := func(ctx context.Context) error {
		return tasks.PurgeIncompleteRegistrationsProcessor(a.Users, a.Metrics, a.Audit, nil)(ctx, purge)
	}
	runCleanup := func(ctx context.Context) error {
		return tasks.CleanupAuditEventsProcessor(a.Audit)(ctx, cleanup)
	}

	if cfg.Tasks.Enabled {
		client, err := tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks))
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		client.Register(
			tasks.NewPurgeIncompleteRegistrationsQueue(a.Users, a.Metrics, a.Audit),
			tasks.NewCleanupAuditEventsQueue(a.Audit),
		)
		a.Tasks = client

		runPurge = func(ctx context.Context) error {
			_, err := client.Enqueue(ctx, purge)
			return err
		}
		runCleanup = func(ctx context.Context) error {
			_, err := client.Enqueue(ctx, cleanup)
			return err
		}
	}

	a.Scheduler = scheduler.New()
	if err := a.Scheduler.Add(scheduler.Job{Name: JobPurgeRegistrations, Schedule: cfg.Registration.PurgeSchedule, Run: runPurge}); err != nil {
		return err
	}
	return a.Scheduler.Add(scheduler.Job{Name: JobCleanupAudit, Schedule: cfg.Audit.CleanupSchedule, Run: runCleanup})
}

// Start launches the task workers and the cron scheduler.
func (a *App) Start(ctx context.Context) error {
	if a.Tasks != nil {
		go a.Tasks.Start(ctx)
	}
	a.Scheduler.Start(ctx)
	return nil
}

// Shutdown stops background work, waiting at most until ctx expires.
func (a *App) Shutdown(ctx context.Context) {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Tasks != nil {
		a.Tasks.Stop(ctx)
	}
	if a.Audit != nil {
		a.Audit.Wait()
	}
}

// Close releases the databases.
func (a *App) Close() {
	if a.Tasks != nil {
		if err := a.Tasks.Close(); err != nil {
			log.Printf("Error closing task client: %v", err)
		}
	}
	if a.Database != nil {
		if err := a.Database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
}
