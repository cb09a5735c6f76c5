package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// VerifierMode selects how the second factor is checked.
type VerifierMode string

const (
	VerifierSharedTOTP  VerifierMode = "shared_totp"   // One operator secret for every login
	VerifierPerUserTOTP VerifierMode = "per_user_totp" // Secret stored per database user (default)
	VerifierOAuth       VerifierMode = "oauth"         // Google sign-in as second factor
)

type (
	Config struct {
		HTTP
		Global
		Database
		Auth
		Operator
		TOTP
		OAuth
		Registration
		Audit
		Tasks
		Metrics
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		Environment              string
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Auth struct {
		Verifier        VerifierMode
		SessionSecret   string
		SessionLifetime time.Duration
		BcryptCost      int
		SecureCookies   bool   // Set to false for local dev without HTTPS
		EncryptionKey   string // Base64 AES-256 key for TOTP secrets at rest

		// Refuse the password step for accounts that never confirmed enrollment.
		RequireSetupCompleted bool
	}
	Operator struct {
		Username   string
		Password   string
		Email      string
		Name       string
		TOTPSecret string // Generated at startup when empty
	}
	TOTP struct {
		Issuer string
		Skew   uint // Accepted time steps either side of now
		Period uint
		Digits int
	}
	OAuth struct {
		GoogleClientID     string
		GoogleClientSecret string
		GoogleCallbackURL  string
	}
	Registration struct {
		PendingTTL    time.Duration // Unconfirmed accounts older than this are purged
		PurgeSchedule string        // Cron format
	}
	Audit struct {
		RetentionDays   int
		CleanupSchedule string // Cron format
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Metrics struct {
		Enabled bool
	}
)

// IsProduction reports whether the service runs in the production environment.
func (g Global) IsProduction() bool {
	return strings.EqualFold(g.Environment, "production")
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 3000)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("app_env", "development")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Auth defaults
	v.SetDefault("auth_verifier", string(VerifierPerUserTOTP))
	v.SetDefault("auth_session_secret", "")      // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h") // 24 hours
	v.SetDefault("auth_bcrypt_cost", 10)
	v.SetDefault("auth_encryption_key", "")
	v.SetDefault("auth_require_setup_completed", false)

	// Operator account
	v.SetDefault("operator_username", DefaultOperatorUsername)
	v.SetDefault("operator_password", DefaultOperatorPassword)
	v.SetDefault("operator_email", "admin@dipbot.com")
	v.SetDefault("operator_name", "Admin")
	v.SetDefault("totp_secret", "")

	// TOTP defaults
	v.SetDefault("totp_issuer", "DipBot Auth")
	v.SetDefault("totp_skew", 2)
	v.SetDefault("totp_period", 30)
	v.SetDefault("totp_digits", 6)

	// Registration and audit housekeeping
	v.SetDefault("registration_pending_ttl", "168h")
	v.SetDefault("registration_purge_schedule", "15 * * * *")
	v.SetDefault("audit_retention_days", 30)
	v.SetDefault("audit_cleanup_schedule", "30 3 * * *")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	v.SetDefault("metrics_enabled", true)

	env := v.GetString("APP_ENV")

	// Secure cookies follow the environment unless set explicitly
	secureCookies := strings.EqualFold(env, "production")
	if v.IsSet("AUTH_SECURE_COOKIES") {
		secureCookies = v.GetBool("AUTH_SECURE_COOKIES")
	}

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			Environment:              env,
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Auth: Auth{
			Verifier:              VerifierMode(v.GetString("AUTH_VERIFIER")),
			SessionSecret:         v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:       v.GetDuration("AUTH_SESSION_LIFETIME"),
			BcryptCost:            v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:         secureCookies,
			EncryptionKey:         v.GetString("AUTH_ENCRYPTION_KEY"),
			RequireSetupCompleted: v.GetBool("AUTH_REQUIRE_SETUP_COMPLETED"),
		},
		Operator: Operator{
			Username:   v.GetString("OPERATOR_USERNAME"),
			Password:   v.GetString("OPERATOR_PASSWORD"),
			Email:      v.GetString("OPERATOR_EMAIL"),
			Name:       v.GetString("OPERATOR_NAME"),
			TOTPSecret: v.GetString("TOTP_SECRET"),
		},
		TOTP: TOTP{
			Issuer: v.GetString("TOTP_ISSUER"),
			Skew:   v.GetUint("TOTP_SKEW"),
			Period: v.GetUint("TOTP_PERIOD"),
			Digits: v.GetInt("TOTP_DIGITS"),
		},
		OAuth: OAuth{
			GoogleClientID:     v.GetString("GOOGLE_CLIENT_ID"),
			GoogleClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
			GoogleCallbackURL:  v.GetString("GOOGLE_CALLBACK_URL"),
		},
		Registration: Registration{
			PendingTTL:    v.GetDuration("REGISTRATION_PENDING_TTL"),
			PurgeSchedule: v.GetString("REGISTRATION_PURGE_SCHEDULE"),
		},
		Audit: Audit{
			RetentionDays:   v.GetInt("AUDIT_RETENTION_DAYS"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Metrics: Metrics{
			Enabled: v.GetBool("METRICS_ENABLED"),
		},
	}
}
