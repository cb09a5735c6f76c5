package entities

import "time"

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

// Audit actions recorded by the login gate.
const (
	AuditActionLogin          = "login"
	AuditActionSecondFactor   = "second_factor"
	AuditActionOAuthCallback  = "oauth_callback"
	AuditActionSignup         = "signup"
	AuditActionEnrollment     = "enrollment"
	AuditActionRecovery       = "recovery"
	AuditActionLogout         = "logout"
	AuditActionPurgeSignups   = "purge_incomplete_registrations"
	AuditActionAuditRetention = "audit_retention"
)

type AuditEvent struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UserID      uint        `gorm:"index" json:"user_id"`
	Subject     string      `gorm:"size:255" json:"subject,omitempty"` // Submitted username or email
	Action      string      `gorm:"index;size:100" json:"action"`
	Description string      `gorm:"size:500" json:"description"`
	IPAddress   string      `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent   string      `gorm:"size:500" json:"user_agent,omitempty"`
	Status      AuditStatus `gorm:"size:20" json:"status"`
	CreatedAt   time.Time   `gorm:"index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
