package entities

import (
	"strings"
	"time"
)

// User is a registered dashboard account.
type User struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	FirstName       string    `gorm:"size:100" json:"first_name"`
	LastName        string    `gorm:"size:100" json:"last_name"`
	Email           string    `gorm:"uniqueIndex;size:255" json:"email"`
	PasswordHash    string    `gorm:"size:255" json:"-"`
	TOTPSecret      string    `gorm:"column:totp_secret;type:text" json:"-"` // Encrypted when a key is configured
	SetupCompleted  bool      `gorm:"column:totp_setup_completed;index" json:"totp_setup_completed"`
	NewsletterOptIn bool      `json:"newsletter_opt_in"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName joins first and last name, falling back to the email.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
