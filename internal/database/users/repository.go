// Package users provides database operations for dashboard accounts.
//
// # Usage
//
//	repo := users.NewRepository(db, cipher)
//	user, err := repo.GetUserByEmail(email)
package users

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/dipgate/internal/crypto"
	"github.com/mrlokans/dipgate/internal/entities"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// Repository handles all user database operations. TOTP secrets are sealed
// with the configured cipher on write and opened on read, so callers only
// ever see plaintext secrets.
type Repository struct {
	db     *gorm.DB
	cipher crypto.Cipher
}

// NewRepository creates a new users repository. A nil cipher stores secrets
// as given.
func NewRepository(db *gorm.DB, cipher crypto.Cipher) *Repository {
	if cipher == nil {
		cipher = crypto.Plaintext{}
	}
	return &Repository{db: db, cipher: cipher}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a user whose TOTPSecret holds the plaintext secret.
// The passed struct keeps the plaintext secret after the insert.
func (r *Repository) CreateUser(user *entities.User) error {
	user.Email = normalizeEmail(user.Email)

	exists, err := r.EmailExists(user.Email)
	if err != nil {
		return err
	}
	if exists {
		return ErrEmailTaken
	}

	plain := user.TOTPSecret
	sealed, err := r.cipher.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("failed to seal totp secret: %w", err)
	}

	user.TOTPSecret = sealed
	err = r.db.Create(user).Error
	user.TOTPSecret = plain
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// EmailExists reports whether an account already uses the email.
func (r *Repository) EmailExists(email string) (bool, error) {
	var count int64
	err := r.db.Model(&entities.User{}).Where("email = ?", normalizeEmail(email)).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check existing user: %w", err)
	}
	return count > 0, nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(id uint) (*entities.User, error) {
	var user entities.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, r.notFound(err)
	}
	return r.open(&user)
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (r *Repository) GetUserByEmail(email string) (*entities.User, error) {
	var user entities.User
	if err := r.db.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, r.notFound(err)
	}
	return r.open(&user)
}

// MarkSetupCompleted records that the user confirmed their authenticator.
func (r *Repository) MarkSetupCompleted(id uint) error {
	result := r.db.Model(&entities.User{}).Where("id = ?", id).Update("totp_setup_completed", true)
	if result.Error != nil {
		return fmt.Errorf("failed to update totp_setup_completed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// PurgeIncompleteRegistrations deletes accounts created before cutoff that
// never confirmed their authenticator. Returns the number removed.
func (r *Repository) PurgeIncompleteRegistrations(cutoff time.Time) (int64, error) {
	result := r.db.Where("totp_setup_completed = ? AND created_at < ?", false, cutoff).Delete(&entities.User{})
	return result.RowsAffected, result.Error
}

// Count returns the number of accounts.
func (r *Repository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&entities.User{}).Count(&count).Error
	return count, err
}

func (r *Repository) open(user *entities.User) (*entities.User, error) {
	secret, err := r.cipher.Decrypt(user.TOTPSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to open totp secret for user %d: %w", user.ID, err)
	}
	user.TOTPSecret = secret
	return user, nil
}

func (r *Repository) notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
