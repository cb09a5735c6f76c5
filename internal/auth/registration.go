package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mrlokans/dipgate/internal/database/users"
	"github.com/mrlokans/dipgate/internal/entities"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// RegistrationForm is a submitted signup form.
type RegistrationForm struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
	AgreeTerms      bool
	Newsletter      bool
}

// Validate checks the form in a fixed order and reports the first problem.
func (f RegistrationForm) Validate() error {
	if strings.TrimSpace(f.FirstName) == "" || strings.TrimSpace(f.LastName) == "" ||
		strings.TrimSpace(f.Email) == "" || f.Password == "" || f.ConfirmPassword == "" {
		return invalid("form", "All fields are required")
	}
	email := strings.TrimSpace(f.Email)
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return invalid("email", "Invalid email format")
	}
	if f.Password != f.ConfirmPassword {
		return invalid("confirmPassword", "Passwords do not match")
	}
	if len(f.Password) < MinPasswordLength {
		return invalid("password", "Password must be at least 8 characters long")
	}
	if len(f.Password) > maxPasswordBytes {
		return invalid("password", "Password exceeds maximum length of 72 bytes")
	}
	if !f.AgreeTerms {
		return invalid("agreeTerms", "You must agree to the terms and conditions")
	}
	return nil
}

// Registrar creates accounts and confirms their authenticators.
type Registrar struct {
	users      UserStore
	totp       *TOTP
	bcryptCost int
}

// NewRegistrar creates a registrar. bcryptCost 0 uses the bcrypt default.
func NewRegistrar(store UserStore, t *TOTP, bcryptCost int) *Registrar {
	return &Registrar{users: store, totp: t, bcryptCost: bcryptCost}
}

// Register validates the form and creates an unconfirmed account with a
// fresh TOTP secret. Nothing is written when validation fails.
func (r *Registrar) Register(form RegistrationForm) (*entities.User, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(form.Email))
	exists, err := r.users.EmailExists(email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrDuplicateAccount
	}

	hash, err := HashPassword(form.Password, r.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	secret, err := r.totp.GenerateSecret(email)
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		FirstName:       strings.TrimSpace(form.FirstName),
		LastName:        strings.TrimSpace(form.LastName),
		Email:           email,
		PasswordHash:    hash,
		TOTPSecret:      secret,
		NewsletterOptIn: form.Newsletter,
	}
	if err := r.users.CreateUser(user); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// ConfirmEnrollment checks a code against the enrollment secret and marks
// the account's setup as completed.
func (r *Registrar) ConfirmEnrollment(e Enrollment, code string) error {
	ok, err := r.totp.Validate(e.Secret, code)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}
	if !ok {
		return ErrInvalidCode
	}
	if err := r.users.MarkSetupCompleted(e.UserID); err != nil {
		return fmt.Errorf("mark setup completed: %w", err)
	}
	return nil
}

// Recover re-checks an account's password and returns it so its existing
// secret can be shown again. The secret is not rotated.
func (r *Registrar) Recover(email, password string) (*entities.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := r.users.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := CheckPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return user, nil
}
