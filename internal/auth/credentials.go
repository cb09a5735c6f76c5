package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/dipgate/internal/database/users"
	"github.com/mrlokans/dipgate/internal/entities"
)

// Identity is the account a successful password check resolved to.
type Identity struct {
	UserID         uint // Zero for the operator account
	Email          string
	Name           string
	TOTPSecret     string
	SetupCompleted bool
	Operator       bool
}

// CredentialStore checks a username and password pair.
type CredentialStore interface {
	Verify(ctx context.Context, username, password string) (*Identity, error)
}

// UserStore is the part of the user repository the auth package needs.
type UserStore interface {
	CreateUser(user *entities.User) error
	EmailExists(email string) (bool, error)
	GetUserByID(id uint) (*entities.User, error)
	GetUserByEmail(email string) (*entities.User, error)
	MarkSetupCompleted(id uint) error
}

// OperatorCredentials is the single configured operator account.
type OperatorCredentials struct {
	Username   string
	Password   string
	Email      string
	Name       string
	TOTPSecret string
}

// Verify compares both values in constant time. An empty username disables
// the account.
func (o OperatorCredentials) Verify(_ context.Context, username, password string) (*Identity, error) {
	if o.Username == "" {
		return nil, ErrInvalidCredentials
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(o.Username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(o.Password))
	if userOK&passOK != 1 {
		return nil, ErrInvalidCredentials
	}

	return &Identity{
		Email:          o.Email,
		Name:           o.Name,
		TOTPSecret:     o.TOTPSecret,
		SetupCompleted: true,
		Operator:       true,
	}, nil
}

// timingPassword is hashed once per store and compared against when the
// email is unknown, so both failure paths cost one bcrypt comparison at the
// same cost.
const timingPassword = "dipgate-timing-equaliser"

// UserCredentials checks registered accounts by email and bcrypt hash.
type UserCredentials struct {
	users        UserStore
	requireSetup bool
	hashCost     int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewUserCredentials creates a store backed by the user repository. With
// requireSetup set, accounts that never confirmed enrollment are refused.
func NewUserCredentials(store UserStore, requireSetup bool) *UserCredentials {
	return &UserCredentials{users: store, requireSetup: requireSetup}
}

// WithHashCost sets the bcrypt cost account hashes are created with. Zero
// means bcrypt.DefaultCost.
func (u *UserCredentials) WithHashCost(cost int) *UserCredentials {
	u.hashCost = cost
	return u
}

func (u *UserCredentials) unknownAccountHash() []byte {
	u.dummyOnce.Do(func() {
		hash, err := HashPassword(timingPassword, u.hashCost)
		if err != nil {
			hash, _ = HashPassword(timingPassword, bcrypt.DefaultCost)
		}
		u.dummyHash = []byte(hash)
	})
	return u.dummyHash
}

func (u *UserCredentials) Verify(_ context.Context, username, password string) (*Identity, error) {
	email := strings.TrimSpace(username)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := u.users.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(u.unknownAccountHash(), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("check password: %w", err)
	}

	if u.requireSetup && !user.SetupCompleted {
		return nil, ErrSetupIncomplete
	}

	return &Identity{
		UserID:         user.ID,
		Email:          user.Email,
		Name:           user.DisplayName(),
		TOTPSecret:     user.TOTPSecret,
		SetupCompleted: user.SetupCompleted,
	}, nil
}

// ChainCredentials tries each store in order. Only ErrInvalidCredentials
// moves on to the next store; any other error ends the search.
type ChainCredentials []CredentialStore

func (c ChainCredentials) Verify(ctx context.Context, username, password string) (*Identity, error) {
	for _, store := range c {
		id, err := store.Verify(ctx, username, password)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrInvalidCredentials) {
			return nil, err
		}
	}
	return nil, ErrInvalidCredentials
}
