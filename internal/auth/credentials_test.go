package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/dipgate/internal/database"
	"github.com/mrlokans/dipgate/internal/database/users"
	"github.com/mrlokans/dipgate/internal/entities"
)

func setupUsers(t *testing.T) *users.Repository {
	t.Helper()

	db, err := database.NewQuietDatabase(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return users.NewRepository(db.DB, nil)
}

func createUser(t *testing.T, repo *users.Repository, email, password string, confirmed bool) *entities.User {
	t.Helper()

	hash, err := HashPassword(password, 4)
	require.NoError(t, err)

	user := &entities.User{
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        email,
		PasswordHash: hash,
		TOTPSecret:   "USERSECRET234567",
	}
	require.NoError(t, repo.CreateUser(user))
	if confirmed {
		require.NoError(t, repo.MarkSetupCompleted(user.ID))
	}
	return user
}

func TestOperatorCredentials(t *testing.T) {
	op := OperatorCredentials{Username: "admin", Password: "admin", Email: "admin@dipbot.com", Name: "Admin", TOTPSecret: testSecret}
	ctx := context.Background()

	id, err := op.Verify(ctx, "admin", "admin")
	require.NoError(t, err)
	assert.True(t, id.Operator)
	assert.Equal(t, uint(0), id.UserID)
	assert.Equal(t, testSecret, id.TOTPSecret)

	_, err = op.Verify(ctx, "admin", "Admin")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = op.Verify(ctx, "root", "admin")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	disabled := OperatorCredentials{}
	_, err = disabled.Verify(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserCredentials(t *testing.T) {
	repo := setupUsers(t)
	user := createUser(t, repo, "jane@example.com", "password123", false)
	ctx := context.Background()

	store := NewUserCredentials(repo, false)

	id, err := store.Verify(ctx, " Jane@Example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)
	assert.Equal(t, "Jane Doe", id.Name)
	assert.Equal(t, "USERSECRET234567", id.TOTPSecret)
	assert.False(t, id.Operator)

	_, err = store.Verify(ctx, "jane@example.com", "password124")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = store.Verify(ctx, "john@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unknown accounts look the same as wrong passwords")

	strict := NewUserCredentials(repo, true)
	_, err = strict.Verify(ctx, "jane@example.com", "password123")
	assert.ErrorIs(t, err, ErrSetupIncomplete)

	require.NoError(t, repo.MarkSetupCompleted(user.ID))
	_, err = strict.Verify(ctx, "jane@example.com", "password123")
	assert.NoError(t, err)
}

func TestUserCredentials_UnknownAccountHashCost(t *testing.T) {
	tests := []struct {
		name string
		cost int
		want int
	}{
		{"default", 0, bcrypt.DefaultCost},
		{"configured", 6, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewUserCredentials(nil, false).WithHashCost(tt.cost)
			cost, err := bcrypt.Cost(store.unknownAccountHash())
			require.NoError(t, err)
			assert.Equal(t, tt.want, cost)
		})
	}
}

type stubStore struct {
	id  *Identity
	err error
}

func (s stubStore) Verify(context.Context, string, string) (*Identity, error) {
	return s.id, s.err
}

func TestChainCredentials(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("database unavailable")

	chain := ChainCredentials{
		stubStore{err: ErrInvalidCredentials},
		stubStore{id: &Identity{Email: "second@example.com"}},
	}
	id, err := chain.Verify(ctx, "u", "p")
	require.NoError(t, err)
	assert.Equal(t, "second@example.com", id.Email)

	chain = ChainCredentials{stubStore{err: boom}, stubStore{id: &Identity{}}}
	_, err = chain.Verify(ctx, "u", "p")
	assert.ErrorIs(t, err, boom)

	chain = ChainCredentials{stubStore{err: ErrInvalidCredentials}}
	_, err = chain.Verify(ctx, "u", "p")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = ChainCredentials{}.Verify(ctx, "u", "p")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
