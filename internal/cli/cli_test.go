package cli

import (
	"bytes"
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/dipgate/internal/config"
	"github.com/mrlokans/dipgate/internal/crypto"
	"github.com/mrlokans/dipgate/internal/database"
	"github.com/mrlokans/dipgate/internal/database/users"
)

const operatorSecret = "JBSWY3DPEHPK3PXP"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.Database{Path: filepath.Join(t.TempDir(), "cli.db")},
		Auth:     config.Auth{BcryptCost: 4},
		Operator: config.Operator{Email: "ops@dipbot.com", TOTPSecret: operatorSecret},
	}
}

func execute(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand("1.2.3", func() *config.Config { return cfg })
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func openUsers(t *testing.T, cfg *config.Config) *users.Repository {
	t.Helper()
	db, err := database.NewQuietDatabase(cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return users.NewRepository(db.DB, crypto.Plaintext{})
}

func TestVersion(t *testing.T) {
	out, err := execute(t, testConfig(t), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.2.3")
}

func TestSecretGenerate(t *testing.T) {
	cfg := testConfig(t)

	t.Run("session by default", func(t *testing.T) {
		out, err := execute(t, cfg, "secret", "generate")
		require.NoError(t, err)
		raw, err := hex.DecodeString(strings.TrimSpace(out))
		require.NoError(t, err)
		assert.Len(t, raw, 32)
	})

	t.Run("encryption", func(t *testing.T) {
		out, err := execute(t, cfg, "secret", "generate", "--kind", "encryption")
		require.NoError(t, err)
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out))
		require.NoError(t, err)
		assert.Len(t, raw, crypto.KeySize)
	})

	t.Run("totp", func(t *testing.T) {
		out, err := execute(t, cfg, "secret", "generate", "--kind", "totp")
		require.NoError(t, err)
		secret := strings.TrimSpace(out)
		require.NotEmpty(t, secret)
		_, err = base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
		assert.NoError(t, err)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := execute(t, cfg, "secret", "generate", "--kind", "ssh")
		assert.ErrorContains(t, err, `unknown secret kind "ssh"`)
	})
}

func TestUserCreate(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, cfg, "user", "create",
		"--email", "Jane@Example.com",
		"--first-name", "Jane",
		"--last-name", "Doe",
		"--password", "password123")
	require.NoError(t, err)

	assert.Contains(t, out, "<jane@example.com>")
	assert.Contains(t, out, "TOTP secret: ")
	assert.Contains(t, out, "otpauth://totp/")
	assert.Contains(t, out, "Enrollment is pending")

	user, err := openUsers(t, cfg).GetUserByEmail("jane@example.com")
	require.NoError(t, err)
	assert.False(t, user.SetupCompleted)
	assert.Contains(t, out, user.TOTPSecret)
}

func TestUserCreate_Confirmed(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, cfg, "user", "create",
		"--email", "sam@example.com",
		"--first-name", "Sam",
		"--last-name", "Lee",
		"--password", "password123",
		"--confirmed")
	require.NoError(t, err)
	assert.NotContains(t, out, "Enrollment is pending")

	user, err := openUsers(t, cfg).GetUserByEmail("sam@example.com")
	require.NoError(t, err)
	assert.True(t, user.SetupCompleted)
}

func TestUserCreate_Rejected(t *testing.T) {
	cfg := testConfig(t)

	t.Run("missing required flag", func(t *testing.T) {
		_, err := execute(t, cfg, "user", "create", "--email", "a@example.com")
		assert.ErrorContains(t, err, "password")
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := execute(t, cfg, "user", "create",
			"--email", "not-an-email",
			"--first-name", "A",
			"--last-name", "B",
			"--password", "password123")
		assert.EqualError(t, err, "invalid account: Invalid email format")
	})

	t.Run("short password", func(t *testing.T) {
		_, err := execute(t, cfg, "user", "create",
			"--email", "short@example.com",
			"--first-name", "A",
			"--last-name", "B",
			"--password", "short")
		assert.EqualError(t, err, "invalid account: Password must be at least 8 characters long")
	})

	t.Run("duplicate", func(t *testing.T) {
		args := []string{"user", "create",
			"--email", "dup@example.com",
			"--first-name", "A",
			"--last-name", "B",
			"--password", "password123"}
		_, err := execute(t, cfg, args...)
		require.NoError(t, err)
		_, err = execute(t, cfg, args...)
		assert.Error(t, err)
	})
}

func TestOperatorQR(t *testing.T) {
	t.Run("prints url", func(t *testing.T) {
		out, err := execute(t, testConfig(t), "operator", "qr")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "otpauth://totp/"))
		assert.Contains(t, out, "secret="+operatorSecret)
	})

	t.Run("writes png", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "operator.png")
		out, err := execute(t, testConfig(t), "operator", "qr", "--png", path, "--size", "128")
		require.NoError(t, err)
		assert.Contains(t, out, "QR code written to "+path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
	})

	t.Run("no secret", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Operator.TOTPSecret = ""
		_, err := execute(t, cfg, "operator", "qr")
		assert.ErrorIs(t, err, ErrNoOperatorSecret)
	})
}
