package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/dipgate/internal/config"
)

const testSecret = "JBSWY3DPEHPK3PXP"

func newTestTOTP(now time.Time) *TOTP {
	t := NewTOTP(config.TOTP{Issuer: "DipBot Auth", Skew: 2, Period: 30, Digits: 6})
	t.Now = func() time.Time { return now }
	return t
}

func TestTOTP_Defaults(t *testing.T) {
	tp := NewTOTP(config.TOTP{})

	assert.Equal(t, "DipBot Auth", tp.Issuer)
	assert.Equal(t, uint(30), tp.Period)
	assert.Equal(t, 6, tp.Digits.Length())
}

func TestTOTP_Window(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 15, 0, time.UTC)
	tp := newTestTOTP(now)

	tests := []struct {
		name   string
		offset int
		want   bool
	}{
		{"current step", 0, true},
		{"one step behind", -1, true},
		{"one step ahead", 1, true},
		{"two steps behind", -2, true},
		{"two steps ahead", 2, true},
		{"three steps behind", -3, false},
		{"three steps ahead", 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := tp.GenerateCode(testSecret, now.Add(time.Duration(tt.offset)*30*time.Second))
			require.NoError(t, err)

			ok, err := tp.Validate(testSecret, code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestTOTP_ValidateRejectsMalformedInput(t *testing.T) {
	tp := newTestTOTP(time.Now())

	ok, err := tp.Validate(testSecret, "12345")
	assert.NoError(t, err, "short codes are just wrong")
	assert.False(t, ok)

	ok, err = tp.Validate(testSecret, "")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = tp.Validate("", "123456")
	assert.Error(t, err)

	_, err = tp.Validate("not base32!", "123456")
	assert.Error(t, err)
}

func TestTOTP_GenerateSecret(t *testing.T) {
	tp := newTestTOTP(time.Now())

	a, err := tp.GenerateSecret("jane@example.com")
	require.NoError(t, err)
	b, err := tp.GenerateSecret("jane@example.com")
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)

	code, err := tp.GenerateCode(a, tp.Now())
	require.NoError(t, err)
	ok, err := tp.Validate(a, code)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTOTP_Key(t *testing.T) {
	tp := newTestTOTP(time.Now())

	key, err := tp.Key(testSecret, "jane@example.com")
	require.NoError(t, err)

	assert.Equal(t, "totp", key.Type())
	assert.Equal(t, "DipBot Auth", key.Issuer())
	assert.Equal(t, "jane@example.com", key.AccountName())
	assert.Equal(t, testSecret, key.Secret())
}

func TestTOTP_QRCodeDataURL(t *testing.T) {
	tp := newTestTOTP(time.Now())

	dataURL, err := tp.QRCodeDataURL(testSecret, "jane@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))
}

func TestTOTPVerifier_SecretFor(t *testing.T) {
	tp := newTestTOTP(time.Now())
	user := &Identity{UserID: 7, TOTPSecret: "USERSECRET234567"}
	operator := &Identity{Operator: true}

	shared := NewSharedSecretVerifier(tp, testSecret)
	assert.Equal(t, testSecret, shared.SecretFor(user))
	assert.Equal(t, config.VerifierSharedTOTP, shared.Mode())
	assert.Equal(t, "/2fa", shared.EntryPath())

	perUser := NewPerUserVerifier(tp, testSecret)
	assert.Equal(t, "USERSECRET234567", perUser.SecretFor(user))
	assert.Equal(t, testSecret, perUser.SecretFor(operator))
	assert.Equal(t, config.VerifierPerUserTOTP, perUser.Mode())
}
