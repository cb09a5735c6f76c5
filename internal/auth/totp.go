package auth

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"net/url"
	"strconv"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/mrlokans/dipgate/internal/config"
)

// qrSize is the edge length in pixels of rendered enrollment codes.
const qrSize = 200

// TOTP generates and checks RFC 6238 codes with one fixed set of parameters.
type TOTP struct {
	Issuer string
	Skew   uint
	Period uint
	Digits otp.Digits

	// Now is the clock used for validation; tests replace it.
	Now func() time.Time
}

// NewTOTP builds a TOTP from configuration, falling back to 30 second steps,
// six digits and a window of two steps.
func NewTOTP(cfg config.TOTP) *TOTP {
	t := &TOTP{
		Issuer: cfg.Issuer,
		Skew:   cfg.Skew,
		Period: cfg.Period,
		Digits: otp.Digits(cfg.Digits),
		Now:    time.Now,
	}
	if t.Issuer == "" {
		t.Issuer = "DipBot Auth"
	}
	if t.Period == 0 {
		t.Period = 30
	}
	if t.Digits != otp.DigitsSix && t.Digits != otp.DigitsEight {
		t.Digits = otp.DigitsSix
	}
	return t
}

func (t *TOTP) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    t.Period,
		Skew:      t.Skew,
		Digits:    t.Digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateSecret creates a fresh base32 secret for account.
func (t *TOTP) GenerateSecret(account string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.Issuer,
		AccountName: account,
		Period:      t.Period,
		Digits:      t.Digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return key.Secret(), nil
}

// Validate reports whether code matches secret within the skew window. A
// code of the wrong length is simply not valid; a malformed secret is an error.
func (t *TOTP) Validate(secret, code string) (bool, error) {
	if secret == "" {
		return false, errors.New("no totp secret bound")
	}

	ok, err := totp.ValidateCustom(code, secret, t.Now().UTC(), t.opts())
	if err != nil {
		if errors.Is(err, otp.ErrValidateInputInvalidLength) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// GenerateCode returns the code for secret at the given time.
func (t *TOTP) GenerateCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), t.opts())
}

// Key builds the otpauth key an authenticator app imports for secret.
func (t *TOTP) Key(secret, account string) (*otp.Key, error) {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", t.Issuer)
	v.Set("algorithm", otp.AlgorithmSHA1.String())
	v.Set("digits", t.Digits.String())
	v.Set("period", strconv.FormatUint(uint64(t.Period), 10))

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + t.Issuer + ":" + account,
		RawQuery: v.Encode(),
	}
	return otp.NewKeyFromURL(u.String())
}

// QRCodeDataURL renders the enrollment code for secret as a PNG data URL.
func (t *TOTP) QRCodeDataURL(secret, account string) (string, error) {
	key, err := t.Key(secret, account)
	if err != nil {
		return "", err
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
