package entrypoint

import (
	"log"
	"strconv"
	"strings"

	"github.com/mrlokans/dipgate/internal/config"
)

// printBanner logs how to reach the gate and, for TOTP modes, how to
// enroll the operator's authenticator.
func printBanner(cfg *config.Config, mode config.VerifierMode, generatedSecret string) {
	host := cfg.HTTP.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	scheme := "http"
	if cfg.Auth.SecureCookies {
		scheme = "https"
	}

	lines := []string{
		"========================================",
		"dipgate login gate",
		"  Environment:  " + cfg.Global.Environment,
		"  Verifier:     " + string(mode),
		"  Login:        " + scheme + "://" + host + ":" + strconv.Itoa(int(cfg.HTTP.Port)) + "/login",
	}

	switch mode {
	case config.VerifierOAuth:
		lines = append(lines, "  Second step:  Google sign-in via "+cfg.OAuth.GoogleCallbackURL)
	default:
		lines = append(lines, "  Operator 2FA: open /setup-2fa after the password step to scan the QR code")
		if generatedSecret != "" {
			lines = append(lines, "  Operator key: "+generatedSecret+" (generated, not persisted)")
		}
	}
	if mode == config.VerifierPerUserTOTP {
		lines = append(lines, "  Sign up:      /signup")
	}
	lines = append(lines, "========================================")

	log.Print("\n" + strings.Join(lines, "\n"))
}
