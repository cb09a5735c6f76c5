package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/dipgate/internal/auth"
	"github.com/mrlokans/dipgate/internal/config"
	"github.com/mrlokans/dipgate/internal/crypto"
)

// Secret kinds accepted by 'secret generate'.
const (
	SecretSession    = "session"
	SecretEncryption = "encryption"
	SecretTOTP       = "totp"
)

func newSecretCommand() *cobra.Command {
	secretCmd := &cobra.Command{
		Use:   "secret",
		Short: "Secret helpers",
	}
	secretCmd.AddCommand(newSecretGenerateCommand())
	return secretCmd
}

func newSecretGenerateCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a fresh secret",
		Long: `Print a fresh secret for one of the settings below:

  session     AUTH_SESSION_SECRET (hex)
  encryption  AUTH_ENCRYPTION_KEY (base64 AES-256 key)
  totp        TOTP_SECRET (base32)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := generateSecret(kind)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", SecretSession, "session, encryption or totp")
	return cmd
}

func generateSecret(kind string) (string, error) {
	switch kind {
	case SecretSession:
		return auth.GenerateSessionSecret()
	case SecretEncryption:
		return crypto.GenerateKey()
	case SecretTOTP:
		return auth.NewTOTP(config.TOTP{}).GenerateSecret("operator")
	default:
		return "", fmt.Errorf("unknown secret kind %q", kind)
	}
}
