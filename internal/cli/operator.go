package cli

import (
	"errors"
	"fmt"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrlokans/dipgate/internal/auth"
)

// ErrNoOperatorSecret is returned when the operator enrollment code is
// requested without a configured secret.
var ErrNoOperatorSecret = errors.New("TOTP_SECRET is not set; generate one with 'dipgate secret generate --kind totp'")

func newOperatorCommand(load ConfigLoader) *cobra.Command {
	operatorCmd := &cobra.Command{
		Use:   "operator",
		Short: "Operator account tools",
	}
	operatorCmd.AddCommand(newOperatorQRCommand(load))
	return operatorCmd
}

func newOperatorQRCommand(load ConfigLoader) *cobra.Command {
	var pngPath string
	var size int

	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Print the operator's otpauth URL",
		Long:  `Print the otpauth URL for the configured operator secret and optionally write it as a PNG QR code.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			if cfg.Operator.TOTPSecret == "" {
				return ErrNoOperatorSecret
			}

			key, err := auth.NewTOTP(cfg.TOTP).Key(cfg.Operator.TOTPSecret, cfg.Operator.Email)
			if err != nil {
				return fmt.Errorf("invalid TOTP_SECRET: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.URL())

			if pngPath == "" {
				return nil
			}
			img, err := key.Image(size, size)
			if err != nil {
				return fmt.Errorf("failed to render qr code: %w", err)
			}
			f, err := os.Create(pngPath)
			if err != nil {
				return err
			}
			if err := png.Encode(f, img); err != nil {
				f.Close()
				return fmt.Errorf("failed to write %s: %w", pngPath, err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "QR code written to %s\n", pngPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&pngPath, "png", "", "write the QR code to this PNG file")
	cmd.Flags().IntVar(&size, "size", 256, "QR code width and height in pixels")
	return cmd
}
