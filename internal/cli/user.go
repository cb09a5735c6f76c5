package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/dipgate/internal/auth"
	"github.com/mrlokans/dipgate/internal/crypto"
	"github.com/mrlokans/dipgate/internal/database"
	"github.com/mrlokans/dipgate/internal/database/users"
)

type userCreateOptions struct {
	email     string
	firstName string
	lastName  string
	password  string
	confirmed bool
}

func newUserCommand(load ConfigLoader) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage database accounts",
	}
	userCmd.AddCommand(newUserCreateCommand(load))
	return userCmd
}

func newUserCreateCommand(load ConfigLoader) *cobra.Command {
	opts := &userCreateOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account and print its authenticator secret",
		Long: `Create a database account the same way the signup page does.
The new account's TOTP secret and otpauth URL are printed so they can be
added to an authenticator app. With --confirmed the enrollment step is
marked complete.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(cmd, load, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.email, "email", "", "account email (required)")
	flags.StringVar(&opts.firstName, "first-name", "", "first name (required)")
	flags.StringVar(&opts.lastName, "last-name", "", "last name (required)")
	flags.StringVar(&opts.password, "password", "", "account password (required)")
	flags.BoolVar(&opts.confirmed, "confirmed", false, "mark authenticator enrollment as completed")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runUserCreate(cmd *cobra.Command, load ConfigLoader, opts *userCreateOptions) error {
	cfg := load()

	cipher, err := crypto.NewCipher(cfg.Auth.EncryptionKey)
	if err != nil {
		return fmt.Errorf("invalid AUTH_ENCRYPTION_KEY: %w", err)
	}

	db, err := database.NewQuietDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	tp := auth.NewTOTP(cfg.TOTP)
	registrar := auth.NewRegistrar(users.NewRepository(db.DB, cipher), tp, cfg.Auth.BcryptCost)

	user, err := registrar.Register(auth.RegistrationForm{
		FirstName:       opts.firstName,
		LastName:        opts.lastName,
		Email:           opts.email,
		Password:        opts.password,
		ConfirmPassword: opts.password,
		AgreeTerms:      true,
	})
	if err != nil {
		var invalid *auth.ValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("invalid account: %s", invalid.Message)
		}
		return err
	}

	if opts.confirmed {
		code, err := tp.GenerateCode(user.TOTPSecret, tp.Now())
		if err != nil {
			return err
		}
		if err := registrar.ConfirmEnrollment(auth.Enrollment{UserID: user.ID, Email: user.Email, Secret: user.TOTPSecret}, code); err != nil {
			return fmt.Errorf("failed to confirm enrollment: %w", err)
		}
	}

	key, err := tp.Key(user.TOTPSecret, user.Email)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created user %d <%s>\n", user.ID, user.Email)
	fmt.Fprintf(out, "TOTP secret: %s\n", user.TOTPSecret)
	fmt.Fprintf(out, "otpauth URL: %s\n", key.URL())
	if !opts.confirmed {
		fmt.Fprintln(out, "Enrollment is pending until the first code is confirmed at /setup-user-2fa.")
	}
	return nil
}
