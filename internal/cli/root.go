// Package cli holds the dipgate command line.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mrlokans/dipgate/internal/config"
	"github.com/mrlokans/dipgate/internal/entrypoint"
)

// ConfigLoader produces the configuration a command runs with.
type ConfigLoader func() *config.Config

// NewRootCommand builds the command tree. Running it without a subcommand
// starts the server.
func NewRootCommand(version string, load ConfigLoader) *cobra.Command {
	if load == nil {
		load = config.NewConfig
	}

	rootCmd := &cobra.Command{
		Use:   "dipgate",
		Short: "DipGate is a two-step login gate for the DipBot dashboard",
		Long: `DipGate guards the trading dashboard behind a password and a second factor.
Configuration is read from the environment.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.Run(load(), version)
		},
	}

	rootCmd.AddCommand(
		newServeCommand(version, load),
		newUserCommand(load),
		newOperatorCommand(load),
		newSecretCommand(),
	)
	return rootCmd
}

// Execute runs the command line and exits non-zero on failure.
func Execute(version string) {
	rootCmd := NewRootCommand(version, nil)
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

func newServeCommand(version string, load ConfigLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.Run(load(), version)
		},
	}
}
