// Package cmd implements the sftp-mcp command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sftp-mcp/internal/config"
	"sftp-mcp/internal/logging"
)

// app carries what PersistentPreRunE loaded to the subcommands.
type app struct {
	settings config.Settings
	profiles config.Profiles
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "sftp-mcp",
		Short:         "SFTP filesystem access over the Model Context Protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			a.settings = settings

			if err := logging.Init(logging.Config{
				Level:      settings.LogLevel,
				Format:     settings.LogFormat,
				OutputPath: settings.LogOutput,
			}); err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}

			profiles, err := config.LoadProfiles(settings.ProfilesPath)
			if err != nil {
				return err
			}
			a.profiles = profiles
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	rootCmd.AddCommand(
		newServeCmd(a),
		newLsCmd(a),
		newStatCmd(a),
		newFingerprintCmd(a),
		newProfilesCmd(a),
	)
	return rootCmd
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
