// Package commands assembles the authcore CLI.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "authcore",
		Short: "Authentication and session security service",
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (defaults to ./config.yaml)")

	rootCmd.AddCommand(
		NewServeCommand(),
		NewSweepCommand(),
		NewVersionCommand(),
	)

	return rootCmd
}

func loadConfig(cmd *cobra.Command) (string, error) {
	return cmd.Flags().GetString("config")
}
