package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Crosstalk CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crosstalk",
		Short: "Crosstalk - a multi-protocol chat bot host",
		Long: `Crosstalk hosts chat bots across multiple protocols, with shared
accounts, group-based permissions, and pluggable command handlers.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewMkpasswdCmd())

	return cmd
}
