// Package main provides the construct-calc binary: the calculator HTTP API
// plus offline commands for evaluating expressions and templates.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"construct-calc/internal/observability"
)

const appName = "construct-calc"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	envFile  string
	logLevel string
}

func rootCmd() *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Construction quantity calculator",
		Long: `construct-calc evaluates arithmetic formulas over named variables for
construction line items.

Without a subcommand it serves the HTTP API (see "serve").`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), g)
		},
	}

	cmd.PersistentFlags().StringVar(&g.envFile, "env-file", "", "Env file to load (default .env when present)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(&g),
		evalCmd(),
		runCmd(),
		seedCmd(&g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, observability.Version)
			},
		},
	)

	return cmd
}
