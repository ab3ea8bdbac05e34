package main

import (
	"os"

	"github.com/spado/songcontest/cmd/contestctl/cmd"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "contestctl",
		Short:         "Operator tools for the song contest",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.PhasesCmd())
	rootCmd.AddCommand(cmd.CodesCmd())
	rootCmd.AddCommand(cmd.UsersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
