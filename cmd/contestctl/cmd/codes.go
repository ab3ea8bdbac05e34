package cmd

import (
	"fmt"

	"github.com/spado/songcontest/internal/app"
	"github.com/spf13/cobra"
)

func CodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Verification codes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired verification codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				removed, err := a.VerificationService.CleanupExpired(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired code(s)\n", removed)
				return nil
			})
		},
	})
	return cmd
}
