package cmd

import (
	"fmt"

	"github.com/spado/songcontest/internal/app"
	"github.com/spf13/cobra"
)

func UsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "User accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "promote <username>",
		Short: "Grant staff rights and activate the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				user, err := a.UserService.Promote(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now staff\n", user.Username)
				return nil
			})
		},
	})
	return cmd
}
