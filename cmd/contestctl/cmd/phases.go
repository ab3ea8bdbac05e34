package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spado/songcontest/internal/app"
	"github.com/spado/songcontest/internal/model"
	"github.com/spf13/cobra"
)

func PhasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phases",
		Short: "Contest phases",
	}

	cmd.AddCommand(phasesListCmd())
	cmd.AddCommand(phasesAdvanceCmd())
	cmd.AddCommand(phasesAddCmd())
	return cmd
}

func phasesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List phases, latest deadline first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				phases, err := a.PhaseService.ListPhases(cmd.Context())
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTATUS\tDEADLINE\t")
				for _, p := range phases {
					fmt.Fprintf(tw, "%s\t%s\t%s (%s)\t\n", p.ID, p.Status, p.DeadlineDate.Format(time.RFC3339), humanize.Time(p.DeadlineDate))
				}
				return tw.Flush()
			})
		},
	}
}

func phasesAdvanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance",
		Short: "Advance every phase whose deadline has passed by one step",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				advanced, err := a.PhaseService.AdvanceExpiredPhases(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "advanced %d phase(s)\n", advanced)
				return nil
			})
		},
	}
}

func phasesAddCmd() *cobra.Command {
	var (
		status      string
		deadline    string
		description string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a contest phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := time.Parse(time.RFC3339, deadline)
			if err != nil {
				return fmt.Errorf("--deadline must be RFC 3339, e.g. 2026-12-31T23:59:00Z: %w", err)
			}

			return withApp(func(a *app.App) error {
				phase, err := a.PhaseService.CreatePhase(cmd.Context(), status, description, at)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created phase %s (%s until %s)\n", phase.ID, phase.Status, phase.DeadlineDate.Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", model.PhaseStatusOpen, "open_for_submission, judging or winner_announced")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline in RFC 3339")
	cmd.Flags().StringVar(&description, "description", "", "text shown to contestants")
	_ = cmd.MarkFlagRequired("deadline")
	return cmd
}
