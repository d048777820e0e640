package main

import (
	"context"
	"fmt"
	"time"

	"github.com/carecall/carecall/internal/models"
	"github.com/spf13/cobra"
)

const escalationCmdTimeout = 30 * time.Second

func escalationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "escalation",
		Short: "Inspect and close escalations",
	}
	cmd.AddCommand(escalationListCmd())
	cmd.AddCommand(escalationUpdateCmd())
	cmd.AddCommand(escalationCompleteCmd())
	return cmd
}

func escalationListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <episode-id>",
		Short: "Print the episode's active and in-progress escalations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				open, err := a.escalations.GetActiveEscalations(ctx, args[0])
				if err != nil {
					return err
				}
				if open == nil {
					open = []models.EscalationProtocol{}
				}
				return printJSON(cmd.OutOrStdout(), open)
			})
		},
	}
}

func escalationUpdateCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "update <escalation-id> <active|in-progress|completed|failed>",
		Short: "Move an escalation to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				esc, err := a.escalations.UpdateEscalationStatus(ctx, args[0], models.EscalationStatus(args[1]), reason)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), esc)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "failure reason, required when the status is failed")
	return cmd
}

func escalationCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <episode-id>",
		Short: "Complete every open escalation of an episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				ids, err := a.escalations.CompleteEpisodeEscalations(ctx, args[0])
				if perr := printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"episodeId": args[0],
					"completed": ids,
				}); perr != nil {
					return perr
				}
				return err
			})
		},
	}
}

// withApp bootstraps and wires the engines for a one-shot command.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	rt, err := bootstrap()
	if err != nil {
		return err
	}
	defer rt.close()

	a, err := rt.wire()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), escalationCmdTimeout)
	defer cancel()
	if err := fn(ctx, a); err != nil {
		return fmt.Errorf("%s: %w", cmd.CommandPath(), err)
	}
	return nil
}
