package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/ecofinance-notify/internal/cli"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Evaluate every rule against the ledger once",
		Long: `Evaluate every enabled rule against the current budgets, goals and
recent transactions. Rules that fire are delivered to the notification
center, subject to preferences, quiet hours and daily caps.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				before := a.inbox.QueuedCount()
				fired, err := a.check(ctx)
				reportFired(out, fired)
				if queued := a.inbox.QueuedCount() - before; queued > 0 {
					fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%d held back until quiet hours end", queued)))
				}
				fmt.Fprintln(out, cli.SubtleStyle.Render(fmt.Sprintf("%d unread notifications", a.inbox.UnreadCount())))
				return err
			})
		},
	}
}
