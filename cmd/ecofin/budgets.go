package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/ecofinance-notify/internal/cli"
)

func budgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budgets",
		Short: "Manage monthly category budgets",
	}
	cmd.AddCommand(budgetsSetCmd())
	cmd.AddCommand(budgetsListCmd())
	return cmd
}

func budgetsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <category> <limit>",
		Short: "Create or replace the monthly limit of a category",
		Example: `  ecofin budgets set Transporte 200
  ecofin budgets set "Lazer" 150,50`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.ledger.SetBudget(ctx, args[0], limit); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Budget for %s set to %s", args[0], formatMoney(limit))))

				fired, err := a.check(ctx)
				reportFired(out, fired)
				return err
			})
		},
	}
}

func budgetsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List budgets with this month's spending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				budgets, err := a.ledger.Budgets(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(budgets) == 0 {
					fmt.Fprintln(out, cli.InfoStyle.Render("No budgets yet. Use 'ecofin budgets set' to create one."))
					return nil
				}

				fmt.Fprintln(out, cli.FormatTitle("Budgets"))
				tw := newTable(out, "Category", "Spent", "Limit", "Used")
				defer flush(tw)
				for _, b := range budgets {
					pct, ok := b.Percent()
					used := formatPercent(pct, ok)
					switch {
					case ok && pct >= 100:
						used = cli.ErrorStyle.Render(used)
					case ok && pct >= 80:
						used = cli.WarningStyle.Render(used)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Category, formatMoney(b.Spent), formatMoney(b.Limit), used)
				}
				return nil
			})
		},
	}
}
