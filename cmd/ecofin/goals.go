package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/ecofinance-notify/internal/cli"
	"github.com/Veraticus/ecofinance-notify/internal/model"
)

func goalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Manage savings goals",
	}
	cmd.AddCommand(goalsSetCmd())
	cmd.AddCommand(goalsContributeCmd())
	cmd.AddCommand(goalsListCmd())
	return cmd
}

func goalsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <name> <target>",
		Short: "Create a goal, or update one with --id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			id, _ := cmd.Flags().GetString("id")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				goal := model.Goal{ID: id, Name: args[0], Target: target}
				if id != "" {
					for _, g := range mustGoals(ctx, a) {
						if g.ID == id {
							goal.Current = g.Current
						}
					}
				}
				goal, err := a.ledger.SetGoal(ctx, goal)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Goal %s (%s) targets %s", goal.Name, goal.ID, formatMoney(goal.Target))))
				return nil
			})
		},
	}
	cmd.Flags().String("id", "", "update the goal with this id")
	return cmd
}

func mustGoals(ctx context.Context, a *app) []model.Goal {
	goals, err := a.ledger.Goals(ctx)
	if err != nil {
		return nil
	}
	return goals
}

func goalsContributeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contribute <id> <amount>",
		Short: "Add money to a goal and check the rules",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				goal, err := a.ledger.Contribute(ctx, args[0], amount)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				pct, ok := goal.Percent()
				fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s: %s of %s (%s)",
					goal.Name, formatMoney(goal.Current), formatMoney(goal.Target), formatPercent(pct, ok))))

				fired, err := a.check(ctx)
				reportFired(out, fired)
				return err
			})
		},
	}
}

func goalsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List goals and their progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				goals, err := a.ledger.Goals(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(goals) == 0 {
					fmt.Fprintln(out, cli.InfoStyle.Render("No goals yet. Use 'ecofin goals set' to create one."))
					return nil
				}

				fmt.Fprintln(out, cli.FormatTitle("Goals"))
				tw := newTable(out, "ID", "Name", "Current", "Target", "Progress")
				defer flush(tw)
				for _, g := range goals {
					pct, ok := g.Percent()
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", g.ID, g.Name, formatMoney(g.Current), formatMoney(g.Target), formatPercent(pct, ok))
				}
				return nil
			})
		},
	}
}
