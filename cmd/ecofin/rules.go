package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/ecofinance-notify/internal/cli"
	"github.com/Veraticus/ecofinance-notify/internal/rules"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage notification rules",
	}
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(ruleActionCmd("enable <id>", "Enable a rule", func(ctx context.Context, s *rules.Store, id string) error {
		return s.SetEnabled(ctx, id, true)
	}))
	cmd.AddCommand(ruleActionCmd("disable <id>", "Disable a rule", func(ctx context.Context, s *rules.Store, id string) error {
		return s.SetEnabled(ctx, id, false)
	}))
	cmd.AddCommand(ruleActionCmd("remove <id>", "Remove a rule", func(ctx context.Context, s *rules.Store, id string) error {
		return s.Remove(ctx, id)
	}))
	return cmd
}

func ruleActionCmd(use, short string, act func(context.Context, *rules.Store, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := act(ctx, a.rules, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Rule "+args[0]+" updated"))
				return nil
			})
		},
	}
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				out := cmd.OutOrStdout()
				tw := newTable(out, "ID", "Name", "Category", "Enabled", "Cooldown", "Fired")
				defer flush(tw)
				for _, r := range a.rules.List() {
					fired := fmt.Sprintf("%d", r.OccurrenceCount)
					if r.MaxOccurrences > 0 {
						fired += fmt.Sprintf("/%d", r.MaxOccurrences)
					}
					enabled := onOff(r.Enabled)
					if r.Exhausted() {
						enabled = cli.SubtleStyle.Render("exhausted")
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						r.ID, r.Name, r.Category, enabled, a.engine.EffectiveCooldown(r), fired)
				}
				return nil
			})
		},
	}
}

func rulesAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>",
		Short: "Add the rules defined in a YAML or JSON file",
		Long: `Add rules from a file holding a "rules" list. Each entry has an id,
name, category, conditions and actions, the same shape the rule store
persists. Rules whose id already exists are rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := rules.LoadSpecs(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				now := time.Now()
				for _, spec := range specs {
					rule, err := spec.Rule(now)
					if err != nil {
						return err
					}
					if err := a.rules.Add(ctx, rule); err != nil {
						return fmt.Errorf("rule %s: %w", rule.ID, err)
					}
					fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Added rule %s (%s)", rule.ID, rule.Name)))
				}
				return nil
			})
		},
	}
}
