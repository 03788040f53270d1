package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/ecofinance-notify/internal/cli"
	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
)

func prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prefs",
		Aliases: []string{"preferences"},
		Short:   "Show and change notification preferences",
	}
	cmd.AddCommand(prefsShowCmd())
	cmd.AddCommand(prefsToggleCmd())
	cmd.AddCommand(prefsFrequencyCmd())
	cmd.AddCommand(prefsQuietCmd())
	cmd.AddCommand(prefsGlobalCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the default preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.inbox.ResetPreferences(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Preferences reset to defaults"))
				return nil
			})
		},
	})
	return cmd
}

func prefsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				p := a.inbox.Preferences()
				out := cmd.OutOrStdout()

				var b strings.Builder
				fmt.Fprintf(&b, "Notifications: %s\n", onOff(p.GlobalEnabled))
				qh := "off"
				if p.QuietHours.Enabled {
					qh = fmt.Sprintf("%s-%s (%s)", p.QuietHours.StartTime, p.QuietHours.EndTime, p.QuietHours.Timezone)
					if p.QuietHours.ExcludeWeekends {
						qh += ", not on weekends"
					}
				}
				fmt.Fprintf(&b, "Quiet hours:   %s\n", qh)
				dismiss := "off"
				if p.AutoDismissing {
					dismiss = fmt.Sprintf("after %ds", p.AutoDismissDelay)
				}
				fmt.Fprintf(&b, "Auto dismiss:  %s\n", dismiss)
				fmt.Fprintf(&b, "Version:       %d", p.Version)
				fmt.Fprintln(out, cli.RenderBox("Preferences", b.String()))

				tw := newTable(out, "Category", "Enabled", "Channels", "Frequency", "Quiet hours")
				defer flush(tw)
				for _, c := range model.AllCategories() {
					cfg, ok := p.Categories[c]
					if !ok {
						fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\n", c, "missing")
						continue
					}
					channels := make([]string, len(cfg.Channels))
					for i, ch := range cfg.Channels {
						channels[i] = string(ch)
					}
					respected := "ignored"
					if cfg.QuietHoursRespected {
						respected = "respected"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c, onOff(cfg.Enabled), strings.Join(channels, ","), cfg.Frequency, respected)
				}
				return nil
			})
		},
	}
}

func prefsToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <category> [channel]",
		Short: "Toggle a delivery channel of a category (default in_app)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := model.ParseCategory(args[0])
			if err != nil {
				return common.NewUserError(err.Error(), err)
			}
			channel := model.ChannelInApp
			if len(args) == 2 {
				if channel, err = model.ParseChannel(args[1]); err != nil {
					return common.NewUserError(err.Error(), err)
				}
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.inbox.ToggleCategory(ctx, category, channel); err != nil {
					return err
				}
				cfg := a.inbox.Preferences().Categories[category]
				state := "off"
				if cfg.HasChannel(channel) {
					state = "on"
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s via %s is now %s", category.Label(), channel, state)))
				return nil
			})
		},
	}
}

func prefsFrequencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "frequency <category> <realtime|hourly|daily|weekly>",
		Short:     "Set the delivery cadence recorded for a category",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"realtime", "hourly", "daily", "weekly"},
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := model.ParseCategory(args[0])
			if err != nil {
				return common.NewUserError(err.Error(), err)
			}
			freq, err := model.ParseFrequency(args[1])
			if err != nil {
				return common.NewUserError(err.Error(), err)
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.inbox.SetFrequency(ctx, category, freq); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s frequency set to %s", category.Label(), freq)))
				return nil
			})
		},
	}
}

func prefsQuietCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiet [start end]",
		Short: "Set the quiet hours window (HH:MM HH:MM) or turn it off",
		Example: `  ecofin prefs quiet 22:00 08:00
  ecofin prefs quiet --off`,
		Args: func(cmd *cobra.Command, args []string) error {
			if off, _ := cmd.Flags().GetBool("off"); off {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			off, _ := cmd.Flags().GetBool("off")
			var start, end string
			if !off {
				start, end = args[0], args[1]
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.inbox.SetQuietHours(ctx, !off, start, end); err != nil {
					return common.NewUserError("invalid quiet hours", err)
				}
				msg := "Quiet hours disabled"
				if !off {
					msg = fmt.Sprintf("Quiet hours set to %s-%s", start, end)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(msg))
				return nil
			})
		},
	}
	cmd.Flags().Bool("off", false, "disable quiet hours")
	return cmd
}

func prefsGlobalCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "global <on|off>",
		Short:     "Turn every notification on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch args[0] {
			case "on":
				enabled = true
			case "off":
			default:
				return common.NewUserError(fmt.Sprintf("expected on or off, got %q", args[0]), nil)
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.inbox.SetGlobalEnabled(ctx, enabled); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Notifications "+onOff(enabled)))
				return nil
			})
		},
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
