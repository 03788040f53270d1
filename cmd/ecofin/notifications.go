package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/ecofinance-notify/internal/cli"
	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/notify"
)

func notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"inbox", "n"},
		Short:   "Browse and manage the notification center",
	}
	cmd.AddCommand(notificationsListCmd())
	cmd.AddCommand(inboxActionCmd("read <id>", "Mark a notification as read", func(ctx context.Context, s *notify.Store, id string) error {
		return s.MarkAsRead(ctx, id)
	}))
	cmd.AddCommand(inboxActionCmd("dismiss <id>", "Dismiss a notification", func(ctx context.Context, s *notify.Store, id string) error {
		return s.DismissNotification(ctx, id)
	}))
	cmd.AddCommand(inboxActionCmd("delete <id>", "Delete a notification", func(ctx context.Context, s *notify.Store, id string) error {
		return s.DeleteNotification(ctx, id)
	}))
	cmd.AddCommand(&cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				n := a.inbox.MarkAllAsRead(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Marked %d notifications as read", n)))
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every notification from the center",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				a.inbox.ClearAll(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Notification center cleared"))
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Deliver notifications held back by quiet hours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				n := a.inbox.FlushQueue(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("Delivered %d queued notifications (%d still waiting)", n, a.inbox.QueuedCount())))
				return nil
			})
		},
	})
	return cmd
}

func inboxActionCmd(use, short string, act func(context.Context, *notify.Store, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				id, err := resolveID(a.inbox, args[0])
				if err != nil {
					return err
				}
				if err := act(ctx, a.inbox, id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Done"))
				return nil
			})
		},
	}
}

func notificationsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filterStr, _ := cmd.Flags().GetString("filter")
			categoryStr, _ := cmd.Flags().GetString("category")
			showQueue, _ := cmd.Flags().GetBool("queue")

			filter, err := notify.ParseFilter(filterStr)
			if err != nil {
				return common.NewUserError(err.Error(), err)
			}
			var category model.Category
			if categoryStr != "" {
				if category, err = model.ParseCategory(categoryStr); err != nil {
					return common.NewUserError(err.Error(), err)
				}
			}

			return withApp(cmd, func(_ context.Context, a *app) error {
				out := cmd.OutOrStdout()
				if showQueue {
					printQueue(cmd, a.inbox.Queue())
					return nil
				}

				list := a.inbox.Notifications(filter, category)
				fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%s Notifications (%d unread)", cli.BellIcon, a.inbox.UnreadCount())))
				if len(list) == 0 {
					fmt.Fprintln(out, cli.SubtleStyle.Render("Nothing here."))
					return nil
				}

				tw := newTable(out, "", "ID", "When", "Category", "Title")
				defer flush(tw)
				for _, n := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						cli.StatusIcon(n.Status),
						shortID(n.ID),
						n.Timestamp.Local().Format("02/01 15:04"),
						n.Category.Label(),
						cli.PriorityStyle(n.Priority).Render(n.Title))
				}
				return nil
			})
		},
	}
	cmd.Flags().String("filter", string(notify.FilterActive), "view: all, unread, active or urgent")
	cmd.Flags().String("category", "", "only show this category")
	cmd.Flags().Bool("queue", false, "show notifications held back instead")
	return cmd
}

func printQueue(cmd *cobra.Command, queue []model.QueuedNotification) {
	out := cmd.OutOrStdout()
	if len(queue) == 0 {
		fmt.Fprintln(out, cli.SubtleStyle.Render("Queue is empty."))
		return
	}
	tw := newTable(out, "Queued", "Category", "Title")
	defer flush(tw)
	for _, q := range queue {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", q.QueuedAt.Local().Format("02/01 15:04"), q.Notification.Category.Label(), q.Notification.Title)
	}
}

// resolveID expands a unique id prefix, as printed by list.
func resolveID(s *notify.Store, prefix string) (string, error) {
	prefix = strings.TrimSuffix(prefix, "…")
	if _, ok := s.Get(prefix); ok {
		return prefix, nil
	}
	var found []string
	for _, n := range s.Notifications(notify.FilterAll, "") {
		if strings.HasPrefix(n.ID, prefix) {
			found = append(found, n.ID)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: %s", common.ErrNotFound, prefix)
	case 1:
		return found[0], nil
	}
	return "", common.NewUserError(fmt.Sprintf("id prefix %q matches %d notifications", prefix, len(found)), nil)
}

func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:8] + "…"
}
