package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/ecofinance-notify/internal/cli"
	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/config"
	"github.com/Veraticus/ecofinance-notify/internal/syncer"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the notification center with the server once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if settings.Sync.Endpoint == "" {
				return common.NewUserError("no sync endpoint configured (set sync.endpoint)", common.ErrMissingConfig)
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := newSyncer(settings.Sync, a).SyncOnce(ctx)
				if err != nil {
					return common.NewUserError("sync failed, local notifications are unchanged", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
					"Synced: %d fetched, %d merged, %d pushed", res.Fetched, res.Merged, res.Pushed)))
				return nil
			})
		},
	}
}

func newSyncer(s config.SyncSettings, a *app) *syncer.Syncer {
	var remote syncer.Remote
	if s.Endpoint != "" {
		remote = syncer.NewClient(s.Endpoint, s.Timeout)
	}
	return syncer.New(remote, a.state, a.inbox, s.Interval, syncer.WithMetrics(a.metrics))
}
