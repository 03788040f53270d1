package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/ecofinance-notify/internal/cli"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// openApp migrates on open.
			return withApp(cmd, func(ctx context.Context, a *app) error {
				version, err := a.db.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Database %s at schema version %d", a.db.Path(), version)))
				return nil
			})
		},
	}
	return cmd
}
