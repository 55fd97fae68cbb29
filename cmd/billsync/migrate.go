package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billsync/pkg/config"
	"github.com/dmitrymomot/billsync/pkg/pg"
	"github.com/dmitrymomot/billsync/pkg/subscription/pgstore"
)

func migrateCmd() *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the postgres store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var (
				app AppConfig
				cfg pg.Config
			)
			if err := config.Load(&app); err != nil {
				return err
			}
			if err := config.Load(&cfg); err != nil {
				return err
			}
			log, err := newLogger(app)
			if err != nil {
				return err
			}

			pool, err := pg.Connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			var version int64
			if statusOnly {
				version, err = pg.Version(ctx, pool, cfg, log)
			} else {
				version, err = pg.Migrate(ctx, pool, cfg, pgstore.Migrations(), log)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "print the current schema version without migrating")

	return cmd
}
