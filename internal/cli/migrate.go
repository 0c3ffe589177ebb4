package cli

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/johndosdos/chatsync/internal/database"
)

func newMigrateCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or with --reset, roll back) database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			if err := cfg.RequireDB(); err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.DBURL)
			if err != nil {
				return fmt.Errorf("could not connect to the postgresql database: %w", err)
			}
			defer pool.Close()

			if reset {
				if err := database.Reset(ctx, pool); err != nil {
					return err
				}
				slog.Info("migrations rolled back")
				return nil
			}

			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
			slog.Info("migrations applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "roll back every migration")
	return cmd
}
