package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"cartograph/internal/store"
)

func addMigrate(topLevel *cobra.Command, ro *rootOptions) {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.load()
			if err != nil {
				return err
			}
			db, err := store.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer db.Close()
			if status {
				pending, err := store.PendingMigrations(cmd.Context(), db, cfg.MigrationsDir)
				if err != nil {
					return err
				}
				for _, v := range pending {
					fmt.Fprintln(cmd.OutOrStdout(), v)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d pending\n", len(pending))
				return nil
			}
			if err := store.ApplyMigrations(cmd.Context(), db, cfg.MigrationsDir); err != nil {
				return fmt.Errorf("migrations failed: %w", err)
			}
			log.Info().Str("dir", cfg.MigrationsDir).Msg("migrations applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "list pending migrations without applying them")
	topLevel.AddCommand(cmd)
}
