package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cartograph/internal/app"
	"cartograph/internal/gitrepo"
	"cartograph/internal/search"
	"cartograph/internal/store"
)

func addReindex(topLevel *cobra.Command, ro *rootOptions) {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Push the newest version of every journal to Meilisearch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.load()
			if err != nil {
				return err
			}
			meiliClient := newMeili(cfg)
			if meiliClient == nil {
				return errors.New("reindex needs MEILI_URL")
			}
			defer meiliClient.Close()
			if !meiliClient.Healthy() {
				return errors.New("meilisearch is not reachable")
			}

			db, err := store.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer db.Close()

			service := app.New(cfg, store.NewPostgresStore(db), gitrepo.New(cfg.ReposDir), app.Options{
				Search: search.NewService(meiliClient, search.NewPgFTS(db)),
			})
			n, err := service.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d journals\n", n)
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}
