package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/sellerwatch/store"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(os.Stdout)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.DB)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Migrate(); err != nil {
				return err
			}
			fixed, err := st.NormalizeLegacyTimes(cmd.Context(), loc)
			if err != nil {
				return err
			}
			slog.Info("schema up to date", "db_type", cfg.DB.Type, "legacy_timestamps", fixed)
			return nil
		},
	}
}
