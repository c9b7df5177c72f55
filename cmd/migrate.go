package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/homebid/match-cli/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema current",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		// openStore already runs the base migrations.
		st, err := openStore(ctx, "migrate")
		if err != nil {
			return err
		}
		defer st.Close()

		if gs, ok := st.(store.GeoStore); ok {
			if err := gs.MigrateGeo(ctx); err != nil {
				return eris.Wrap(err, "migrate: geo schema")
			}
		}

		fmt.Println("Migrations complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
